package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates the email, identification, or PIN was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserExists indicates a user with the same email already exists.
	ErrUserExists = errors.New("user already exists")
)

// Claims is the JWT payload issued on login.
type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles login and bearer-token verification.
type AuthService struct {
	users  domain.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates an AuthService signing tokens with the given secret.
func NewAuthService(users domain.UserRepository, secret string, ttl time.Duration) (*AuthService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// AuthResponse carries the signed token and the logged-in user's profile.
type AuthResponse struct {
	Token string       `json:"token"`
	User  AuthUserInfo `json:"user"`
}

// AuthUserInfo is the user projection returned on login.
type AuthUserInfo struct {
	ID      string      `json:"id"`
	Email   string      `json:"email,omitempty"`
	Name    string      `json:"name"`
	Flowers int         `json:"flowers"`
	Role    domain.Role `json:"role"`
}

// Login authenticates by email and PIN.
func (s *AuthService) Login(ctx context.Context, email, pin string) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PinHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(pin)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.respond(user)
}

// LoginWithIdentification authenticates by identification number alone,
// for kiosk-style check-in devices.
func (s *AuthService) LoginWithIdentification(ctx context.Context, identification string) (*AuthResponse, error) {
	user, err := s.users.GetByIdentification(ctx, identification)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return s.respond(user)
}

// LoginWithEmail issues a token for an externally authenticated user (SSO).
// Only existing users may log in this way.
func (s *AuthService) LoginWithEmail(ctx context.Context, email string) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return s.respond(user)
}

func (s *AuthService) respond(user *domain.User) (*AuthResponse, error) {
	token, err := s.signToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token: token,
		User: AuthUserInfo{
			ID:      user.ID,
			Email:   user.Email,
			Name:    user.Name,
			Flowers: user.Flowers,
			Role:    user.Role,
		},
	}, nil
}

func (s *AuthService) signToken(user *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken validates a bearer token and returns its claims.
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser registers a user with a hashed PIN. Admin-only at the HTTP layer.
func (s *AuthService) CreateUser(ctx context.Context, name, email, identification, pin string, role domain.Role) (*domain.User, error) {
	if name == "" || email == "" {
		return nil, errors.New("name and email are required")
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	var pinHash string
	if pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		pinHash = string(hash)
	}
	if role == "" {
		role = domain.RoleUser
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		Identification: identification,
		PinHash:        pinHash,
		Role:           role,
		CreatedAt:      s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserImport is one row of a bulk user sync.
type UserImport struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Identification string `json:"identification"`
	PIN            string `json:"pin"`
}

// SyncResult summarizes a bulk user sync.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// SyncUsers upserts a roster of users keyed by email. New emails are created
// as regular users; existing ones get their name and identification
// refreshed. The PIN is only touched when the row carries one, so a re-sync
// never wipes credentials. Rows without name or email are counted as skipped.
func (s *AuthService) SyncUsers(ctx context.Context, imports []UserImport) (*SyncResult, error) {
	var res SyncResult
	for _, in := range imports {
		if in.Name == "" || in.Email == "" {
			res.Skipped++
			continue
		}

		existing, err := s.users.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if _, err := s.CreateUser(ctx, in.Name, in.Email, in.Identification, in.PIN, domain.RoleUser); err != nil {
				return nil, err
			}
			res.Created++
			continue
		}

		existing.Name = in.Name
		if in.Identification != "" {
			existing.Identification = in.Identification
		}
		if in.PIN != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), bcrypt.DefaultCost)
			if err != nil {
				return nil, err
			}
			existing.PinHash = string(hash)
		}
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		res.Updated++
	}
	return &res, nil
}

// CreateInitialAdmin creates the first admin if no users exist yet.
func (s *AuthService) CreateInitialAdmin(ctx context.Context, email, pin string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = s.CreateUser(ctx, "Administrator", email, "", pin, domain.RoleAdmin)
	return err
}
