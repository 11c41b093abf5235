package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"attendance/internal/domain"

	"github.com/google/uuid"
)

// SessionService manages the session lifecycle for admins. The attendance
// core only reads sessions; creation and deactivation live here.
type SessionService struct {
	sessions domain.SessionRepository
	creds    *CredentialService
	now      func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions domain.SessionRepository, creds *CredentialService) *SessionService {
	return &SessionService{sessions: sessions, creds: creds, now: time.Now}
}

// CreatedSession is the response for a newly created session, including the
// scan code payload to render.
type CreatedSession struct {
	Session domain.Session
	Payload CredentialPayload
}

// Create stores a new active session and issues its first scan code.
func (s *SessionService) Create(ctx context.Context, name string, startsAt, endsAt time.Time) (*CreatedSession, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	if !startsAt.Before(endsAt) {
		return nil, errors.New("startsAt must be before endsAt")
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		SessionID: s.newSessionID(),
		Name:      name,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &CreatedSession{Session: *sess, Payload: s.creds.Issue(sess.SessionID)}, nil
}

// List returns every session, newest first.
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.List(ctx)
}

// QRCode renders a fresh scan code PNG for an existing session.
func (s *SessionService) QRCode(ctx context.Context, sessionID string) (*domain.Session, []byte, error) {
	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}
	png, err := s.creds.QRCodePNG(sess.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, png, nil
}

// Deactivate turns a session off; its codes stop redeeming immediately.
func (s *SessionService) Deactivate(ctx context.Context, sessionID string) error {
	ok, err := s.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// newSessionID produces a public id like SESSION-2026-08-29-9F3A1C04.
func (s *SessionService) newSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "SESSION-" + s.now().UTC().Format("2006-01-02") + "-" + strings.ToUpper(hex.EncodeToString(b))
}
