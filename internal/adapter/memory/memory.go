// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"attendance/internal/domain"

	"github.com/google/uuid"
)

// DB implements the domain ports in memory. One mutex guards all state;
// holding it across the check-then-act sequence in Redeem gives the same
// per-pair serialization the Postgres row lock provides.
type DB struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	sessions    map[string]*domain.Session
	groups      map[string]*domain.Group
	attendances map[[2]string]*domain.Attendance
	audits      []domain.GroupAssignment
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		users:       make(map[string]*domain.User),
		sessions:    make(map[string]*domain.Session),
		groups:      make(map[string]*domain.Group),
		attendances: make(map[[2]string]*domain.Attendance),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.AttendanceLedger = (*DB)(nil)
var _ domain.GroupRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- UserRepository ---

// GetByID retrieves a user by id.
func (db *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Email != "" && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByIdentification retrieves a user by identification number.
func (db *DB) GetByIdentification(ctx context.Context, identification string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Identification != "" && u.Identification == identification {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Create inserts a new user.
func (db *DB) Create(ctx context.Context, u *domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *u
	db.users[u.ID] = &cp
	return nil
}

// Update rewrites an existing user's profile fields. Flowers and group
// membership are owned by their own write paths and stay untouched.
func (db *DB) Update(ctx context.Context, u *domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cur, ok := db.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	cp.Flowers = cur.Flowers
	cp.GroupID = cur.GroupID
	db.users[u.ID] = &cp
	return nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// Flowers returns the user's current flower counter.
func (db *DB) Flowers(ctx context.Context, id string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return u.Flowers, nil
}

// ListByFlowers returns all users ordered by flowers descending, name ascending.
func (db *DB) ListByFlowers(ctx context.Context) ([]domain.RankedUser, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.RankedUser, 0, len(db.users))
	for _, u := range db.users {
		out = append(out, domain.RankedUser{ID: u.ID, Name: u.Name, Flowers: u.Flowers})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Flowers != out[j].Flowers {
			return out[i].Flowers > out[j].Flowers
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- AttendanceLedger ---

// Redeem records at most one attendance per (user, session) pair and
// increments the user's flowers on first redemption.
func (db *DB) Redeem(ctx context.Context, userID, sessionID, rawCode string) (bool, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[userID]
	if !ok {
		return false, 0, domain.ErrUserNotFound
	}

	key := [2]string{userID, sessionID}
	if _, exists := db.attendances[key]; exists {
		return false, user.Flowers, nil
	}

	db.attendances[key] = &domain.Attendance{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		RawCode:   rawCode,
		ScannedAt: time.Now().UTC(),
	}
	user.Flowers++
	return true, user.Flowers, nil
}

// AttendanceCount reports how many attendances are recorded, for tests.
func (db *DB) AttendanceCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.attendances)
}

// --- GroupRepository ---

// AddGroup seeds a group, for tests and dev mode.
func (db *DB) AddGroup(g *domain.Group) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *g
	db.groups[g.ID] = &cp
}

// ListActive returns active groups with member counts.
func (db *DB) ListActive(ctx context.Context) ([]domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Group
	for _, g := range db.groups {
		if !g.IsActive {
			continue
		}
		cp := *g
		cp.MemberCount = 0
		for _, u := range db.users {
			if u.GroupID == g.ID {
				cp.MemberCount++
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get retrieves a group by id, or nil when it does not exist.
func (db *DB) Get(ctx context.Context, id string) (*domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if g, ok := db.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

// Join assigns the group only if the user has none yet.
func (db *DB) Join(ctx context.Context, userID, groupID string) (*domain.Group, error) {
	return db.assign(userID, groupID, userID, "user joined the group", false)
}

// Assign is the admin override and may replace an existing membership.
func (db *DB) Assign(ctx context.Context, userID, groupID, changedBy, reason string) (*domain.Group, error) {
	return db.assign(userID, groupID, changedBy, reason, true)
}

func (db *DB) assign(userID, groupID, changedBy, reason string, force bool) (*domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if user.GroupID != "" && !force {
		return nil, domain.ErrAlreadyInGroup
	}
	group, ok := db.groups[groupID]
	if !ok || !group.IsActive {
		return nil, domain.ErrGroupNotFound
	}

	previous := user.GroupID
	user.GroupID = groupID
	db.audits = append(db.audits, domain.GroupAssignment{
		ID:              uuid.NewString(),
		UserID:          userID,
		PreviousGroupID: previous,
		NewGroupID:      groupID,
		ChangedBy:       changedBy,
		Reason:          reason,
		CreatedAt:       time.Now().UTC(),
	})
	cp := *group
	return &cp, nil
}

// Audits returns a copy of recorded group assignment audits, for tests.
func (db *DB) Audits() []domain.GroupAssignment {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.GroupAssignment, len(db.audits))
	copy(out, db.audits)
	return out
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *s
	r.db.sessions[s.SessionID] = &cp
	return nil
}

// GetBySessionID retrieves a session by its public identifier.
func (r *SessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s, ok := r.db.sessions[sessionID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// List returns every session, newest first.
func (r *SessionRepo) List(ctx context.Context) ([]domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Session, 0, len(r.db.sessions))
	for _, s := range r.db.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Deactivate clears the active flag.
func (r *SessionRepo) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[sessionID]
	if !ok {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}
