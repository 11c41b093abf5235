package domain

import (
	"context"
	"time"
)

// Session is a time-bounded event that participants check in to.
//
// ID is the primary key; SessionID is the public identifier embedded in
// scan codes. The time window and the active flag are independent: both
// must hold for a check-in to be accepted.
type Session struct {
	ID        string
	SessionID string
	Name      string
	StartsAt  time.Time
	EndsAt    time.Time
	IsActive  bool
	CreatedAt time.Time
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	Deactivate(ctx context.Context, sessionID string) (bool, error)
}
