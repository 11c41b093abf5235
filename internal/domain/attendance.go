package domain

import (
	"context"
	"time"
)

// Attendance records one redeemed check-in. The (UserID, SessionID) pair is
// unique across all records; that invariant is what makes redemption
// idempotent.
type Attendance struct {
	ID        string
	UserID    string
	SessionID string
	RawCode   string
	ScannedAt time.Time
}

// AttendanceLedger is the transactional port for redeeming a check-in.
//
// Redeem records at most one attendance per (user, session) pair and
// increments the user's flower counter by exactly one on first redemption.
// It reports added=false when the pair was already redeemed, together with
// the user's current counter. Implementations must be safe under concurrent
// calls for the same pair.
type AttendanceLedger interface {
	Redeem(ctx context.Context, userID, sessionID, rawCode string) (added bool, flowers int, err error)
}
