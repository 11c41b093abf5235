package app

import (
	"context"
	"errors"
	"time"

	"attendance/internal/domain"
)

var (
	// ErrSessionNotFound indicates the code names a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInactive indicates the session was deactivated.
	ErrSessionInactive = errors.New("session is no longer active")
	// ErrSessionNotStarted indicates the session window has not opened yet.
	ErrSessionNotStarted = errors.New("session has not started yet")
	// ErrSessionEnded indicates the session window has closed.
	ErrSessionEnded = errors.New("session has ended")
)

// ScanSession is the session summary returned with a successful scan.
type ScanSession struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// ScanResult is the outcome of a redemption attempt. A repeated scan is a
// success with Added=false, not an error.
type ScanResult struct {
	Added   bool         `json:"added"`
	Flowers int          `json:"flowers"`
	Message string       `json:"message"`
	Session *ScanSession `json:"session,omitempty"`
}

// RankInvalidator drops any cached leaderboard after a counter change.
type RankInvalidator interface {
	Invalidate(ctx context.Context)
}

// AttendanceService redeems scan codes: it verifies the credential, gates
// on the session window, and drives the transactional ledger.
type AttendanceService struct {
	creds    *CredentialService
	sessions domain.SessionRepository
	ledger   domain.AttendanceLedger
	ranks    RankInvalidator
	now      func() time.Time
}

// NewAttendanceService creates an AttendanceService. ranks may be nil when
// no leaderboard cache is configured.
func NewAttendanceService(creds *CredentialService, sessions domain.SessionRepository, ledger domain.AttendanceLedger, ranks RankInvalidator) *AttendanceService {
	return &AttendanceService{
		creds:    creds,
		sessions: sessions,
		ledger:   ledger,
		ranks:    ranks,
		now:      time.Now,
	}
}

// Redeem processes one scan for the given user. Credential failures are
// checked before the session is ever loaded, window failures before any
// write. Redeeming an already-redeemed pair returns Added=false with the
// current counter.
func (s *AttendanceService) Redeem(ctx context.Context, userID, rawCode string) (*ScanResult, error) {
	sid, err := s.creds.Verify(rawCode)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetBySessionID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(sess, s.now()); err != nil {
		return nil, err
	}

	added, flowers, err := s.ledger.Redeem(ctx, userID, sess.ID, rawCode)
	if err != nil {
		return nil, err
	}

	res := &ScanResult{Added: added, Flowers: flowers}
	if !added {
		res.Message = "This session was already recorded"
		return res, nil
	}

	res.Message = "Attendance recorded. You earned 1 flower"
	res.Session = &ScanSession{ID: sess.SessionID, Name: sess.Name, Date: sess.StartsAt}
	if s.ranks != nil {
		s.ranks.Invalidate(ctx)
	}
	return res, nil
}

// checkWindow gates a redemption on the session's state. Conditions are
// evaluated in order and only the first failure is reported.
func checkWindow(sess *domain.Session, now time.Time) error {
	switch {
	case sess == nil:
		return ErrSessionNotFound
	case !sess.IsActive:
		return ErrSessionInactive
	case now.Before(sess.StartsAt):
		return ErrSessionNotStarted
	case now.After(sess.EndsAt):
		return ErrSessionEnded
	}
	return nil
}
