package postgres

import (
	"context"
	"database/sql"
	"errors"

	"attendance/internal/domain"
)

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (id, session_id, name, starts_at, ends_at, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		s.ID, s.SessionID, s.Name, s.StartsAt.UTC(), s.EndsAt.UTC(), s.IsActive, s.CreatedAt.UTC(),
	)
	return err
}

// GetBySessionID retrieves a session by its public identifier.
func (r *SessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT id, session_id, name, starts_at, ends_at, is_active, created_at FROM sessions WHERE session_id = $1",
		sessionID,
	).Scan(&s.ID, &s.SessionID, &s.Name, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every session, newest first.
func (r *SessionRepo) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		"SELECT id, session_id, name, starts_at, ends_at, is_active, created_at FROM sessions ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Name, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Deactivate clears the active flag. It reports false when no such session
// exists.
func (r *SessionRepo) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.sql.ExecContext(ctx,
		"UPDATE sessions SET is_active = FALSE WHERE session_id = $1", sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
