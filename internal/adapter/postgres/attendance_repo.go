package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Named constraint on (user_id, session_id); the race fallback below is
// narrowed to this constraint so unrelated conflicts still fail the request.
const pairConstraint = "attendances_user_session_key"

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Bound on how long a redemption waits for the row lock. A stuck lock fails
// the attempt; retrying is always safe because redemption is idempotent.
const lockTimeout = "5s"

// Redeem records one attendance for (userID, sessionID) and increments the
// user's flower counter, all in one transaction.
//
// The row lock on the existing-pair lookup is the primary defense against
// concurrent scans of the same code; the unique constraint on the pair is
// the backstop. A loser of the insert race is reported as already-redeemed,
// not as an error.
func (d *DB) Redeem(ctx context.Context, userID, sessionID, rawCode string) (bool, int, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"';"); err != nil {
		return false, 0, fmt.Errorf("set lock_timeout: %w", err)
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM attendances WHERE user_id=$1 AND session_id=$2 FOR UPDATE;",
		userID, sessionID,
	).Scan(&existing)
	switch {
	case err == nil:
		// Already redeemed. No writes happened, so roll back and report the
		// current counter.
		_ = tx.Rollback()
		done = true
		return d.alreadyRedeemed(ctx, userID)
	case !errors.Is(err, sql.ErrNoRows):
		return false, 0, fmt.Errorf("lock attendance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO attendances(id, user_id, session_id, raw_code, scanned_at) VALUES($1, $2, $3, $4, $5);",
		uuid.NewString(), userID, sessionID, rawCode, time.Now().UTC(),
	)
	if err != nil {
		if isPairConflict(err) {
			// Another transaction won the race between our lookup and insert.
			_ = tx.Rollback()
			done = true
			return d.alreadyRedeemed(ctx, userID)
		}
		return false, 0, fmt.Errorf("insert attendance: %w", err)
	}

	var flowers int
	err = tx.QueryRowContext(ctx,
		"UPDATE users SET flowers = flowers + 1 WHERE id=$1 RETURNING flowers;",
		userID,
	).Scan(&flowers)
	if err != nil {
		return false, 0, fmt.Errorf("increment flowers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isPairConflict(err) {
			done = true
			return d.alreadyRedeemed(ctx, userID)
		}
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	done = true
	return true, flowers, nil
}

func (d *DB) alreadyRedeemed(ctx context.Context, userID string) (bool, int, error) {
	flowers, err := d.Flowers(ctx, userID)
	if err != nil {
		return false, 0, fmt.Errorf("read flowers: %w", err)
	}
	return false, flowers, nil
}

func isPairConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == uniqueViolation &&
		pqErr.Constraint == pairConstraint
}
