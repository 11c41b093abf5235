package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"attendance/internal/domain"

	"github.com/google/uuid"
)

// GroupRepo implements group repository operations on DB.
type GroupRepo struct {
	db *DB
}

// NewGroupRepo wraps a DB as a GroupRepository.
func NewGroupRepo(db *DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// ListActive returns active groups with member counts.
func (r *GroupRepo) ListActive(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT g.id, g.name, g.is_active, g.created_at, COUNT(u.id)
		 FROM groups g LEFT JOIN users u ON u.group_id = g.id
		 WHERE g.is_active = TRUE
		 GROUP BY g.id, g.name, g.is_active, g.created_at
		 ORDER BY g.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.IsActive, &g.CreatedAt, &g.MemberCount); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Get retrieves a group by id, or nil when it does not exist.
func (r *GroupRepo) Get(ctx context.Context, id string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT id, name, is_active, created_at FROM groups WHERE id = $1", id,
	).Scan(&g.ID, &g.Name, &g.IsActive, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Join assigns the group if the user has none yet. The user row is locked
// for the duration of the transaction so two concurrent joins serialize.
func (r *GroupRepo) Join(ctx context.Context, userID, groupID string) (*domain.Group, error) {
	return r.assign(ctx, userID, groupID, userID, "user joined the group", false)
}

// Assign is the admin override: it may replace an existing membership.
func (r *GroupRepo) Assign(ctx context.Context, userID, groupID, changedBy, reason string) (*domain.Group, error) {
	return r.assign(ctx, userID, groupID, changedBy, reason, true)
}

func (r *GroupRepo) assign(ctx context.Context, userID, groupID, changedBy, reason string, force bool) (*domain.Group, error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	var currentGroup string
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(group_id::text, '') FROM users WHERE id=$1 FOR UPDATE;", userID,
	).Scan(&currentGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if currentGroup != "" && !force {
		return nil, domain.ErrAlreadyInGroup
	}

	var group domain.Group
	err = tx.QueryRowContext(ctx,
		"SELECT id, name, is_active, created_at FROM groups WHERE id=$1 AND is_active=TRUE;", groupID,
	).Scan(&group.ID, &group.Name, &group.IsActive, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET group_id=$1 WHERE id=$2;", groupID, userID); err != nil {
		return nil, fmt.Errorf("assign group: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO group_assignment_audits(id, user_id, previous_group_id, new_group_id, changed_by, reason, created_at) VALUES($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7);",
		uuid.NewString(), userID, currentGroup, groupID, changedBy, reason, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("audit assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	done = true
	return &group, nil
}
