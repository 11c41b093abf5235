package postgres

import (
	"context"
	"database/sql"
	"errors"

	"attendance/internal/domain"
)

const userColumns = "id, name, COALESCE(email, ''), COALESCE(identification, ''), pin_hash, flowers, COALESCE(group_id::text, ''), role, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Identification, &u.PinHash, &u.Flowers, &u.GroupID, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by id.
func (d *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetByEmail retrieves a user by email.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

// GetByIdentification retrieves a user by identification number.
func (d *DB) GetByIdentification(ctx context.Context, identification string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE identification = $1", identification))
}

// Create inserts a new user.
func (d *DB) Create(ctx context.Context, u *domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO users (id, name, email, identification, pin_hash, flowers, role, created_at) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)",
		u.ID, u.Name, u.Email, u.Identification, u.PinHash, u.Flowers, u.Role, u.CreatedAt,
	)
	return err
}

// Update rewrites a user's mutable profile fields. The flowers counter is
// owned by the redemption transaction and is deliberately not touched here.
func (d *DB) Update(ctx context.Context, u *domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"UPDATE users SET name = $2, email = NULLIF($3, ''), identification = NULLIF($4, ''), pin_hash = $5, role = $6 WHERE id = $1",
		u.ID, u.Name, u.Email, u.Identification, u.PinHash, u.Role,
	)
	return err
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// Flowers returns the user's current flower counter.
func (d *DB) Flowers(ctx context.Context, id string) (int, error) {
	var flowers int
	err := d.sql.QueryRowContext(ctx, "SELECT flowers FROM users WHERE id = $1", id).Scan(&flowers)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	return flowers, err
}

// ListByFlowers returns all users ordered by flowers descending, name ascending.
func (d *DB) ListByFlowers(ctx context.Context) ([]domain.RankedUser, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, name, flowers FROM users ORDER BY flowers DESC, name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.RankedUser
	for rows.Next() {
		var u domain.RankedUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Flowers); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
