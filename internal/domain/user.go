// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Role classifies what a user is allowed to do.
type Role string

const (
	// RoleUser is a regular participant who scans codes and earns flowers.
	RoleUser Role = "user"
	// RoleAdmin manages sessions, users, and group assignments.
	RoleAdmin Role = "admin"
)

// User represents a participant in the system.
type User struct {
	ID             string
	Name           string
	Email          string
	Identification string
	PinHash        string
	Flowers        int
	GroupID        string
	Role           Role
	CreatedAt      time.Time
}

// RankedUser is a user projection for the leaderboard.
type RankedUser struct {
	ID      string
	Name    string
	Flowers int
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIdentification(ctx context.Context, identification string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Count(ctx context.Context) (int, error)
	Flowers(ctx context.Context, id string) (int, error)
	ListByFlowers(ctx context.Context) ([]RankedUser, error)
}
