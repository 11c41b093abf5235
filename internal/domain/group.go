package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyInGroup is reported when a user tries to join a second group.
var ErrAlreadyInGroup = errors.New("user already belongs to a group")

// ErrGroupNotFound is reported when the target group is missing or inactive.
var ErrGroupNotFound = errors.New("group not found or inactive")

// ErrUserNotFound is reported by transactional ports that look up users.
var ErrUserNotFound = errors.New("user not found")

// Group is a named cohort users may join once.
type Group struct {
	ID          string
	Name        string
	IsActive    bool
	MemberCount int
	CreatedAt   time.Time
}

// GroupAssignment is one audit entry for a group membership change.
type GroupAssignment struct {
	ID              string
	UserID          string
	PreviousGroupID string
	NewGroupID      string
	ChangedBy       string
	Reason          string
	CreatedAt       time.Time
}

// GroupRepository defines the port for group persistence operations.
//
// Join assigns the group only if the user has none yet; it locks the user
// row so concurrent joins for the same user serialize. Assign is the admin
// override and may replace an existing membership. Both write an audit entry
// in the same transaction.
type GroupRepository interface {
	ListActive(ctx context.Context) ([]Group, error)
	Get(ctx context.Context, id string) (*Group, error)
	Join(ctx context.Context, userID, groupID string) (*Group, error)
	Assign(ctx context.Context, userID, groupID, changedBy, reason string) (*Group, error)
}
