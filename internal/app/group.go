package app

import (
	"context"

	"attendance/internal/domain"
)

// GroupService wraps group membership use cases. The once-only join
// discipline is enforced by the repository under a row lock; this service
// shapes results for the HTTP layer.
type GroupService struct {
	groups domain.GroupRepository
}

// NewGroupService creates a GroupService.
func NewGroupService(groups domain.GroupRepository) *GroupService {
	return &GroupService{groups: groups}
}

// ListActive returns active groups with member counts.
func (s *GroupService) ListActive(ctx context.Context) ([]domain.Group, error) {
	return s.groups.ListActive(ctx)
}

// MyGroup returns the group the user currently belongs to, or nil when the
// user has not joined one.
func (s *GroupService) MyGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	if groupID == "" {
		return nil, nil
	}
	return s.groups.Get(ctx, groupID)
}

// Join assigns the user to a group, once. Joining a second group fails with
// domain.ErrAlreadyInGroup.
func (s *GroupService) Join(ctx context.Context, userID, groupID string) (*domain.Group, error) {
	return s.groups.Join(ctx, userID, groupID)
}

// Assign lets an admin move a user between groups, recording who and why.
func (s *GroupService) Assign(ctx context.Context, userID, groupID, adminID, reason string) (*domain.Group, error) {
	if reason == "" {
		reason = "reassigned by admin"
	}
	return s.groups.Assign(ctx, userID, groupID, adminID, reason)
}
