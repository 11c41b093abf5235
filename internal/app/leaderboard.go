package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"attendance/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardCacheKey = "leaderboard:v1"
	leaderboardCacheTTL = 30 * time.Second
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	User          LeaderboardUser `json:"user"`
	Flowers       int             `json:"flowers"`
	IsCurrentUser bool            `json:"isCurrentUser"`
}

// LeaderboardUser identifies the user on a ranked row.
type LeaderboardUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Leaderboard is the full ranking plus the caller's own entry, if any.
type Leaderboard struct {
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *LeaderboardEntry  `json:"currentUser,omitempty"`
}

// LeaderboardService ranks users by flowers. When a Redis client is
// provided the computed ranking is cached briefly and invalidated on every
// successful redemption; cache failures fall back to the database.
type LeaderboardService struct {
	users domain.UserRepository
	cache *redis.Client
}

// NewLeaderboardService creates a LeaderboardService. cache may be nil.
func NewLeaderboardService(users domain.UserRepository, cache *redis.Client) *LeaderboardService {
	return &LeaderboardService{users: users, cache: cache}
}

// Get returns the ranking, marking currentUserID's entry when present.
func (s *LeaderboardService) Get(ctx context.Context, currentUserID string) (*Leaderboard, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{Entries: entries}
	if currentUserID == "" {
		return board, nil
	}
	for i := range board.Entries {
		if board.Entries[i].User.ID == currentUserID {
			board.Entries[i].IsCurrentUser = true
			entry := board.Entries[i]
			board.CurrentUser = &entry
			break
		}
	}
	return board, nil
}

// Invalidate drops the cached ranking. No-op without a cache.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		log.Printf("leaderboard: cache invalidate: %v", err)
	}
}

func (s *LeaderboardService) entries(ctx context.Context) ([]LeaderboardEntry, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, leaderboardCacheKey).Bytes(); err == nil {
			var entries []LeaderboardEntry
			if json.Unmarshal(cached, &entries) == nil {
				return entries, nil
			}
		}
	}

	users, err := s.users.ListByFlowers(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			User:    LeaderboardUser{ID: u.ID, Name: u.Name},
			Flowers: u.Flowers,
		})
	}

	if s.cache != nil {
		if b, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, leaderboardCacheKey, b, leaderboardCacheTTL).Err(); err != nil {
				log.Printf("leaderboard: cache set: %v", err)
			}
		}
	}
	return entries, nil
}
