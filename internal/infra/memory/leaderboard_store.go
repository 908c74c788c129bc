package memory

import (
	"context"
	"sync"

	"ecoquest-service/internal/domain"
)

// LeaderboardStore keeps the latest snapshot per leaderboard key.
type LeaderboardStore struct {
	mu     sync.RWMutex
	boards map[string]domain.Leaderboard
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{boards: make(map[string]domain.Leaderboard)}
}

func (s *LeaderboardStore) Save(_ context.Context, board domain.Leaderboard) error {
	s.mu.Lock()
	board.Entries = append([]domain.LeaderboardEntry(nil), board.Entries...)
	s.boards[board.Key.String()] = board
	s.mu.Unlock()
	return nil
}

func (s *LeaderboardStore) Get(_ context.Context, key domain.LeaderboardKey) (domain.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[key.String()]
	if !ok {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	board.Entries = append([]domain.LeaderboardEntry(nil), board.Entries...)
	return board, nil
}
