package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"ecoquest-service/internal/domain"
)

// LeaderboardStore keeps leaderboard snapshots in Redis so every instance serves the same ranking.
// Boards are stored as JSON: SET leaderboard:{type}:{timeframe}:{category} {json}
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Save(ctx context.Context, board domain.Leaderboard) error {
	data, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(board.Key), data, 0).Err()
}

func (s *LeaderboardStore) Get(ctx context.Context, key domain.LeaderboardKey) (domain.Leaderboard, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	if err != nil {
		return domain.Leaderboard{}, err
	}
	var board domain.Leaderboard
	if err := json.Unmarshal(data, &board); err != nil {
		return domain.Leaderboard{}, err
	}
	return board, nil
}

func (s *LeaderboardStore) key(key domain.LeaderboardKey) string {
	return "leaderboard:" + key.String()
}
