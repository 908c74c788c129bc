package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"ecoquest-service/internal/domain"
)

// DefaultLeaderboardSize caps the stored entries per board.
const DefaultLeaderboardSize = 100

// LeaderboardService recomputes and serves leaderboard snapshots.
type LeaderboardService struct {
	profiles ProfileRepository
	boards   LeaderboardRepository
	size     int
	now      func() time.Time
}

func NewLeaderboardService(profiles ProfileRepository, boards LeaderboardRepository, size int) *LeaderboardService {
	return NewLeaderboardServiceWithClock(profiles, boards, size, time.Now)
}

// NewLeaderboardServiceWithClock is used by tests for deterministic windows.
func NewLeaderboardServiceWithClock(profiles ProfileRepository, boards LeaderboardRepository, size int, now func() time.Time) *LeaderboardService {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	return &LeaderboardService{profiles: profiles, boards: boards, size: size, now: now}
}

// UpdateLeaderboards rebuilds every board and returns how many were written.
func (s *LeaderboardService) UpdateLeaderboards(ctx context.Context) (int, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return 0, domain.WrapOp("list profiles", err)
	}
	now := s.now()
	written := 0
	for _, key := range LeaderboardKeys(profiles) {
		board := BuildLeaderboard(profiles, key, now, s.size)
		if err := s.boards.Save(ctx, board); err != nil {
			return written, domain.WrapOp("save leaderboard "+key.String(), err)
		}
		written++
	}
	return written, nil
}

// Get returns the last stored snapshot for key.
func (s *LeaderboardService) Get(ctx context.Context, key domain.LeaderboardKey) (domain.Leaderboard, error) {
	if key.Category == "" {
		key.Category = domain.CategoryAll
	}
	board, err := s.boards.Get(ctx, key)
	if errors.Is(err, domain.ErrLeaderboardNotFound) {
		return domain.Leaderboard{}, &domain.NotFoundError{Message: "leaderboard not found: " + key.String(), Err: err}
	}
	if err != nil {
		return domain.Leaderboard{}, domain.WrapOp("load leaderboard", err)
	}
	return board, nil
}

// LeaderboardKeys lists the boards to build: points per timeframe, quizzes per timeframe and
// category, and the all-time streak board.
func LeaderboardKeys(profiles []domain.Profile) []domain.LeaderboardKey {
	categories := []string{domain.CategoryAll}
	seen := map[string]struct{}{domain.CategoryAll: {}}
	for _, p := range profiles {
		for _, a := range p.Activities {
			if a.Kind != domain.ActivityQuiz || a.Category == "" {
				continue
			}
			if _, ok := seen[a.Category]; ok {
				continue
			}
			seen[a.Category] = struct{}{}
			categories = append(categories, a.Category)
		}
	}
	sort.Strings(categories[1:])

	var keys []domain.LeaderboardKey
	for _, tf := range domain.Timeframes {
		keys = append(keys, domain.LeaderboardKey{Type: domain.LeaderboardPoints, Timeframe: tf, Category: domain.CategoryAll})
	}
	for _, tf := range domain.Timeframes {
		for _, c := range categories {
			keys = append(keys, domain.LeaderboardKey{Type: domain.LeaderboardQuizzes, Timeframe: tf, Category: c})
		}
	}
	keys = append(keys, domain.LeaderboardKey{Type: domain.LeaderboardStreak, Timeframe: domain.TimeframeAllTime, Category: domain.CategoryAll})
	return keys
}

type ranked struct {
	entry        domain.LeaderboardEntry
	lastActivity time.Time
}

// BuildLeaderboard scores every profile for key, drops zero scores and keeps the top size.
// Ties go to whoever was active earlier, then by display name.
func BuildLeaderboard(profiles []domain.Profile, key domain.LeaderboardKey, now time.Time, size int) domain.Leaderboard {
	start := key.Timeframe.WindowStart(now)
	rows := make([]ranked, 0, len(profiles))
	for _, p := range profiles {
		score := leaderboardScore(p, key, start, now)
		if score <= 0 {
			continue
		}
		rows = append(rows, ranked{
			entry: domain.LeaderboardEntry{
				UserID:      p.UserID,
				DisplayName: p.DisplayName,
				Score:       score,
			},
			lastActivity: p.LastActivityAt(),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.Score != b.entry.Score {
			return a.entry.Score > b.entry.Score
		}
		if !a.lastActivity.Equal(b.lastActivity) {
			return a.lastActivity.Before(b.lastActivity)
		}
		if a.entry.DisplayName != b.entry.DisplayName {
			return a.entry.DisplayName < b.entry.DisplayName
		}
		return a.entry.UserID < b.entry.UserID
	})

	if size > 0 && len(rows) > size {
		rows = rows[:size]
	}
	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		r.entry.Rank = i + 1
		entries[i] = r.entry
	}
	return domain.Leaderboard{Key: key, Entries: entries, UpdatedAt: now}
}

func leaderboardScore(p domain.Profile, key domain.LeaderboardKey, start, now time.Time) int {
	switch key.Type {
	case domain.LeaderboardPoints:
		if start.IsZero() {
			return p.EcoPoints
		}
		total := 0
		for _, e := range p.PointsHistory {
			if !e.CreatedAt.Before(start) {
				total += e.Points
			}
		}
		return total
	case domain.LeaderboardQuizzes:
		n := 0
		for _, a := range p.Activities {
			if a.Kind != domain.ActivityQuiz {
				continue
			}
			if key.Category != domain.CategoryAll && a.Category != key.Category {
				continue
			}
			if !start.IsZero() && a.CompletedAt.Before(start) {
				continue
			}
			n++
		}
		return n
	case domain.LeaderboardStreak:
		return EffectiveStreak(p.Streak, now)
	}
	return 0
}
