package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
)

func seedPoints(t *testing.T, env *testEnv, userID string, points int) {
	t.Helper()
	if _, err := env.profiles.Update(context.Background(), userID, func(p *domain.Profile) error {
		p.EcoPoints = points
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestAwardPointsLevelUpOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	seedPoints(t, env, "u1", 95)

	res, err := env.gamification.AwardPoints(ctx, app.AwardInput{UserID: "u1", Points: 10, Source: domain.SourceGame, Description: "Sorting game"})
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.LevelUp || res.NewLevel != 2 {
		t.Fatalf("expected level 2, got %+v", res)
	}
	if res.BonusPoints != 20 || res.TotalPoints != 125 {
		t.Fatalf("expected a single 20 point bonus to 125, got %+v", res)
	}
	profile, _ := env.gamification.GetProfile(ctx, "u1")
	if len(profile.LevelHistory) != 1 || profile.Level != 2 {
		t.Fatalf("unexpected level history %+v", profile.LevelHistory)
	}
	bonuses := 0
	for _, e := range profile.PointsHistory {
		if e.Source == domain.SourceLevelUp {
			bonuses++
		}
	}
	if bonuses != 1 {
		t.Fatalf("expected one level bonus entry, got %d", bonuses)
	}
}

func TestBadgePointsCascadeIntoLevel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_ = env.catalog.UpsertBadge(ctx, domain.Badge{
		ID: "century", Name: "Century", Active: true, Points: 150,
		Criteria: domain.BadgeCriteria{Type: domain.CriteriaPoints, Value: 100},
	})
	seedPoints(t, env, "u1", 95)

	events, cancel := env.hub.Subscribe("u1")
	defer cancel()

	res, err := env.gamification.AwardPoints(ctx, app.AwardInput{UserID: "u1", Points: 10, Source: domain.SourceGame})
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	// 105 -> L2 (+20) = 125 -> badge (+150) = 275 -> L3 (+30) = 305
	if res.NewLevel != 3 || res.TotalPoints != 305 || len(res.NewBadges) != 1 {
		t.Fatalf("unexpected cascade result %+v", res)
	}

	var sawBadge, sawLevel bool
	for len(events) > 0 {
		e := <-events
		sawBadge = sawBadge || e.Type == domain.EventBadgeEarned
		sawLevel = sawLevel || e.Type == domain.EventLevelUp
	}
	if !sawBadge || !sawLevel {
		t.Fatalf("expected badge and level events, badge=%v level=%v", sawBadge, sawLevel)
	}
}

func TestAwardPointsValidationAndDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	var ve *domain.ValidationError
	if _, err := env.gamification.AwardPoints(ctx, app.AwardInput{UserID: "u1", Points: 0, Source: domain.SourceGame}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for zero points, got %v", err)
	}
	if _, err := env.gamification.AwardPoints(ctx, app.AwardInput{UserID: "u1", Points: -5, Source: domain.SourceGame}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for negative non-admin points, got %v", err)
	}

	in := app.AwardInput{UserID: "u1", Points: 15, Source: domain.SourceExperiment, SourceID: "exp-1"}
	if _, err := env.gamification.AwardPoints(ctx, in); err != nil {
		t.Fatalf("award: %v", err)
	}
	res, err := env.gamification.AwardPoints(ctx, in)
	if err != nil || !res.Duplicate || res.TotalPoints != 15 {
		t.Fatalf("expected duplicate no-op, got %+v %v", res, err)
	}

	res, err = env.gamification.AwardPoints(ctx, app.AwardInput{UserID: "u1", Points: -100, Source: domain.SourceAdmin})
	if err != nil || res.TotalPoints != 0 {
		t.Fatalf("expected admin correction floored at zero, got %+v %v", res, err)
	}
}

func TestRecordActivityCountsTowardBadges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_ = env.catalog.UpsertBadge(ctx, domain.Badge{
		ID: "daily-2", Name: "Busy Day", Active: true,
		Criteria: domain.BadgeCriteria{Type: domain.CriteriaGames, Value: 2, Timeframe: domain.TimeframeDaily},
	})
	_ = env.catalog.UpsertBadge(ctx, domain.Badge{
		ID: "mystery", Name: "Mystery", Active: true,
		Criteria: domain.BadgeCriteria{Type: domain.CriteriaSpecial},
	})

	first, err := env.gamification.RecordActivity(ctx, app.ActivityInput{UserID: "u1", Kind: domain.ActivityGame, RefID: "g1", Points: 5, SourceID: "run-1"})
	if err != nil || len(first.NewBadges) != 0 {
		t.Fatalf("expected no badge after one game, got %+v %v", first, err)
	}
	second, err := env.gamification.RecordActivity(ctx, app.ActivityInput{UserID: "u1", Kind: domain.ActivityGame, RefID: "g2", Points: 5, SourceID: "run-2"})
	if err != nil || len(second.NewBadges) != 1 || second.NewBadges[0].ID != "daily-2" {
		t.Fatalf("expected daily badge, got %+v %v", second, err)
	}

	again, err := env.gamification.RecordActivity(ctx, app.ActivityInput{UserID: "u1", Kind: domain.ActivityGame, RefID: "g2", Points: 5, SourceID: "run-2"})
	if err != nil || !again.Duplicate {
		t.Fatalf("expected duplicate activity, got %+v %v", again, err)
	}

	// next day the daily window resets but the badge stays
	env.clock.Advance(24 * time.Hour)
	third, err := env.gamification.RecordActivity(ctx, app.ActivityInput{UserID: "u1", Kind: domain.ActivityGame, RefID: "g3", Points: 5, SourceID: "run-3"})
	if err != nil || len(third.NewBadges) != 0 {
		t.Fatalf("badge must not be re-awarded, got %+v %v", third, err)
	}
	profile, _ := env.gamification.GetProfile(ctx, "u1")
	if len(profile.Badges) != 1 || profile.Streak.Current != 2 {
		t.Fatalf("unexpected profile badges=%+v streak=%+v", profile.Badges, profile.Streak)
	}
}

func TestAwardBadgeSpecial(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_ = env.catalog.UpsertBadge(ctx, domain.Badge{
		ID: "hero", Name: "Earth Hero", Active: true, Points: 25,
		Criteria: domain.BadgeCriteria{Type: domain.CriteriaSpecial},
	})

	res, err := env.gamification.AwardBadge(ctx, "u1", "hero")
	if err != nil || len(res.NewBadges) != 1 || res.TotalPoints != 25 {
		t.Fatalf("unexpected award %+v %v", res, err)
	}
	var ce *domain.ConflictError
	if _, err := env.gamification.AwardBadge(ctx, "u1", "hero"); !errors.As(err, &ce) {
		t.Fatalf("expected conflict on re-award, got %v", err)
	}
	var nf *domain.NotFoundError
	if _, err := env.gamification.AwardBadge(ctx, "u1", "ghost"); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckAchievementsPicksUpNewCatalog(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	seedPoints(t, env, "u1", 60)
	_ = env.catalog.UpsertBadge(ctx, domain.Badge{
		ID: "fifty", Name: "Fifty", Active: true,
		Criteria: domain.BadgeCriteria{Type: domain.CriteriaPoints, Value: 50},
	})
	res, err := env.gamification.CheckAchievements(ctx, "u1")
	if err != nil || len(res.NewBadges) != 1 || res.LevelUp {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
}

func TestGetProfileIsLazy(t *testing.T) {
	env := newTestEnv()
	p, err := env.gamification.GetProfile(context.Background(), "new-user")
	if err != nil || p.Level != 1 || p.EcoPoints != 0 {
		t.Fatalf("expected fresh profile, got %+v %v", p, err)
	}
}

func TestLevelFor(t *testing.T) {
	upper := func(n int) *int { return &n }
	levels := []domain.Level{
		{Level: 2, MinPoints: 100, MaxPoints: upper(199)},
		{Level: 1, MinPoints: 0, MaxPoints: upper(99)},
		{Level: 3, MinPoints: 300, MaxPoints: upper(399)},
	}
	tests := []struct {
		points int
		level  int
	}{{0, 1}, {150, 2}, {250, 2}, {1000, 3}}
	for _, tc := range tests {
		got, ok := app.LevelFor(levels, tc.points)
		if !ok || got.Level != tc.level {
			t.Fatalf("points %d: expected level %d, got %+v", tc.points, tc.level, got)
		}
	}
	if _, ok := app.LevelFor(nil, 10); ok {
		t.Fatalf("expected no level without a table")
	}
}
