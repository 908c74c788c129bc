package domain

import (
	"testing"
	"time"
)

func TestWindowStart(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		tf   Timeframe
		want time.Time
	}{
		{TimeframeDaily, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
		{TimeframeWeekly, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)},
		{TimeframeMonthly, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{TimeframeAllTime, time.Time{}},
	}
	for _, tc := range tests {
		if got := tc.tf.WindowStart(now); !got.Equal(tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.tf, tc.want, got)
		}
	}
	sunday := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)
	if got := TimeframeWeekly.WindowStart(sunday); !got.Equal(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week should start on the same Sunday, got %v", got)
	}
}

func TestLevelContains(t *testing.T) {
	levels := DefaultLevels()
	if !levels[0].Contains(0) || !levels[0].Contains(99) || levels[0].Contains(100) {
		t.Fatalf("seedling band wrong: %+v", levels[0])
	}
	top := levels[len(levels)-1]
	if top.MaxPoints != nil || !top.Contains(1_000_000) {
		t.Fatalf("top level should be open ended: %+v", top)
	}
}

func TestProfileLookups(t *testing.T) {
	p := NewProfile("u1")
	if p.Level != 1 || p.EcoPoints != 0 {
		t.Fatalf("unexpected new profile %+v", p)
	}
	p.Badges = append(p.Badges, EarnedBadge{BadgeID: "b1"})
	p.PointsHistory = append(p.PointsHistory, LedgerEntry{Source: SourceQuiz, SourceID: "att-1"})
	p.Activities = append(p.Activities,
		Activity{SourceID: "att-1", CompletedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Activity{SourceID: "att-2", CompletedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	)
	if !p.HasBadge("b1") || p.HasBadge("b2") {
		t.Fatalf("HasBadge wrong")
	}
	if !p.HasLedgerEntry(SourceQuiz, "att-1") || p.HasLedgerEntry(SourceBadge, "att-1") || p.HasLedgerEntry(SourceQuiz, "") {
		t.Fatalf("HasLedgerEntry wrong")
	}
	if !p.HasActivity("att-2") || p.HasActivity("") {
		t.Fatalf("HasActivity wrong")
	}
	if got := p.LastActivityAt(); got.Day() != 5 {
		t.Fatalf("expected latest activity, got %v", got)
	}

	c := p.Clone()
	c.Badges[0].BadgeID = "changed"
	if p.Badges[0].BadgeID != "b1" {
		t.Fatalf("clone shares badges")
	}
}

func TestActivitySource(t *testing.T) {
	if ActivityGame.Source() != SourceGame || ActivityQuiz.Source() != SourceQuiz || ActivityKind("other").Source() != SourceQuiz {
		t.Fatalf("unexpected activity sources")
	}
}

func TestActivityPoints(t *testing.T) {
	if ActivityGame.Points() != 15 || ActivityExperiment.Points() != 20 || ActivityTopic.Points() != 10 {
		t.Fatalf("unexpected self-reported activity points")
	}
	if ActivityQuiz.Points() != 0 {
		t.Fatalf("quiz activities must not earn points outside attempts")
	}
}
