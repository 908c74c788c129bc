package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct{ calls atomic.Int32 }

func (c *countingRefresher) UpdateLeaderboards(context.Context) (int, error) {
	c.calls.Add(1)
	return 17, nil
}

type countingSweeper struct {
	calls     atomic.Int32
	olderThan atomic.Int64
}

func (c *countingSweeper) AbandonStale(_ context.Context, olderThan time.Duration) (int, error) {
	c.calls.Add(1)
	c.olderThan.Store(int64(olderThan))
	return 0, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSchedulerRunsJobs(t *testing.T) {
	refresher := &countingRefresher{}
	sweeper := &countingSweeper{}
	s := New(Config{
		RefreshInterval: time.Second,
		SweepInterval:   time.Second,
		AbandonAfter:    time.Hour,
	}, refresher, sweeper)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if s.Jobs() != 2 {
		t.Fatalf("expected 2 jobs, got %d", s.Jobs())
	}
	waitFor(t, func() bool { return refresher.calls.Load() > 0 && sweeper.calls.Load() > 0 })
	if time.Duration(sweeper.olderThan.Load()) != time.Hour {
		t.Fatalf("sweeper got wrong threshold %v", time.Duration(sweeper.olderThan.Load()))
	}
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	s := New(Config{RefreshInterval: time.Minute}, &countingRefresher{}, &countingSweeper{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if s.Jobs() != 1 {
		t.Fatalf("expected only the refresh job, got %d", s.Jobs())
	}
}
