package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// LeaderboardRefresher rebuilds every leaderboard snapshot.
type LeaderboardRefresher interface {
	UpdateLeaderboards(ctx context.Context) (int, error)
}

// AttemptSweeper abandons attempts idle for longer than olderThan.
type AttemptSweeper interface {
	AbandonStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config sets job intervals. A zero interval disables the job.
type Config struct {
	RefreshInterval time.Duration
	SweepInterval   time.Duration
	AbandonAfter    time.Duration
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	cfg         Config
	leaderboard LeaderboardRefresher
	sweeper     AttemptSweeper
	ctx         context.Context
}

func New(cfg Config, leaderboard LeaderboardRefresher, sweeper AttemptSweeper) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		cfg:         cfg,
		leaderboard: leaderboard,
		sweeper:     sweeper,
		ctx:         context.Background(),
	}
}

// Start registers the jobs and runs them in the background. Each job also runs once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if s.cfg.RefreshInterval > 0 && s.leaderboard != nil {
		if _, err := s.scheduler.Every(s.cfg.RefreshInterval).SingletonMode().Do(s.refreshLeaderboards); err != nil {
			return err
		}
	}
	if s.cfg.SweepInterval > 0 && s.sweeper != nil {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).SingletonMode().Do(s.sweepAttempts); err != nil {
			return err
		}
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) refreshLeaderboards() {
	n, err := s.leaderboard.UpdateLeaderboards(s.ctx)
	if err != nil {
		log.Printf("leaderboard refresh failed after %d boards: %v", n, err)
		return
	}
	log.Printf("leaderboards refreshed: %d boards", n)
}

func (s *Scheduler) sweepAttempts() {
	n, err := s.sweeper.AbandonStale(s.ctx, s.cfg.AbandonAfter)
	if err != nil {
		log.Printf("attempt sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("abandoned %d stale attempts", n)
	}
}
