package app

import (
	"context"
	"time"

	"ecoquest-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptRepository stores attempts as their own records.
//
// Create must fail with domain.ErrAttemptInProgress when the user already holds an
// in-progress attempt on the quiz, atomically with the insert. Update must fail with
// domain.ErrVersionConflict when the stored version differs from attempt.Version, and
// bumps the version on success.
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	ListByUserQuiz(ctx context.Context, quizID, userID string) ([]domain.Attempt, error)
	Update(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	ListStale(ctx context.Context, before time.Time) ([]domain.Attempt, error)
}

// QuizStatsRepository keeps per-quiz telemetry.
type QuizStatsRepository interface {
	IncrementAttempts(ctx context.Context, quizID string) error
	RecordCompletion(ctx context.Context, quizID string, percentage, timeSpent int) error
	Get(ctx context.Context, quizID string) (domain.QuizStats, error)
}

// ProfileRepository stores gamification profiles.
//
// Update runs fn against the current profile (a fresh one when the user has none yet)
// and persists the result as one unit; if fn returns an error nothing is written.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (domain.Profile, error)
	Update(ctx context.Context, userID string, fn func(p *domain.Profile) error) (domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
}

// CatalogRepository serves admin-owned reference data.
type CatalogRepository interface {
	Badges(ctx context.Context) ([]domain.Badge, error)
	Levels(ctx context.Context) ([]domain.Level, error)
	Template(ctx context.Context, templateID string) (domain.CertificateTemplate, error)
}

// LeaderboardRepository persists computed leaderboard snapshots.
type LeaderboardRepository interface {
	Save(ctx context.Context, board domain.Leaderboard) error
	Get(ctx context.Context, key domain.LeaderboardKey) (domain.Leaderboard, error)
}

// Publisher delivers gamification events to interested clients.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) {}
