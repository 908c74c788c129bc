package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ecoquest-service/internal/domain"
)

type statsRow struct {
	bun.BaseModel `bun:"table:quiz_stats,alias:qs"`

	QuizID            string  `bun:"quiz_id,pk"`
	TotalAttempts     int     `bun:"total_attempts,notnull"`
	CompletedAttempts int     `bun:"completed_attempts,notnull"`
	AverageScore      float64 `bun:"average_score,notnull"`
	AverageTimeSpent  float64 `bun:"average_time_spent,notnull"`
}

// StatsStore keeps quiz telemetry with single-statement upserts so concurrent
// completions never lose an update.
type StatsStore struct {
	db *bun.DB
}

func NewStatsStore(db *bun.DB) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) IncrementAttempts(ctx context.Context, quizID string) error {
	row := statsRow{QuizID: quizID, TotalAttempts: 1}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (quiz_id) DO UPDATE").
		Set("total_attempts = qs.total_attempts + 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	return nil
}

// RecordCompletion folds one completion into the running means:
// avg' = (avg * n + value) / (n + 1).
func (s *StatsStore) RecordCompletion(ctx context.Context, quizID string, percentage, timeSpent int) error {
	row := statsRow{
		QuizID:            quizID,
		CompletedAttempts: 1,
		AverageScore:      float64(percentage),
		AverageTimeSpent:  float64(timeSpent),
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (quiz_id) DO UPDATE").
		Set("completed_attempts = qs.completed_attempts + 1").
		Set("average_score = (qs.average_score * qs.completed_attempts + EXCLUDED.average_score) / (qs.completed_attempts + 1)").
		Set("average_time_spent = (qs.average_time_spent * qs.completed_attempts + EXCLUDED.average_time_spent) / (qs.completed_attempts + 1)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

func (s *StatsStore) Get(ctx context.Context, quizID string) (domain.QuizStats, error) {
	var row statsRow
	err := s.db.NewSelect().Model(&row).Where("qs.quiz_id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizStats{QuizID: quizID}, nil
	}
	if err != nil {
		return domain.QuizStats{}, fmt.Errorf("select stats: %w", err)
	}
	return domain.QuizStats{
		QuizID:            row.QuizID,
		TotalAttempts:     row.TotalAttempts,
		CompletedAttempts: row.CompletedAttempts,
		AverageScore:      row.AverageScore,
		AverageTimeSpent:  row.AverageTimeSpent,
	}, nil
}
