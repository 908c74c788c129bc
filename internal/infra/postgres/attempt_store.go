package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ecoquest-service/internal/domain"
)

const oneInProgressIndex = "quiz_attempts_one_in_progress"

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID                string          `bun:"id,pk"`
	QuizID            string          `bun:"quiz_id,notnull"`
	UserID            string          `bun:"user_id,notnull"`
	Number            int             `bun:"attempt_number,notnull"`
	Status            string          `bun:"status,notnull"`
	StartedAt         time.Time       `bun:"started_at,notnull"`
	LastActivityAt    time.Time       `bun:"last_activity_at,notnull"`
	CompletedAt       *time.Time      `bun:"completed_at"`
	Answers           []domain.Answer `bun:"answers,type:jsonb,notnull"`
	Score             domain.Score    `bun:"score,type:jsonb,notnull"`
	Passed            bool            `bun:"passed,notnull"`
	TimeSpent         int             `bun:"time_spent,notnull"`
	CertificateIssued bool            `bun:"certificate_issued,notnull"`
	Version           int             `bun:"version,notnull"`
}

func toAttemptRow(a domain.Attempt) attemptRow {
	answers := a.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return attemptRow{
		ID:                a.ID,
		QuizID:            a.QuizID,
		UserID:            a.UserID,
		Number:            a.Number,
		Status:            string(a.Status),
		StartedAt:         a.StartedAt,
		LastActivityAt:    a.LastActivityAt,
		CompletedAt:       a.CompletedAt,
		Answers:           answers,
		Score:             a.Score,
		Passed:            a.Passed,
		TimeSpent:         a.TimeSpent,
		CertificateIssued: a.CertificateIssued,
		Version:           a.Version,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:                r.ID,
		QuizID:            r.QuizID,
		UserID:            r.UserID,
		Number:            r.Number,
		Status:            domain.AttemptStatus(r.Status),
		StartedAt:         r.StartedAt,
		LastActivityAt:    r.LastActivityAt,
		CompletedAt:       r.CompletedAt,
		Answers:           r.Answers,
		Score:             r.Score,
		Passed:            r.Passed,
		TimeSpent:         r.TimeSpent,
		CertificateIssued: r.CertificateIssued,
		Version:           r.Version,
	}
}

// AttemptStore persists attempts in quiz_attempts. A partial unique index keeps a
// single in-progress attempt per user and quiz.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	row := toAttemptRow(attempt)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == oneInProgressIndex {
			return domain.ErrAttemptInProgress
		}
		return domain.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("qa.id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) ListByUserQuiz(ctx context.Context, quizID, userID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where("qa.quiz_id = ?", quizID).
		Where("qa.user_id = ?", userID).
		Order("qa.attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return toAttempts(rows), nil
}

// Update writes attempt only if the stored version still equals attempt.Version.
func (s *AttemptStore) Update(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	expected := attempt.Version
	attempt.Version++
	row := toAttemptRow(attempt)
	res, err := s.db.NewUpdate().Model(&row).
		ExcludeColumn("id", "quiz_id", "user_id", "attempt_number", "started_at").
		WherePK().
		Where("qa.version = ?", expected).
		Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return domain.Attempt{}, domain.ErrAttemptInProgress
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("update attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		exists, err := s.db.NewSelect().Model((*attemptRow)(nil)).Where("qa.id = ?", attempt.ID).Exists(ctx)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("check attempt: %w", err)
		}
		if !exists {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, domain.ErrVersionConflict
	}
	return attempt, nil
}

func (s *AttemptStore) ListStale(ctx context.Context, before time.Time) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where("qa.status = ?", string(domain.AttemptInProgress)).
		Where("qa.last_activity_at < ?", before).
		Order("qa.last_activity_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale attempts: %w", err)
	}
	return toAttempts(rows), nil
}

func toAttempts(rows []attemptRow) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
