package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecoquest-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	// byUserQuiz indexes attempt ids by quizID|userID in creation order.
	byUserQuiz map[string][]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts:   make(map[string]domain.Attempt),
		byUserQuiz: make(map[string][]string),
	}
}

func userQuizKey(quizID, userID string) string {
	return quizID + "|" + userID
}

// Create inserts attempt unless the user already holds an in-progress attempt on the quiz.
func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userQuizKey(attempt.QuizID, attempt.UserID)
	for _, id := range s.byUserQuiz[key] {
		existing := s.attempts[id]
		if existing.Status == domain.AttemptInProgress {
			return domain.ErrAttemptInProgress
		}
		if existing.Number == attempt.Number {
			return domain.ErrVersionConflict
		}
	}
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	s.attempts[attempt.ID] = attempt.Clone()
	s.byUserQuiz[key] = append(s.byUserQuiz[key], attempt.ID)
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (s *AttemptStore) ListByUserQuiz(_ context.Context, quizID, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUserQuiz[userQuizKey(quizID, userID)]
	out := make([]domain.Attempt, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.attempts[id].Clone())
	}
	return out, nil
}

// Update stores attempt if its version matches the stored one and returns it with the next version.
func (s *AttemptStore) Update(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if current.Version != attempt.Version {
		return domain.Attempt{}, domain.ErrVersionConflict
	}
	attempt.Version++
	s.attempts[attempt.ID] = attempt.Clone()
	return attempt.Clone(), nil
}

// ListStale returns in-progress attempts with no activity since before, oldest first.
func (s *AttemptStore) ListStale(_ context.Context, before time.Time) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.Status == domain.AttemptInProgress && attempt.LastActivityAt.Before(before) {
			out = append(out, attempt.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return out, nil
}
