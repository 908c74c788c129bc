package memory

import (
	"context"
	"sync"

	"ecoquest-service/internal/domain"
)

// StatsStore keeps quiz telemetry in memory.
type StatsStore struct {
	mu    sync.Mutex
	stats map[string]domain.QuizStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{stats: make(map[string]domain.QuizStats)}
}

func (s *StatsStore) IncrementAttempts(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[quizID]
	st.QuizID = quizID
	st.TotalAttempts++
	s.stats[quizID] = st
	return nil
}

func (s *StatsStore) RecordCompletion(_ context.Context, quizID string, percentage, timeSpent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[quizID]
	st.QuizID = quizID
	st.RecordCompletion(percentage, timeSpent)
	s.stats[quizID] = st
	return nil
}

func (s *StatsStore) Get(_ context.Context, quizID string) (domain.QuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[quizID]
	if !ok {
		return domain.QuizStats{QuizID: quizID}, nil
	}
	return st, nil
}
