package app_test

import (
	"context"
	"sync"
	"time"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/infra/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock        *testClock
	quizzes      *memory.StaticQuizLoader
	attempts     *memory.AttemptStore
	stats        *memory.StatsStore
	profiles     *memory.ProfileStore
	catalog      *memory.CatalogStore
	hub          *app.EventHub
	gamification *app.GamificationService
	service      *app.AttemptService
}

func newTestEnv() *testEnv {
	ctx := context.Background()
	env := &testEnv{
		clock:    newTestClock(),
		quizzes:  memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": recyclingQuiz()}),
		attempts: memory.NewAttemptStore(),
		stats:    memory.NewStatsStore(),
		profiles: memory.NewProfileStore(),
		catalog:  memory.NewCatalogStore(),
		hub:      app.NewEventHub(),
	}
	for _, l := range domain.DefaultLevels() {
		_ = env.catalog.UpsertLevel(ctx, l)
	}
	env.gamification = app.NewGamificationServiceWithClock(env.profiles, env.catalog, env.hub, env.clock.Now)
	env.service = env.newAttemptService(env.attempts)
	return env
}

func (e *testEnv) newAttemptService(attempts app.AttemptRepository) *app.AttemptService {
	return app.NewAttemptService(attempts, memory.NewQuizRepository(e.quizzes, 0), e.stats, e.gamification, app.AttemptOptions{
		MatchPairs:        app.MatchPairsAllOrNothing,
		FirstAttemptBonus: 10,
		Now:               e.clock.Now,
	})
}

func recyclingQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Recycling Basics",
		Category: "recycling",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Which bin takes glass bottles?",
				Type:   domain.QuestionMultipleChoice,
				Options: []domain.Option{
					{ID: "o1", Text: "Blue"},
					{ID: "o2", Text: "Green", Correct: true},
				},
				Explanation: "Glass goes in the green bin.",
			},
			{
				ID:            "q2",
				Prompt:        "Paper can be recycled.",
				Type:          domain.QuestionTrueFalse,
				CorrectAnswer: "true",
			},
		},
		Scoring:         domain.Scoring{PassingScore: 50},
		EcoPointsReward: 20,
	}
}
