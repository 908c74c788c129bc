package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/infra/postgres"
	pgmigrations "ecoquest-service/internal/infra/postgres/migrations"
	infraredis "ecoquest-service/internal/infra/redis"
)

type stack struct {
	db           *bun.DB
	pool         *pgxpool.Pool
	redis        *goredis.Client
	hub          *app.EventHub
	relay        *infraredis.EventRelay
	attempts     *app.AttemptService
	gamification *app.GamificationService
	leaderboards *app.LeaderboardService
	stats        *postgres.StatsStore
	catalog      *postgres.CatalogStore
}

func TestEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	s := newStack(t, ctx, pgURL, redisURL)

	t.Run("attempt flow awards points and streams events", func(t *testing.T) {
		events, unsubscribe := s.hub.Subscribe("u1")
		defer unsubscribe()

		started, err := s.attempts.Start(ctx, "quiz-1", "u1")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		attemptID := started.Attempt.ID

		var conflict *domain.ConflictError
		if _, err := s.attempts.Start(ctx, "quiz-1", "u1"); !errors.As(err, &conflict) || conflict.ExistingAttemptID != attemptID {
			t.Fatalf("expected resumable conflict, got %v", err)
		}

		for qid, answer := range map[string]string{"q1": `"o2"`, "q2": `"true"`} {
			if _, err := s.attempts.SubmitAnswer(ctx, "quiz-1", "u1", app.AnswerSubmission{
				AttemptID: attemptID, QuestionID: qid, Answer: []byte(answer),
			}); err != nil {
				t.Fatalf("submit %s: %v", qid, err)
			}
		}

		res, err := s.attempts.Complete(ctx, "quiz-1", attemptID, "u1", "", 40)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if !res.Passed || res.Score.Percentage != 100 || res.EcoPointsEarned != 30 {
			t.Fatalf("unexpected completion %+v", res)
		}

		stored, err := s.attempts.GetAttempt(ctx, attemptID, "u1")
		if err != nil {
			t.Fatalf("get attempt: %v", err)
		}
		if stored.Status != domain.AttemptCompleted || len(stored.Answers) != 2 || stored.Version < 3 {
			t.Fatalf("attempt not persisted as completed: %+v", stored)
		}

		profile, err := s.gamification.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("profile: %v", err)
		}
		if profile.EcoPoints != 30 || len(profile.PointsHistory) != 2 || profile.Streak.Current != 1 {
			t.Fatalf("unexpected profile %+v", profile)
		}

		select {
		case event := <-events:
			if event.Type != domain.EventPointsAwarded || event.UserID != "u1" {
				t.Fatalf("unexpected first event %+v", event)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no event relayed through redis")
		}

		stats, err := s.stats.Get(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.TotalAttempts != 1 || stats.CompletedAttempts != 1 || stats.AverageScore != 100 {
			t.Fatalf("unexpected stats %+v", stats)
		}
	})

	t.Run("concurrent starts create one attempt", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make(chan string, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if res, err := s.attempts.Start(ctx, "quiz-1", "racer"); err == nil {
					ids <- res.Attempt.ID
				}
			}()
		}
		wg.Wait()
		close(ids)
		if n := len(ids); n != 1 {
			t.Fatalf("expected exactly one started attempt, got %d", n)
		}
		var count int
		if err := s.db.NewSelect().Table("quiz_attempts").ColumnExpr("count(*)").
			Where("user_id = ?", "racer").Where("status = ?", "in-progress").Scan(ctx, &count); err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected one in-progress row, got %d", count)
		}
	})

	t.Run("concurrent awards serialize on the profile row", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.gamification.AwardPoints(ctx, app.AwardInput{
					UserID: "busy", Points: 5, Source: domain.SourceAdmin,
					Description: "cleanup", SourceID: fmt.Sprintf("award-%d", i),
				})
				if err != nil {
					t.Errorf("award %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		profile, err := s.gamification.GetProfile(ctx, "busy")
		if err != nil {
			t.Fatalf("profile: %v", err)
		}
		if profile.EcoPoints != 50 || len(profile.PointsHistory) != 10 {
			t.Fatalf("lost updates: points=%d entries=%d", profile.EcoPoints, len(profile.PointsHistory))
		}
	})

	t.Run("catalog drives levels and leaderboards", func(t *testing.T) {
		levels, err := s.catalog.Levels(ctx)
		if err != nil || len(levels) != len(domain.DefaultLevels()) {
			t.Fatalf("expected default levels on empty table, got %v %v", levels, err)
		}
		if err := s.catalog.UpsertBadge(ctx, domain.Badge{
			ID: "first-quiz", Name: "First Quiz", Active: true, Points: 5,
			Criteria: domain.BadgeCriteria{Type: domain.CriteriaQuizzes, Value: 1},
		}); err != nil {
			t.Fatalf("upsert badge: %v", err)
		}
		res, err := s.gamification.CheckAchievements(ctx, "u1")
		if err != nil {
			t.Fatalf("check achievements: %v", err)
		}
		if len(res.NewBadges) != 1 || res.TotalPoints != 35 {
			t.Fatalf("expected first-quiz badge worth 5, got %+v", res)
		}

		n, err := s.leaderboards.UpdateLeaderboards(ctx)
		if err != nil || n == 0 {
			t.Fatalf("refresh: n=%d err=%v", n, err)
		}
		board, err := s.leaderboards.Get(ctx, domain.LeaderboardKey{Type: domain.LeaderboardPoints, Timeframe: domain.TimeframeAllTime})
		if err != nil {
			t.Fatalf("get board: %v", err)
		}
		if len(board.Entries) != 2 || board.Entries[0].UserID != "busy" || board.Entries[1].UserID != "u1" {
			t.Fatalf("unexpected board %+v", board.Entries)
		}
	})
}

func newStack(t *testing.T, ctx context.Context, pgURL, redisURL string) *stack {
	t.Helper()
	db := postgres.Open(pgURL)
	t.Cleanup(func() { _ = db.Close() })

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := postgres.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	redisClient := goredis.NewClient(opts)
	t.Cleanup(func() { _ = redisClient.Close() })

	hub := app.NewEventHub()
	relay := infraredis.NewEventRelay(redisClient, hub)
	ready := make(chan struct{})
	go func() { _ = relay.Run(ctx, ready) }()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatalf("event relay did not subscribe")
	}

	profiles := postgres.NewProfileStore(db)
	catalog := postgres.NewCatalogStore(db)
	stats := postgres.NewStatsStore(db)
	gamification := app.NewGamificationService(profiles, catalog, relay)
	attempts := app.NewAttemptService(
		postgres.NewAttemptStore(db),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		stats,
		gamification,
		app.AttemptOptions{MatchPairs: app.MatchPairsAllOrNothing, FirstAttemptBonus: 10},
	)
	return &stack{
		db:           db,
		pool:         pool,
		redis:        redisClient,
		hub:          hub,
		relay:        relay,
		attempts:     attempts,
		gamification: gamification,
		leaderboards: app.NewLeaderboardService(profiles, infraredis.NewLeaderboardStore(redisClient), 0),
		stats:        stats,
		catalog:      catalog,
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "eco", "POSTGRES_PASSWORD": "ecopass", "POSTGRES_DB": "ecoquest"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://eco:ecopass@%s:%s/ecoquest?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(context.Background())
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Ocean Friends",
		Category: "oceans",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Which of these harms sea turtles most?",
				Type:   domain.QuestionMultipleChoice,
				Options: []domain.Option{
					{ID: "o1", Text: "Seaweed"},
					{ID: "o2", Text: "Plastic bags", Correct: true},
					{ID: "o3", Text: "Sand"},
				},
			},
			{
				ID:            "q2",
				Prompt:        "Coral reefs are alive.",
				Type:          domain.QuestionTrueFalse,
				CorrectAnswer: "true",
			},
		},
		Scoring:         domain.Scoring{PassingScore: 50, MaxAttempts: 0},
		EcoPointsReward: 20,
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
