package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/config"
	"ecoquest-service/internal/infra/memory"
	"ecoquest-service/internal/infra/pdf"
	"ecoquest-service/internal/infra/postgres"
	redisinfra "ecoquest-service/internal/infra/redis"
)

// services is the wired object graph shared by the server and the maintenance commands.
// Postgres backs durable state when configured, Redis backs caches, snapshots and event fan-out.
type services struct {
	cfg          config.Config
	db           *bun.DB
	pool         *pgxpool.Pool
	redis        *redis.Client
	hub          *app.EventHub
	relay        *redisinfra.EventRelay
	quizCache    *redisinfra.QuizRepository
	attempts     *app.AttemptService
	gamification *app.GamificationService
	leaderboards *app.LeaderboardService
	certificates *app.CertificateService
}

func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	policy, err := app.ParseMatchPairsPolicy(cfg.Scoring.MatchPairs)
	if err != nil {
		return nil, err
	}

	s := &services{cfg: cfg, hub: app.NewEventHub()}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var (
		loader       memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		attemptStore app.AttemptRepository
		statsStore   app.QuizStatsRepository
		profileStore app.ProfileRepository
		catalogStore app.CatalogRepository
		boardStore   app.LeaderboardRepository
	)
	if cfg.Postgres.URL != "" {
		s.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.db = postgres.Open(cfg.Postgres.URL)
		loader = postgres.NewQuizLoader(s.pool)
		attemptStore = postgres.NewAttemptStore(s.db)
		statsStore = postgres.NewStatsStore(s.db)
		profileStore = postgres.NewProfileStore(s.db)
		catalogStore = postgres.NewCatalogStore(s.db)
	} else {
		log.Printf("postgres not configured; using in-memory stores")
		attemptStore = memory.NewAttemptStore()
		statsStore = memory.NewStatsStore()
		profileStore = memory.NewProfileStore()
		catalogStore = memory.NewCatalogStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var publisher app.Publisher = s.hub
	if s.redis != nil {
		s.quizCache = redisinfra.NewQuizRepository(s.redis, loader, quizTTL)
		quizRepo = s.quizCache
		boardStore = redisinfra.NewLeaderboardStore(s.redis)
		s.relay = redisinfra.NewEventRelay(s.redis, s.hub)
		publisher = s.relay
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		boardStore = memory.NewLeaderboardStore()
	}

	s.gamification = app.NewGamificationService(profileStore, catalogStore, publisher)
	s.attempts = app.NewAttemptService(attemptStore, quizRepo, statsStore, s.gamification, app.AttemptOptions{
		MatchPairs:        policy,
		FirstAttemptBonus: cfg.Gamification.FirstAttemptBonus,
	})
	s.leaderboards = app.NewLeaderboardService(profileStore, boardStore, cfg.Leaderboards.Size)
	renderer := pdf.NewChromeRenderer(cfg.Certificates.ChromePath, config.TTLDuration(cfg.Certificates.Timeout, 30*time.Second))
	s.certificates = app.NewCertificateService(catalogStore, s.gamification, renderer)
	return s, nil
}

// Close releases every connection opened by newServices.
func (s *services) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func loadServices(ctx context.Context, configPath string) (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newServices(ctx, cfg)
}
