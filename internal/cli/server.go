package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ecoquest-service/internal/config"
	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/scheduler"
	transport "ecoquest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API, event stream and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (ECOQUEST_JWT_SECRET) is required")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.relay != nil {
		go func() {
			if err := svc.relay.Run(ctx, nil); err != nil {
				log.Printf("event relay stopped: %v", err)
			}
		}()
	}

	jobs := scheduler.New(scheduler.Config{
		RefreshInterval: config.TTLDuration(cfg.Leaderboards.RefreshInterval, time.Hour),
		SweepInterval:   config.TTLDuration(cfg.Scheduler.SweepInterval, 15*time.Minute),
		AbandonAfter:    config.TTLDuration(cfg.Quiz.AbandonAfter, 24*time.Hour),
	}, svc.leaderboards, svc.attempts)
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	auth := transport.NewJWTAuth(cfg.Auth.JWTSecret)
	handlers := transport.NewHandlers(svc.attempts, svc.gamification, svc.leaderboards, svc.certificates)
	router := transport.NewRouter(auth, handlers, transport.NewWSHandler(auth, svc.hub))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// certificate rendering can take a while; websockets set their own deadlines
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("starting ecoquest service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory loader used when Postgres is not configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"recycling-basics": {
			ID:       "recycling-basics",
			Title:    "Recycling Basics",
			Category: "recycling",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "Which bin does a clean glass jar go in?",
					Type:   domain.QuestionMultipleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "General waste"},
						{ID: "o2", Text: "Glass recycling", Correct: true},
						{ID: "o3", Text: "Compost"},
					},
					Explanation: "Clean glass can be recycled again and again.",
				},
				{
					ID:            "q2",
					Prompt:        "Plastic bags can go in every recycling bin.",
					Type:          domain.QuestionTrueFalse,
					CorrectAnswer: "false",
				},
				{
					ID:            "q3",
					Prompt:        "Turning food scraps into soil is called ____.",
					Type:          domain.QuestionFillBlank,
					CorrectAnswer: "composting",
					Hint:          "It starts with 'comp'.",
				},
				{
					ID:     "q4",
					Prompt: "Match each item to its bin.",
					Type:   domain.QuestionMatchPairs,
					Pairs: []domain.MatchPair{
						{Left: "Newspaper", Right: "Paper"},
						{Left: "Banana peel", Right: "Compost"},
						{Left: "Soda can", Right: "Metal"},
					},
					Points: 3,
				},
			},
			Scoring:         domain.Scoring{PassingScore: 70, MaxAttempts: 3},
			Features:        domain.Features{Shuffle: true, InstantFeedback: true},
			EcoPointsReward: 25,
		},
	}
}
