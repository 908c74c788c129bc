package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the REST API under /api/v1, the event stream on /ws and /healthz.
func NewRouter(auth *JWTAuth, handlers *Handlers, events *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", events.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Route("/quizzes/{id}", func(r chi.Router) {
			r.Post("/start", handlers.StartAttempt)
			r.Post("/submit-answer", handlers.SubmitAnswer)
			r.Post("/complete", handlers.CompleteAttempt)
		})
		r.Get("/attempts/{id}", handlers.GetAttempt)

		r.Route("/gamification", func(r chi.Router) {
			r.Get("/profile", handlers.GetProfile)
			r.Post("/check-achievements", handlers.CheckAchievements)
			r.Post("/activities", handlers.RecordActivity)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/award-points", handlers.AwardPoints)
				r.Post("/award-badge", handlers.AwardBadge)
			})
		})

		r.Get("/leaderboards/{type}/{timeframe}", handlers.GetLeaderboard)
		r.Post("/certificates/generate", handlers.GenerateCertificate)
	})
	return r
}
