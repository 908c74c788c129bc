package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
)

// Handlers exposes the quiz, gamification, leaderboard and certificate use cases over REST.
type Handlers struct {
	attempts     *app.AttemptService
	gamification *app.GamificationService
	leaderboards *app.LeaderboardService
	certificates *app.CertificateService
}

func NewHandlers(attempts *app.AttemptService, gamification *app.GamificationService, leaderboards *app.LeaderboardService, certificates *app.CertificateService) *Handlers {
	return &Handlers{
		attempts:     attempts,
		gamification: gamification,
		leaderboards: leaderboards,
		certificates: certificates,
	}
}

type submitAnswerRequest struct {
	AttemptID  string          `json:"attemptId" validate:"required"`
	QuestionID string          `json:"questionId" validate:"required"`
	Answer     json.RawMessage `json:"answer" validate:"required"`
	TimeSpent  int             `json:"timeSpent" validate:"gte=0"`
	HintsUsed  int             `json:"hintsUsed" validate:"gte=0"`
}

type completeRequest struct {
	AttemptID      string `json:"attemptId" validate:"required"`
	TotalTimeSpent int    `json:"totalTimeSpent" validate:"gte=0"`
}

// activityRequest is a self-reported game, experiment or topic. Quiz activities only come
// from completed attempts and points are fixed per kind.
type activityRequest struct {
	Type     string `json:"type" validate:"required,oneof=game experiment topic"`
	RefID    string `json:"refId" validate:"required"`
	Category string `json:"category"`
	Score    int    `json:"score" validate:"gte=0,lte=100"`
	Points   int    `json:"points" validate:"isdefault"`
}

type awardPointsRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Points      int    `json:"points" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type awardBadgeRequest struct {
	UserID  string `json:"userId" validate:"required"`
	BadgeID string `json:"badgeId" validate:"required"`
}

type certificateRequest struct {
	TemplateID string            `json:"templateId" validate:"required"`
	Data       map[string]string `json:"data"`
}

func (h *Handlers) StartAttempt(w http.ResponseWriter, r *http.Request) {
	res, err := h.attempts.Start(r.Context(), chi.URLParam(r, "id"), ClaimsFrom(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	feedback, err := h.attempts.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), ClaimsFrom(r.Context()).UserID, app.AnswerSubmission{
		AttemptID:  req.AttemptID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		TimeSpent:  req.TimeSpent,
		HintsUsed:  req.HintsUsed,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"saved": true, "feedback": feedback})
}

func (h *Handlers) CompleteAttempt(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	claims := ClaimsFrom(r.Context())
	res, err := h.attempts.Complete(r.Context(), chi.URLParam(r, "id"), req.AttemptID, claims.UserID, claims.Name, req.TotalTimeSpent)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handlers) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.GetAttempt(r.Context(), chi.URLParam(r, "id"), ClaimsFrom(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, attempt)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.gamification.GetProfile(r.Context(), ClaimsFrom(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

func (h *Handlers) CheckAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := h.gamification.CheckAchievements(r.Context(), ClaimsFrom(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handlers) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	claims := ClaimsFrom(r.Context())
	kind := domain.ActivityKind(req.Type)
	res, err := h.gamification.RecordActivity(r.Context(), app.ActivityInput{
		UserID:      claims.UserID,
		DisplayName: claims.Name,
		Kind:        kind,
		RefID:       req.RefID,
		Category:    req.Category,
		Score:       req.Score,
		Points:      kind.Points(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handlers) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req awardPointsRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	res, err := h.gamification.AwardPoints(r.Context(), app.AwardInput{
		UserID:      req.UserID,
		Points:      req.Points,
		Source:      domain.SourceAdmin,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handlers) AwardBadge(w http.ResponseWriter, r *http.Request) {
	var req awardBadgeRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	res, err := h.gamification.AwardBadge(r.Context(), req.UserID, req.BadgeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	key := domain.LeaderboardKey{
		Type:      domain.LeaderboardType(chi.URLParam(r, "type")),
		Timeframe: domain.Timeframe(chi.URLParam(r, "timeframe")),
		Category:  r.URL.Query().Get("category"),
	}
	fields := map[string]string{}
	switch key.Type {
	case domain.LeaderboardPoints, domain.LeaderboardQuizzes, domain.LeaderboardStreak:
	default:
		fields["type"] = "oneof points quizzes streak"
	}
	if !key.Timeframe.Valid() {
		fields["timeframe"] = "oneof daily weekly monthly all-time"
	}
	if len(fields) > 0 {
		handleServiceError(w, &domain.ValidationError{Message: "invalid leaderboard", Fields: fields})
		return
	}
	board, err := h.leaderboards.Get(r.Context(), key)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, board)
}

func (h *Handlers) GenerateCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := decode(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	pdf, cert, err := h.certificates.Generate(r.Context(), ClaimsFrom(r.Context()).UserID, req.TemplateID, req.Data)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="certificate-`+cert.ID+`.pdf"`)
	w.Header().Set("X-Verification-Code", cert.VerificationCode)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
