package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/infra/memory"
)

const testSecret = "test-secret"

type fakeRenderer struct{}

func (fakeRenderer) RenderPDF(_ context.Context, html string) ([]byte, error) {
	return append([]byte("%PDF-1.4\n"), html...), nil
}

type testServer struct {
	*httptest.Server
	auth         *JWTAuth
	hub          *app.EventHub
	catalog      *memory.CatalogStore
	leaderboards *app.LeaderboardService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	quizzes := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	catalog := memory.NewCatalogStore()
	profiles := memory.NewProfileStore()
	hub := app.NewEventHub()
	gamification := app.NewGamificationService(profiles, catalog, hub)
	attempts := app.NewAttemptService(memory.NewAttemptStore(), memory.NewQuizRepository(quizzes, time.Minute), memory.NewStatsStore(), gamification, app.AttemptOptions{
		MatchPairs:        app.MatchPairsAllOrNothing,
		FirstAttemptBonus: 10,
	})
	leaderboards := app.NewLeaderboardService(profiles, memory.NewLeaderboardStore(), 10)
	certificates := app.NewCertificateService(catalog, gamification, fakeRenderer{})

	auth := NewJWTAuth(testSecret)
	router := NewRouter(auth, NewHandlers(attempts, gamification, leaderboards, certificates), NewWSHandler(auth, hub))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, auth: auth, hub: hub, catalog: catalog, leaderboards: leaderboards}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(userID, "Kid "+userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

type apiResponse struct {
	Success   bool              `json:"success"`
	Data      json.RawMessage   `json:"data"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
	Missing   []string          `json:"missing"`
	AttemptID string            `json:"attemptId"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Save Water",
		Category: "water",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Which saves more water?",
				Type:   domain.QuestionMultipleChoice,
				Options: []domain.Option{
					{ID: "o1", Text: "A bath"},
					{ID: "o2", Text: "A short shower", Correct: true},
				},
				Points: 1,
			},
			{
				ID:            "q2",
				Prompt:        "Turning off the tap while brushing saves water.",
				Type:          domain.QuestionTrueFalse,
				CorrectAnswer: "true",
				Points:        1,
			},
		},
		Scoring:         domain.Scoring{PassingScore: 50, MaxAttempts: 3},
		Features:        domain.Features{InstantFeedback: true},
		EcoPointsReward: 20,
	}
}
