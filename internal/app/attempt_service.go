package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ecoquest-service/internal/domain"
)

// Rewarder grants gamification rewards for passed quizzes.
type Rewarder interface {
	RecordActivity(ctx context.Context, in ActivityInput) (AwardResult, error)
	IssueCertificate(ctx context.Context, userID string, in CertificateInput) (domain.Certificate, error)
}

// AttemptOptions tune the attempt lifecycle.
type AttemptOptions struct {
	MatchPairs        MatchPairsPolicy
	FirstAttemptBonus int
	Now               func() time.Time
	// Shuffle permutes questions and options; rand.Shuffle when nil.
	Shuffle func(n int, swap func(i, j int))
}

// AttemptService runs the start/answer/complete lifecycle of quiz attempts.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	stats    QuizStatsRepository
	rewards  Rewarder
	scorer   Scorer
	bonus    int
	now      func() time.Time
	newID    func() string
	shuffle  func(n int, swap func(i, j int))
}

func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, stats QuizStatsRepository, rewards Rewarder, opts AttemptOptions) *AttemptService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	shuffle := opts.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		stats:    stats,
		rewards:  rewards,
		scorer:   Scorer{MatchPairs: opts.MatchPairs},
		bonus:    opts.FirstAttemptBonus,
		now:      now,
		newID:    uuid.NewString,
		shuffle:  shuffle,
	}
}

// PublicOption is an option without its correctness flag.
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublicQuestion is a question as shown while an attempt is running.
type PublicQuestion struct {
	ID       string              `json:"id"`
	Prompt   string              `json:"prompt"`
	Type     domain.QuestionType `json:"type"`
	Options  []PublicOption      `json:"options,omitempty"`
	Left     []string            `json:"left,omitempty"`
	Right    []string            `json:"right,omitempty"`
	Points   int                 `json:"points"`
	Hint     string              `json:"hint,omitempty"`
	ImageURL string              `json:"imageUrl,omitempty"`
}

// StartResult is returned when an attempt begins.
type StartResult struct {
	AttemptID string           `json:"attemptId"`
	Attempt   domain.Attempt   `json:"attempt"`
	Questions []PublicQuestion `json:"questions"`
	TimeLimit int              `json:"timeLimit"`
	Features  domain.Features  `json:"features"`
}

// AnswerSubmission is one answer sent during an attempt.
type AnswerSubmission struct {
	AttemptID  string
	QuestionID string
	Answer     json.RawMessage
	TimeSpent  int
	HintsUsed  int
}

// AnswerFeedback is returned for quizzes with instant feedback.
type AnswerFeedback struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	PointsEarned  int    `json:"pointsEarned"`
	Explanation   string `json:"explanation,omitempty"`
	CorrectAnswer any    `json:"correctAnswer,omitempty"`
}

// CompletionResult is the outcome of completing an attempt.
type CompletionResult struct {
	Attempt           domain.Attempt    `json:"attempt"`
	Score             domain.Score      `json:"score"`
	Passed            bool              `json:"passed"`
	EcoPointsEarned   int               `json:"ecoPointsEarned"`
	CertificateIssued bool              `json:"certificateIssued"`
	Rewards           *AwardResult      `json:"rewards,omitempty"`
	Questions         []domain.Question `json:"questions"`
}

// Start opens a new in-progress attempt for userID on quizID.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (StartResult, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}

	prior, err := s.attempts.ListByUserQuiz(ctx, quizID, userID)
	if err != nil {
		return StartResult{}, domain.WrapOp("list attempts", err)
	}
	number := 1
	for _, a := range prior {
		if a.Status == domain.AttemptInProgress {
			return StartResult{}, &domain.ConflictError{
				Message:           "an attempt is already in progress",
				ExistingAttemptID: a.ID,
			}
		}
		if a.Number >= number {
			number = a.Number + 1
		}
	}
	if limit := quiz.Scoring.MaxAttempts; limit > 0 && len(prior) >= limit {
		return StartResult{}, &domain.ConflictError{Message: fmt.Sprintf("maximum attempts (%d) reached", limit)}
	}
	if err := checkRetake(quiz.Scoring.Retake, prior); err != nil {
		return StartResult{}, err
	}

	now := s.now()
	attempt := domain.Attempt{
		ID:             s.newID(),
		QuizID:         quizID,
		UserID:         userID,
		Number:         number,
		Status:         domain.AttemptInProgress,
		StartedAt:      now,
		LastActivityAt: now,
		Answers:        []domain.Answer{},
		Version:        1,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrAttemptInProgress) {
			return StartResult{}, s.inProgressConflict(ctx, quizID, userID)
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return StartResult{}, &domain.ConflictError{Message: "attempt was started concurrently, retry"}
		}
		return StartResult{}, domain.WrapOp("create attempt", err)
	}

	if s.stats != nil {
		if err := s.stats.IncrementAttempts(ctx, quizID); err != nil {
			log.Printf("quiz stats: increment attempts for %s: %v", quizID, err)
		}
	}

	return StartResult{
		AttemptID: attempt.ID,
		Attempt:   attempt,
		Questions: s.publicQuestions(quiz),
		TimeLimit: quiz.TimeLimit,
		Features:  quiz.Features,
	}, nil
}

func checkRetake(policy domain.RetakePolicy, prior []domain.Attempt) error {
	for _, a := range prior {
		if a.Status != domain.AttemptCompleted {
			continue
		}
		switch {
		case policy == domain.RetakeNever:
			return &domain.ConflictError{Message: "this quiz cannot be retaken"}
		case policy == domain.RetakeUntilPassed && a.Passed:
			return &domain.ConflictError{Message: "this quiz has already been passed"}
		}
	}
	return nil
}

// inProgressConflict reports a lost start race with the winner's attempt id when it can be found.
func (s *AttemptService) inProgressConflict(ctx context.Context, quizID, userID string) error {
	conflict := &domain.ConflictError{Message: "an attempt is already in progress"}
	attempts, err := s.attempts.ListByUserQuiz(ctx, quizID, userID)
	if err != nil {
		return conflict
	}
	for _, a := range attempts {
		if a.Status == domain.AttemptInProgress {
			conflict.ExistingAttemptID = a.ID
			break
		}
	}
	return conflict
}

// SubmitAnswer scores and stores one answer, replacing any earlier answer to the same question.
// Feedback is nil unless the quiz has instant feedback enabled.
func (s *AttemptService) SubmitAnswer(ctx context.Context, quizID, userID string, sub AnswerSubmission) (*AnswerFeedback, error) {
	attempt, err := s.loadActive(ctx, quizID, sub.AttemptID, userID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	question, ok := quiz.Question(sub.QuestionID)
	if !ok {
		return nil, &domain.NotFoundError{Message: "question not found: " + sub.QuestionID, Err: domain.ErrQuestionNotFound}
	}
	correct, points, err := s.scorer.EvaluateAnswer(question, sub.Answer)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt.UpsertAnswer(domain.Answer{
		QuestionID:   question.ID,
		Value:        sub.Answer,
		Correct:      correct,
		PointsEarned: points,
		TimeSpent:    sub.TimeSpent,
		HintsUsed:    sub.HintsUsed,
		AnsweredAt:   now,
	})
	attempt.LastActivityAt = now
	if _, err := s.save(ctx, attempt); err != nil {
		return nil, err
	}

	if !quiz.Features.InstantFeedback {
		return nil, nil
	}
	return &AnswerFeedback{
		QuestionID:    question.ID,
		Correct:       correct,
		PointsEarned:  points,
		Explanation:   question.Explanation,
		CorrectAnswer: revealAnswer(question),
	}, nil
}

// Complete finalizes the score and, on a pass, grants rewards before the attempt is
// marked completed. Rewards are keyed by attempt id, so retrying after a failed save
// never grants them twice. A non-empty displayName is stored on the player's profile.
func (s *AttemptService) Complete(ctx context.Context, quizID, attemptID, userID, displayName string, totalTimeSpent int) (CompletionResult, error) {
	attempt, err := s.loadActive(ctx, quizID, attemptID, userID)
	if err != nil {
		return CompletionResult{}, err
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return CompletionResult{}, err
	}
	score, err := FinalizeScore(attempt, quiz.Questions)
	if err != nil {
		return CompletionResult{}, err
	}
	passed := score.Percentage >= quiz.Scoring.PassingScore

	result := CompletionResult{Score: score, Passed: passed, Questions: quiz.Questions}
	if passed && s.rewards != nil {
		bonus := 0
		if attempt.Number == 1 {
			bonus = s.bonus
		}
		rewards, err := s.rewards.RecordActivity(ctx, ActivityInput{
			UserID:      userID,
			DisplayName: displayName,
			Kind:        domain.ActivityQuiz,
			RefID:       quiz.ID,
			Category:    quiz.Category,
			Score:       score.Percentage,
			Points:      quiz.EcoPointsReward,
			Description: "Completed quiz: " + quiz.Title,
			SourceID:    attempt.ID,
			BonusPoints: bonus,
		})
		if err != nil {
			return CompletionResult{}, domain.WrapOp("award quiz rewards", err)
		}
		result.Rewards = &rewards
		result.EcoPointsEarned = quiz.EcoPointsReward + bonus

		if rule := quiz.Certificate; rule.Enabled && score.Percentage >= rule.MinScore {
			if _, err := s.rewards.IssueCertificate(ctx, userID, CertificateInput{
				Title:      quiz.Title,
				QuizID:     quiz.ID,
				TemplateID: rule.TemplateID,
			}); err != nil {
				return CompletionResult{}, domain.WrapOp("issue certificate", err)
			}
			result.CertificateIssued = true
		}
	}

	now := s.now()
	attempt.Status = domain.AttemptCompleted
	attempt.CompletedAt = &now
	attempt.LastActivityAt = now
	attempt.TimeSpent = totalTimeSpent
	attempt.Score = score
	attempt.Passed = passed
	attempt.CertificateIssued = result.CertificateIssued
	saved, err := s.save(ctx, attempt)
	if err != nil {
		return CompletionResult{}, err
	}
	result.Attempt = saved

	if s.stats != nil {
		if err := s.stats.RecordCompletion(ctx, quizID, score.Percentage, totalTimeSpent); err != nil {
			log.Printf("quiz stats: record completion for %s: %v", quizID, err)
		}
	}
	return result, nil
}

// GetAttempt returns an attempt owned by userID.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.Attempt{}, &domain.NotFoundError{Message: "attempt not found", Err: err}
	}
	if err != nil {
		return domain.Attempt{}, domain.WrapOp("load attempt", err)
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, &domain.AuthorizationError{Message: "attempt belongs to another user"}
	}
	return attempt, nil
}

// AbandonStale moves in-progress attempts idle for longer than olderThan to abandoned.
// Attempts touched concurrently are skipped.
func (s *AttemptService) AbandonStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.attempts.ListStale(ctx, cutoff)
	if err != nil {
		return 0, domain.WrapOp("list stale attempts", err)
	}
	abandoned := 0
	for _, attempt := range stale {
		if attempt.Status != domain.AttemptInProgress || !attempt.LastActivityAt.Before(cutoff) {
			continue
		}
		attempt.Status = domain.AttemptAbandoned
		if _, err := s.attempts.Update(ctx, attempt); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return abandoned, domain.WrapOp("abandon attempt", err)
		}
		abandoned++
	}
	return abandoned, nil
}

func (s *AttemptService) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.Quiz{}, &domain.NotFoundError{Message: "quiz not found: " + quizID, Err: err}
	}
	if err != nil {
		return domain.Quiz{}, domain.WrapOp("load quiz", err)
	}
	return quiz, nil
}

// loadActive fetches an attempt that belongs to quizID and userID and is still in progress.
func (s *AttemptService) loadActive(ctx context.Context, quizID, attemptID, userID string) (domain.Attempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.QuizID != quizID {
		return domain.Attempt{}, &domain.NotFoundError{Message: "attempt not found for quiz " + quizID, Err: domain.ErrAttemptNotFound}
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.Attempt{}, &domain.InvalidStateError{Message: fmt.Sprintf("attempt is %s", attempt.Status)}
	}
	return attempt.Clone(), nil
}

func (s *AttemptService) save(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	saved, err := s.attempts.Update(ctx, attempt)
	if errors.Is(err, domain.ErrVersionConflict) {
		return domain.Attempt{}, &domain.ConflictError{Message: "attempt was modified concurrently, reload and retry"}
	}
	if err != nil {
		return domain.Attempt{}, domain.WrapOp("save attempt", err)
	}
	return saved, nil
}

func (s *AttemptService) publicQuestions(quiz domain.Quiz) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		pq := PublicQuestion{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Type:     q.Type,
			Points:   q.Points,
			Hint:     q.Hint,
			ImageURL: q.ImageURL,
		}
		for _, opt := range q.Options {
			pq.Options = append(pq.Options, PublicOption{ID: opt.ID, Text: opt.Text})
		}
		for _, p := range q.Pairs {
			pq.Left = append(pq.Left, p.Left)
			pq.Right = append(pq.Right, p.Right)
		}
		if len(pq.Right) > 1 {
			s.shuffle(len(pq.Right), func(i, j int) { pq.Right[i], pq.Right[j] = pq.Right[j], pq.Right[i] })
		}
		if quiz.Features.Shuffle && len(pq.Options) > 1 {
			s.shuffle(len(pq.Options), func(i, j int) { pq.Options[i], pq.Options[j] = pq.Options[j], pq.Options[i] })
		}
		out = append(out, pq)
	}
	if quiz.Features.Shuffle && len(out) > 1 {
		s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

func revealAnswer(q domain.Question) any {
	switch q.Type {
	case domain.QuestionMultipleChoice:
		for _, opt := range q.Options {
			if opt.Correct {
				return opt.ID
			}
		}
		return nil
	case domain.QuestionMatchPairs:
		return q.Pairs
	}
	return q.CorrectAnswer
}
