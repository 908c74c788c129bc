package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ecoquest-service/internal/domain"
)

// MatchPairsPolicy decides how match-pairs questions are scored.
type MatchPairsPolicy string

const (
	// MatchPairsNone never marks match-pairs answers correct.
	MatchPairsNone MatchPairsPolicy = "none"
	// MatchPairsAllOrNothing awards full points only when every pair matches.
	MatchPairsAllOrNothing MatchPairsPolicy = "all-or-nothing"
	// MatchPairsPartial awards points proportional to the matched pairs.
	MatchPairsPartial MatchPairsPolicy = "partial"
)

// ParseMatchPairsPolicy maps a config value to a policy; empty selects all-or-nothing.
func ParseMatchPairsPolicy(raw string) (MatchPairsPolicy, error) {
	switch MatchPairsPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MatchPairsAllOrNothing:
		return MatchPairsAllOrNothing, nil
	case MatchPairsNone:
		return MatchPairsNone, nil
	case MatchPairsPartial:
		return MatchPairsPartial, nil
	}
	return "", fmt.Errorf("unknown match-pairs policy %q", raw)
}

// Scorer evaluates submitted answers. The zero value uses all-or-nothing match-pairs scoring.
type Scorer struct {
	MatchPairs MatchPairsPolicy
}

// EvaluateAnswer decides whether value answers question and how many points it earns.
// An undecodable value is a *domain.ValidationError.
func (s Scorer) EvaluateAnswer(question domain.Question, value json.RawMessage) (bool, int, error) {
	points := question.Points
	if points == 0 {
		points = 1
	}

	switch question.Type {
	case domain.QuestionMultipleChoice:
		var optionID string
		if err := json.Unmarshal(value, &optionID); err != nil {
			return false, 0, invalidAnswer(question, "expected an option id")
		}
		for _, opt := range question.Options {
			if opt.ID == optionID {
				return award(opt.Correct, points)
			}
		}
		// unknown option ids are wrong answers, not errors
		return false, 0, nil

	case domain.QuestionTrueFalse:
		text, err := trueFalseText(value)
		if err != nil {
			return false, 0, invalidAnswer(question, err.Error())
		}
		return award(text == question.CorrectAnswer, points)

	case domain.QuestionFillBlank:
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return false, 0, invalidAnswer(question, "expected text")
		}
		expected := strings.TrimSpace(question.CorrectAnswer)
		return award(strings.EqualFold(strings.TrimSpace(text), expected), points)

	case domain.QuestionMatchPairs:
		var pairs []domain.MatchPair
		if err := json.Unmarshal(value, &pairs); err != nil {
			return false, 0, invalidAnswer(question, "expected a list of pairs")
		}
		return s.scorePairs(question, pairs, points)
	}
	return false, 0, invalidAnswer(question, "unsupported question type")
}

func (s Scorer) scorePairs(question domain.Question, submitted []domain.MatchPair, points int) (bool, int, error) {
	policy := s.MatchPairs
	if policy == "" {
		policy = MatchPairsAllOrNothing
	}
	if policy == MatchPairsNone || len(question.Pairs) == 0 {
		return false, 0, nil
	}

	expected := make(map[string]string, len(question.Pairs))
	for _, p := range question.Pairs {
		expected[p.Left] = p.Right
	}
	matched := 0
	seen := make(map[string]struct{}, len(submitted))
	for _, p := range submitted {
		if _, dup := seen[p.Left]; dup {
			continue
		}
		seen[p.Left] = struct{}{}
		if right, ok := expected[p.Left]; ok && right == p.Right {
			matched++
		}
	}
	all := matched == len(question.Pairs)
	if policy == MatchPairsPartial {
		return all, points * matched / len(question.Pairs), nil
	}
	return award(all, points)
}

func award(correct bool, points int) (bool, int, error) {
	if correct {
		return true, points, nil
	}
	return false, 0, nil
}

func trueFalseText(value json.RawMessage) (string, error) {
	var raw any
	if err := json.Unmarshal(value, &raw); err != nil {
		return "", fmt.Errorf("expected true or false")
	}
	switch v := raw.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return v, nil
	}
	return "", fmt.Errorf("expected true or false")
}

func invalidAnswer(question domain.Question, reason string) error {
	return &domain.ValidationError{
		Message: fmt.Sprintf("invalid answer for question %s", question.ID),
		Fields:  map[string]string{"answer": reason},
	}
}

// FinalizeScore tallies an attempt against the full question list of its quiz.
// Answers naming a question outside the list yield a *domain.NotFoundError.
func FinalizeScore(attempt domain.Attempt, questions []domain.Question) (domain.Score, error) {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}

	score := domain.Score{Total: len(questions)}
	for _, answer := range attempt.Answers {
		if _, ok := known[answer.QuestionID]; !ok {
			return domain.Score{}, &domain.NotFoundError{
				Message: "question not found: " + answer.QuestionID,
				Err:     domain.ErrQuestionNotFound,
			}
		}
		if answer.Correct {
			score.Correct++
		}
		score.Points += answer.PointsEarned
	}
	if score.Total > 0 {
		score.Percentage = int(math.Round(float64(score.Correct) / float64(score.Total) * 100))
	}
	return score, nil
}
