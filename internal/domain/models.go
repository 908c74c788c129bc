package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuestionType identifies how a question is answered and scored.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionFillBlank      QuestionType = "fill-blank"
	QuestionMatchPairs     QuestionType = "match-pairs"
)

// Option represents a possible answer for a multiple-choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// MatchPair links a left-hand item to its right-hand counterpart.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is embedded in a Quiz.
type Question struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"prompt"`
	Type          QuestionType `json:"type"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Pairs         []MatchPair  `json:"pairs,omitempty"`
	Points        int          `json:"points"` // defaults to 1 if zero
	Hint          string       `json:"hint,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
}

// RetakePolicy controls whether a user may start again after completing a quiz.
type RetakePolicy string

const (
	RetakeAlways      RetakePolicy = "always"
	RetakeNever       RetakePolicy = "never"
	RetakeUntilPassed RetakePolicy = "until-passed"
)

// Scoring holds the pass/attempt rules of a quiz. MaxAttempts of zero means unlimited.
// An empty Retake behaves like RetakeAlways.
type Scoring struct {
	PassingScore int          `json:"passingScore"`
	MaxAttempts  int          `json:"maxAttempts"`
	TotalPoints  int          `json:"totalPoints"`
	Retake       RetakePolicy `json:"retake,omitempty"`
}

// Features are per-quiz presentation flags.
type Features struct {
	Shuffle         bool `json:"shuffle"`
	InstantFeedback bool `json:"instantFeedback"`
	ReviewMode      bool `json:"reviewMode"`
}

// CertificateRule makes a quiz grant a certificate on a good enough pass.
type CertificateRule struct {
	Enabled    bool   `json:"enabled"`
	TemplateID string `json:"templateId,omitempty"`
	MinScore   int    `json:"minScore"`
}

// Quiz is a collection of questions plus its scoring rules.
type Quiz struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Category        string          `json:"category,omitempty"`
	Questions       []Question      `json:"questions"`
	Scoring         Scoring         `json:"scoring"`
	Features        Features        `json:"features"`
	TimeLimit       int             `json:"timeLimit"`
	EcoPointsReward int             `json:"ecoPointsReward"`
	Certificate     CertificateRule `json:"certificate"`
}

// Normalize applies point defaults and recomputes Scoring.TotalPoints.
// It must run every time the question list changes.
func (q *Quiz) Normalize() {
	total := 0
	for i := range q.Questions {
		if q.Questions[i].Points == 0 {
			q.Questions[i].Points = 1
		}
		total += q.Questions[i].Points
	}
	q.Scoring.TotalPoints = total
}

// Validate checks structural rules that storage does not enforce.
func (q Quiz) Validate() error {
	fields := map[string]string{}
	if q.ID == "" {
		fields["id"] = "required"
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		key := fmt.Sprintf("questions[%d]", i)
		if question.ID == "" {
			fields[key+".id"] = "required"
		} else if _, dup := seen[question.ID]; dup {
			fields[key+".id"] = "duplicate"
		}
		seen[question.ID] = struct{}{}
		switch question.Type {
		case QuestionMultipleChoice:
			correct := 0
			for _, opt := range question.Options {
				if opt.Correct {
					correct++
				}
			}
			if correct != 1 {
				fields[key+".options"] = "exactly one option must be correct"
			}
		case QuestionTrueFalse:
			if question.CorrectAnswer != "true" && question.CorrectAnswer != "false" {
				fields[key+".correctAnswer"] = "must be true or false"
			}
		case QuestionFillBlank:
			if question.CorrectAnswer == "" {
				fields[key+".correctAnswer"] = "required"
			}
		case QuestionMatchPairs:
			if len(question.Pairs) == 0 {
				fields[key+".pairs"] = "required"
			}
		default:
			fields[key+".type"] = "unsupported"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "invalid quiz " + q.ID, Fields: fields}
	}
	return nil
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not-started"
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Answer is one submitted answer inside an attempt.
type Answer struct {
	QuestionID   string          `json:"questionId"`
	Value        json.RawMessage `json:"value"`
	Correct      bool            `json:"correct"`
	PointsEarned int             `json:"pointsEarned"`
	TimeSpent    int             `json:"timeSpent"`
	HintsUsed    int             `json:"hintsUsed"`
	AnsweredAt   time.Time       `json:"answeredAt"`
}

// Score is the final tally of an attempt.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Points     int `json:"points"`
}

// Attempt is one try of a user at a quiz, unique on (QuizID, UserID, Number).
type Attempt struct {
	ID                string        `json:"id"`
	QuizID            string        `json:"quizId"`
	UserID            string        `json:"userId"`
	Number            int           `json:"attemptNumber"`
	Status            AttemptStatus `json:"status"`
	StartedAt         time.Time     `json:"startedAt"`
	LastActivityAt    time.Time     `json:"lastActivityAt"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	Answers           []Answer      `json:"answers"`
	Score             Score         `json:"score"`
	Passed            bool          `json:"passed"`
	TimeSpent         int           `json:"timeSpent"`
	CertificateIssued bool          `json:"certificateIssued"`
	Version           int           `json:"version"`
}

// UpsertAnswer replaces the answer for the same question or appends a new one.
func (a *Attempt) UpsertAnswer(answer Answer) {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == answer.QuestionID {
			a.Answers[i] = answer
			return
		}
	}
	a.Answers = append(a.Answers, answer)
}

// Clone returns a deep enough copy for read-modify-write cycles.
func (a Attempt) Clone() Attempt {
	out := a
	out.Answers = append([]Answer(nil), a.Answers...)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// QuizStats are rolling per-quiz counters.
type QuizStats struct {
	QuizID            string  `json:"quizId"`
	TotalAttempts     int     `json:"totalAttempts"`
	CompletedAttempts int     `json:"completedAttempts"`
	AverageScore      float64 `json:"averageScore"`
	AverageTimeSpent  float64 `json:"averageTimeSpent"`
}

// RecordCompletion folds one completed attempt into the running averages.
func (s *QuizStats) RecordCompletion(percentage, timeSpent int) {
	s.CompletedAttempts++
	n := float64(s.CompletedAttempts)
	s.AverageScore = (s.AverageScore*(n-1) + float64(percentage)) / n
	s.AverageTimeSpent = (s.AverageTimeSpent*(n-1) + float64(timeSpent)) / n
}
