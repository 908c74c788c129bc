package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeRecomputesTotalPoints(t *testing.T) {
	q := Quiz{
		ID: "quiz-1",
		Questions: []Question{
			{ID: "q1", Points: 0},
			{ID: "q2", Points: 3},
		},
		Scoring: Scoring{TotalPoints: 99},
	}
	q.Normalize()
	if q.Questions[0].Points != 1 {
		t.Fatalf("expected default point of 1, got %d", q.Questions[0].Points)
	}
	if q.Scoring.TotalPoints != 4 {
		t.Fatalf("expected total 4, got %d", q.Scoring.TotalPoints)
	}

	q.Questions = q.Questions[:1]
	q.Normalize()
	if q.Scoring.TotalPoints != 1 {
		t.Fatalf("expected total to follow question list, got %d", q.Scoring.TotalPoints)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		quiz  Quiz
		field string
	}{
		{"missing id", Quiz{}, "id"},
		{"two correct options", Quiz{ID: "x", Questions: []Question{{ID: "q1", Type: QuestionMultipleChoice, Options: []Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}}}}}, "questions[0].options"},
		{"no correct option", Quiz{ID: "x", Questions: []Question{{ID: "q1", Type: QuestionMultipleChoice, Options: []Option{{ID: "a"}}}}}, "questions[0].options"},
		{"bad true-false", Quiz{ID: "x", Questions: []Question{{ID: "q1", Type: QuestionTrueFalse, CorrectAnswer: "yes"}}}, "questions[0].correctAnswer"},
		{"duplicate ids", Quiz{ID: "x", Questions: []Question{
			{ID: "q1", Type: QuestionFillBlank, CorrectAnswer: "a"},
			{ID: "q1", Type: QuestionFillBlank, CorrectAnswer: "b"},
		}}, "questions[1].id"},
		{"unknown type", Quiz{ID: "x", Questions: []Question{{ID: "q1", Type: "essay"}}}, "questions[0].type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.quiz.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := ve.Fields[tc.field]; !ok {
				t.Fatalf("expected field %s, got %+v", tc.field, ve.Fields)
			}
		})
	}

	ok := Quiz{ID: "x", Questions: []Question{
		{ID: "q1", Type: QuestionMultipleChoice, Options: []Option{{ID: "a", Correct: true}, {ID: "b"}}},
		{ID: "q2", Type: QuestionMatchPairs, Pairs: []MatchPair{{Left: "sun", Right: "solar"}}},
	}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}
}

func TestUpsertAnswerReplacesSameQuestion(t *testing.T) {
	var a Attempt
	a.UpsertAnswer(Answer{QuestionID: "q1", Correct: false})
	a.UpsertAnswer(Answer{QuestionID: "q2", Correct: true})
	a.UpsertAnswer(Answer{QuestionID: "q1", Correct: true, PointsEarned: 2})
	if len(a.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(a.Answers))
	}
	if !a.Answers[0].Correct || a.Answers[0].PointsEarned != 2 {
		t.Fatalf("expected q1 replaced in place, got %+v", a.Answers[0])
	}
}

func TestAttemptCloneIsIndependent(t *testing.T) {
	done := time.Now()
	a := Attempt{Answers: []Answer{{QuestionID: "q1"}}, CompletedAt: &done}
	c := a.Clone()
	c.Answers[0].QuestionID = "changed"
	*c.CompletedAt = done.Add(time.Hour)
	if a.Answers[0].QuestionID != "q1" || !a.CompletedAt.Equal(done) {
		t.Fatalf("clone shares state with original")
	}
}

func TestQuizStatsRunningAverage(t *testing.T) {
	var s QuizStats
	s.RecordCompletion(100, 30)
	s.RecordCompletion(50, 90)
	if s.CompletedAttempts != 2 || s.AverageScore != 75 || s.AverageTimeSpent != 60 {
		t.Fatalf("unexpected stats %+v", s)
	}
}
