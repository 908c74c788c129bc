package domain

import (
	"errors"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound is returned by attempt stores for unknown ids.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptInProgress is returned by attempt stores when the user already has a live attempt on the quiz.
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrVersionConflict means the record changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrProfileNotFound is returned by profile stores for unknown users.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrBadgeNotFound indicates an unknown badge id.
	ErrBadgeNotFound = errors.New("badge not found")
	// ErrTemplateNotFound indicates an unknown certificate template.
	ErrTemplateNotFound = errors.New("certificate template not found")
	// ErrLeaderboardNotFound is returned before the first refresh of a board.
	ErrLeaderboardNotFound = errors.New("leaderboard not found")
)

// ValidationError reports malformed input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "validation failed"
	}
	return e.Message
}

// NotFoundError reports a missing quiz, question, attempt or other record.
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Unwrap() error { return e.Err }

// InvalidStateError reports a transition requested from the wrong attempt status.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// ConflictError reports attempt limits or a duplicate in-progress attempt.
// ExistingAttemptID is set when the caller can resume instead.
type ConflictError struct {
	Message           string
	ExistingAttemptID string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthorizationError reports an ownership or role mismatch.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// RequirementsNotMetError is returned when a certificate template's requirements fail.
type RequirementsNotMetError struct {
	Missing []string
}

func (e *RequirementsNotMetError) Error() string {
	return "certificate requirements not met: " + strings.Join(e.Missing, ", ")
}

// OperationError wraps an unexpected store or render failure.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }

// WrapOp wraps err as an OperationError unless it already carries a taxonomy type.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InvalidStateError
		ce *ConflictError
		ae *AuthorizationError
		rn *RequirementsNotMetError
		oe *OperationError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &is),
		errors.As(err, &ce), errors.As(err, &ae), errors.As(err, &rn), errors.As(err, &oe):
		return err
	}
	return &OperationError{Op: op, Err: err}
}
