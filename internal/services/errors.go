package services

import (
	"errors"

	apperrors "github.com/light-quiz/quiz-service/internal/errors"
)

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Quiz specific errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizEnded        = errors.New("quiz has already ended")
	ErrQuizAlreadyTaken = errors.New("quiz has already been taken")

	// Attempt specific errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotStarted       = errors.New("quiz has not been started")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptCannotStart      = errors.New("cannot start new attempt")
	ErrAttemptNotOwned         = errors.New("attempt does not belong to student")

	// Grading specific errors
	ErrAttemptNotSubmitted  = errors.New("attempt is not in a submitted state")
	ErrAttemptAlreadyGraded = errors.New("attempt already graded")
	ErrResultNotReady       = errors.New("result is not ready yet")
	ErrResultNotFound       = errors.New("result not found")
)

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// IsNotFound checks if error represents a "not found" condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrResultNotFound)
}

// IsConflict checks if error represents a state conflict the caller
// should not retry as-is.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrQuizAlreadyTaken) ||
		errors.Is(err, ErrAttemptAlreadySubmitted) ||
		errors.Is(err, ErrAttemptCannotStart) ||
		errors.Is(err, ErrAttemptAlreadyGraded)
}

// IsPrecondition checks if error represents a rejected request with no
// state mutation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrQuizEnded) ||
		errors.Is(err, ErrAttemptNotStarted) ||
		errors.Is(err, ErrAttemptNotActive) ||
		errors.Is(err, ErrAttemptNotSubmitted) ||
		errors.Is(err, ErrResultNotReady)
}

// IsValidation checks if error represents a validation failure.
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}
