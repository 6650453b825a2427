// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Specific validation errors below wrap it, so callers can test with
	// errors.Is(err, ErrValidation) regardless of the concrete cause.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidLevel is returned when a proficiency level is not one of the CEFR tiers.
	ErrInvalidLevel = wrapValidation("invalid level")

	// ErrNoLevels is returned when a request names no level at all.
	ErrNoLevels = wrapValidation("at least one level is required")

	// ErrUnknownTopic is returned when a topic is not in the catalog.
	ErrUnknownTopic = wrapValidation("unknown topic")

	// ErrInvalidPriority is returned when a queue priority is not recognised.
	ErrInvalidPriority = wrapValidation("invalid priority")

	// ErrInvalidTransition is returned when a queue item is moved to a status
	// that its current status does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Exercise validation errors
var (
	ErrEmptyExerciseID    = wrapValidation("exercise ID cannot be empty")
	ErrEmptySentence      = wrapValidation("sentence template cannot be empty")
	ErrGapMarkerCount     = wrapValidation("sentence template must contain exactly one gap marker")
	ErrEmptyCorrectAnswer = wrapValidation("correct answer cannot be empty")
	ErrDistractorCount    = wrapValidation("exercise must have between 1 and 3 distractors")
	ErrDistractorOverlap  = wrapValidation("distractors must differ from the correct answer and each other")
	ErrMissingExplanation = wrapValidation("explanation missing for required language")
	ErrInvalidSource      = wrapValidation("invalid exercise source")
	ErrDifficultyRange    = wrapValidation("difficulty score must be between 0 and 1")
	ErrNegativeUsage      = wrapValidation("usage count cannot be negative")
)

func wrapValidation(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
