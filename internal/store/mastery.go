package store

import "context"

// MasteryStore tracks, per session, how many times in a row each answer was
// given correctly and which answers are considered mastered.
// Answer keys are expected to be normalized with domain.NormalizeAnswer.
// Version: 1.0
type MasteryStore interface {
	// RecordResult updates the streak for answerKey in the session. A correct
	// result increments the streak and marks the answer mastered once it
	// reaches streak; a wrong result resets the streak to zero. Mastered
	// answers stay mastered for the lifetime of the session.
	// Returns whether the answer is mastered after the update.
	RecordResult(ctx context.Context, sessionID, answerKey string, correct bool, streak int) (bool, error)

	// Mastered returns the mastered answer keys of a session in no particular
	// order. An unknown session has none.
	Mastered(ctx context.Context, sessionID string) ([]string, error)
}
