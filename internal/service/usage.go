package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/phrazzld/gapfill-api/internal/task"
)

// DefaultMasteryStreak is the number of consecutive correct answers after
// which an answer counts as mastered for a session.
const DefaultMasteryStreak = 3

// Attempt is one learner answer to one exercise.
type Attempt struct {
	ExerciseID uuid.UUID
	SessionID  string
	WasCorrect bool
	LatencyMs  int
}

// UsageRepository is the part of the exercise store the tracker writes to.
type UsageRepository interface {
	MarkUsed(ctx context.Context, exerciseID uuid.UUID, sessionID string, wasCorrect bool, latencyMs int) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exercise, error)
}

// Runner executes fire-and-forget work. task.Supervisor implements it.
type Runner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// UsageTracker records attempts without blocking the caller and answers
// which answers a session has already mastered.
type UsageTracker struct {
	exercises UsageRepository
	mastery   store.MasteryStore
	runner    Runner
	streak    int
	logger    *slog.Logger
}

// NewUsageTracker creates a UsageTracker. A streak below one uses DefaultMasteryStreak.
func NewUsageTracker(
	exercises UsageRepository,
	mastery store.MasteryStore,
	runner Runner,
	streak int,
	log *slog.Logger,
) (*UsageTracker, error) {
	if exercises == nil {
		return nil, fmt.Errorf("%w: exercise repository cannot be nil", domain.ErrValidation)
	}
	if mastery == nil {
		return nil, fmt.Errorf("%w: mastery store cannot be nil", domain.ErrValidation)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: runner cannot be nil", domain.ErrValidation)
	}
	if streak < 1 {
		streak = DefaultMasteryStreak
	}
	if log == nil {
		log = slog.Default()
	}

	return &UsageTracker{
		exercises: exercises,
		mastery:   mastery,
		runner:    runner,
		streak:    streak,
		logger:    log.With(slog.String("component", "usage_tracker")),
	}, nil
}

// RecordAttempt hands the attempt to the background runner and returns as
// soon as it is accepted. Write failures never reach the caller; they are
// logged and counted by the runner.
func (t *UsageTracker) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.ExerciseID == uuid.Nil {
		return fmt.Errorf("%w: exercise_id is required", ErrInvalidAttempt)
	}
	if a.LatencyMs < 0 {
		return fmt.Errorf("%w: latency cannot be negative", ErrInvalidAttempt)
	}

	err := t.runner.Go(ctx, "record_attempt", func(ctx context.Context) error {
		return t.record(ctx, a)
	})
	if err != nil {
		if errors.Is(err, task.ErrSupervisorClosed) {
			return NewServiceError("usage", "record_attempt", fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		return NewServiceError("usage", "record_attempt", err)
	}
	return nil
}

func (t *UsageTracker) record(ctx context.Context, a Attempt) error {
	log := logger.FromContextOrDefault(ctx, t.logger).With(
		slog.String("exercise_id", a.ExerciseID.String()),
		slog.String("session_id", a.SessionID),
	)

	if err := t.exercises.MarkUsed(ctx, a.ExerciseID, a.SessionID, a.WasCorrect, a.LatencyMs); err != nil {
		return fmt.Errorf("failed to mark exercise used: %w", err)
	}
	if a.SessionID == "" {
		return nil
	}

	ex, err := t.exercises.GetByID(ctx, a.ExerciseID)
	if err != nil {
		return fmt.Errorf("failed to load attempted exercise: %w", err)
	}
	mastered, err := t.mastery.RecordResult(ctx, a.SessionID, ex.AnswerKey(), a.WasCorrect, t.streak)
	if err != nil {
		return fmt.Errorf("failed to update mastery: %w", err)
	}

	log.DebugContext(ctx, "attempt recorded",
		slog.Bool("correct", a.WasCorrect),
		slog.Bool("mastered", mastered))
	return nil
}

// ExcludeAnswers returns the normalized answers the session has mastered.
// A session-less request has none.
func (t *UsageTracker) ExcludeAnswers(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, nil
	}
	answers, err := t.mastery.Mastered(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("usage", "exclude_answers", err)
	}
	return answers, nil
}
