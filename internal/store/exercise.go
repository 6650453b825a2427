package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
)

// ExerciseQuery filters a random selection of exercises.
type ExerciseQuery struct {
	// Levels is required; only exercises at one of these levels match.
	Levels []domain.Level
	// Topics restricts the topic when non-empty.
	Topics []string
	// ExcludeAnswers are compared after domain.NormalizeAnswer.
	ExcludeAnswers []string
	// ExcludeIDs removes specific exercises from the selection.
	ExcludeIDs []uuid.UUID
	Limit      int
}

// CoverageBucket counts the exercises for one (level, topic, source) combination.
type CoverageBucket struct {
	Level  domain.Level
	Topic  string
	Source domain.Source
	Count  int
}

// ExerciseStore defines the interface for exercise persistence. It acts as
// a demand-driven cache in front of the generative model.
// Version: 1.0
type ExerciseStore interface {
	// SaveBatch inserts exercises whose dedup key is not yet stored and
	// returns only the IDs of newly inserted rows. Duplicates are skipped,
	// not reported as errors. When a duplicate carries a hint and the
	// stored row has none, the stored hint is backfilled.
	// Returns validation errors (wrapping ErrInvalidEntity) for invalid
	// exercises before anything is written.
	SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error)

	// Query returns up to q.Limit matching exercises, chosen pseudo-randomly
	// with a bias toward low usage counts. Fewer rows than requested is not an error.
	Query(ctx context.Context, q ExerciseQuery) ([]*domain.Exercise, error)

	// GetByID retrieves an exercise by its unique ID.
	// Returns ErrExerciseNotFound if the exercise does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exercise, error)

	// MarkUsed increments the usage count of an exercise and records the attempt.
	// Returns ErrExerciseNotFound if the exercise does not exist.
	MarkUsed(ctx context.Context, exerciseID uuid.UUID, sessionID string, wasCorrect bool, latencyMs int) error

	// CountByLevel counts the exercises stored for a level.
	CountByLevel(ctx context.Context, level domain.Level) (int, error)

	// CountMatching counts exercises matching the level set and, when
	// non-empty, the topic set.
	CountMatching(ctx context.Context, levels []domain.Level, topics []string) (int, error)

	// CoverageReport summarises stored exercises per level, topic and source.
	CoverageReport(ctx context.Context) ([]CoverageBucket, error)

	// WithTx returns a new ExerciseStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ExerciseStore
}
