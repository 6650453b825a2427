package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/store"
)

const exerciseColumns = `id, sentence_template, correct_answer, level, topic, distractors, explanations,
	hint, source, difficulty_score, usage_count, created_at, updated_at`

// insertExerciseQuery inserts a row unless its dedup key exists. A conflicting
// row without a hint takes the candidate's hint; xmax = 0 tells a fresh insert
// apart from that backfill. A conflict that changes nothing returns no row.
const insertExerciseQuery = `
	INSERT INTO exercises (id, sentence_template, sentence_key, correct_answer, answer_key, level, topic,
		distractors, explanations, hint, hint_kind, source, difficulty_score, usage_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (sentence_key, topic, level) DO UPDATE
		SET hint = EXCLUDED.hint, hint_kind = EXCLUDED.hint_kind, updated_at = EXCLUDED.updated_at
		WHERE exercises.hint_kind = 'none' AND EXCLUDED.hint_kind <> 'none'
	RETURNING id, (xmax = 0) AS inserted
`

// PostgresExerciseStore implements the store.ExerciseStore interface
// using a PostgreSQL database as the storage backend.
type PostgresExerciseStore struct {
	db        store.DBTX
	languages []string
	logger    *slog.Logger
}

// NewPostgresExerciseStore creates a new PostgreSQL implementation of the ExerciseStore interface.
// languages lists the UI languages every stored exercise must explain itself in.
// If logger is nil, a default logger will be used.
func NewPostgresExerciseStore(db store.DBTX, languages []string, logger *slog.Logger) *PostgresExerciseStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresExerciseStore{
		db:        db,
		languages: languages,
		logger:    logger.With(slog.String("component", "exercise_store")),
	}
}

// Ensure PostgresExerciseStore implements store.ExerciseStore interface
var _ store.ExerciseStore = (*PostgresExerciseStore)(nil)

// WithTx implements store.ExerciseStore.WithTx
func (s *PostgresExerciseStore) WithTx(tx *sql.Tx) store.ExerciseStore {
	return &PostgresExerciseStore{db: tx, languages: s.languages, logger: s.logger}
}

// inTx runs fn in a transaction when the store owns a *sql.DB, and directly
// on the caller's transaction otherwise.
func (s *PostgresExerciseStore) inTx(ctx context.Context, fn func(q store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(s.db)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(tx)
	})
}

// SaveBatch implements store.ExerciseStore.SaveBatch
func (s *PostgresExerciseStore) SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, e := range exercises {
		if e == nil {
			return nil, fmt.Errorf("%w: nil exercise in batch", store.ErrInvalidEntity)
		}
		if err := e.Validate(s.languages); err != nil {
			log.Warn("exercise validation failed during save",
				slog.String("exercise_id", e.ID.String()),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: exercise %s: %w", store.ErrInvalidEntity, e.ID, err)
		}
	}

	unique, dropped := domain.FilterDuplicates(exercises)
	if len(unique) == 0 {
		return nil, nil
	}

	var inserted []uuid.UUID
	backfilled := 0
	err := s.inTx(ctx, func(q store.DBTX) error {
		inserted = inserted[:0]
		backfilled = 0
		for _, e := range unique {
			id, wasInserted, err := insertExercise(ctx, q, e)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				continue
			case err != nil:
				return err
			case wasInserted:
				inserted = append(inserted, id)
			default:
				backfilled++
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save exercise batch",
			slog.Int("batch_size", len(exercises)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	log.Info("exercise batch saved",
		slog.Int("batch_size", len(exercises)),
		slog.Int("inserted", len(inserted)),
		slog.Int("skipped", len(exercises)-len(inserted)-backfilled),
		slog.Int("hints_backfilled", backfilled),
		slog.Int("in_batch_duplicates", dropped))
	return inserted, nil
}

func insertExercise(ctx context.Context, q store.DBTX, e *domain.Exercise) (uuid.UUID, bool, error) {
	distractors, err := json.Marshal(e.Distractors)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to encode distractors: %w", err)
	}
	explanations, err := json.Marshal(e.Explanations)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to encode explanations: %w", err)
	}
	hint, err := domain.EncodeHint(e.Hint)
	if err != nil {
		return uuid.Nil, false, err
	}

	now := time.Now().UTC()
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}

	var (
		id       uuid.UUID
		inserted bool
	)
	err = q.QueryRowContext(ctx, insertExerciseQuery,
		e.ID,
		e.SentenceTemplate,
		domain.NormalizeSentence(e.SentenceTemplate),
		e.CorrectAnswer,
		e.AnswerKey(),
		string(e.Level),
		e.Topic,
		string(distractors),
		string(explanations),
		string(hint),
		string(domain.FieldsOf(e.Hint).Kind),
		string(e.Source),
		e.DifficultyScore,
		e.UsageCount,
		created,
		now,
	).Scan(&id, &inserted)
	return id, inserted, err
}

// Query implements store.ExerciseStore.Query
func (s *PostgresExerciseStore) Query(ctx context.Context, q store.ExerciseQuery) ([]*domain.Exercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if q.Limit <= 0 || len(q.Levels) == 0 {
		return []*domain.Exercise{}, nil
	}

	excludeIDs := make([]string, 0, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excludeIDs = append(excludeIDs, id.String())
	}

	// random() / (1 + usage_count) keeps fresh rows likely while still
	// letting well-used ones through.
	query := `
		SELECT ` + exerciseColumns + `
		FROM exercises
		WHERE level = ANY($1::text[])
			AND (cardinality($2::text[]) = 0 OR topic = ANY($2::text[]))
			AND NOT (answer_key = ANY($3::text[]))
			AND NOT (id = ANY($4::uuid[]))
		ORDER BY random() / (1 + usage_count) DESC, created_at DESC
		LIMIT $5
	`
	rows, err := s.db.QueryContext(ctx, query,
		domain.LevelStrings(q.Levels),
		nonNil(q.Topics),
		domain.NormalizeAnswers(q.ExcludeAnswers),
		excludeIDs,
		q.Limit,
	)
	if err != nil {
		log.Error("failed to query exercises",
			slog.Any("levels", q.Levels),
			slog.Any("topics", q.Topics),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	exercises := make([]*domain.Exercise, 0, q.Limit)
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			log.Error("failed to scan exercise row", slog.String("error", err.Error()))
			return nil, err
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("exercises queried",
		slog.Int("requested", q.Limit),
		slog.Int("found", len(exercises)))
	return exercises, nil
}

// GetByID implements store.ExerciseStore.GetByID
func (s *PostgresExerciseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id)
	e, err := scanExercise(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("exercise not found", slog.String("exercise_id", id.String()))
			return nil, store.ErrExerciseNotFound
		}
		log.Error("failed to get exercise",
			slog.String("exercise_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return e, nil
}

// MarkUsed implements store.ExerciseStore.MarkUsed
func (s *PostgresExerciseStore) MarkUsed(
	ctx context.Context,
	exerciseID uuid.UUID,
	sessionID string,
	wasCorrect bool,
	latencyMs int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if latencyMs < 0 {
		latencyMs = 0
	}

	err := s.inTx(ctx, func(q store.DBTX) error {
		result, err := q.ExecContext(ctx,
			`UPDATE exercises SET usage_count = usage_count + 1, updated_at = $2 WHERE id = $1`,
			exerciseID, time.Now().UTC())
		if err != nil {
			return MapError(err)
		}
		if err := CheckRowsAffected(result, store.ErrExerciseNotFound); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO exercise_usage (exercise_id, session_id, was_correct, latency_ms) VALUES ($1, $2, $3, $4)`,
			exerciseID, sessionID, wasCorrect, latencyMs)
		return MapError(err)
	})
	if err != nil {
		log.Warn("failed to mark exercise used",
			slog.String("exercise_id", exerciseID.String()),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// CountByLevel implements store.ExerciseStore.CountByLevel
func (s *PostgresExerciseStore) CountByLevel(ctx context.Context, level domain.Level) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercises WHERE level = $1`, string(level)).Scan(&count)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count exercises by level",
			slog.String("level", string(level)),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return count, nil
}

// CountMatching implements store.ExerciseStore.CountMatching
func (s *PostgresExerciseStore) CountMatching(ctx context.Context, levels []domain.Level, topics []string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exercises
		WHERE level = ANY($1::text[])
			AND (cardinality($2::text[]) = 0 OR topic = ANY($2::text[]))
	`, domain.LevelStrings(levels), nonNil(topics)).Scan(&count)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count matching exercises",
			slog.Any("levels", levels),
			slog.Any("topics", topics),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return count, nil
}

// CoverageReport implements store.ExerciseStore.CoverageReport
func (s *PostgresExerciseStore) CoverageReport(ctx context.Context) ([]store.CoverageBucket, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, topic, source, COUNT(*)
		FROM exercises
		GROUP BY level, topic, source
		ORDER BY level, topic, source
	`)
	if err != nil {
		log.Error("failed to build coverage report", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var buckets []store.CoverageBucket
	for rows.Next() {
		var (
			b             store.CoverageBucket
			level, source string
		)
		if err := rows.Scan(&level, &b.Topic, &source, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan coverage row: %w", err)
		}
		b.Level = domain.Level(level)
		b.Source = domain.Source(source)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return buckets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (*domain.Exercise, error) {
	var (
		e                               domain.Exercise
		level, source                   string
		distractors, explanations, hint []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.SentenceTemplate,
		&e.CorrectAnswer,
		&level,
		&e.Topic,
		&distractors,
		&explanations,
		&hint,
		&source,
		&e.DifficultyScore,
		&e.UsageCount,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Level = domain.Level(level)
	e.Source = domain.Source(source)
	if err := json.Unmarshal(distractors, &e.Distractors); err != nil {
		return nil, fmt.Errorf("failed to decode distractors: %w", err)
	}
	if err := json.Unmarshal(explanations, &e.Explanations); err != nil {
		return nil, fmt.Errorf("failed to decode explanations: %w", err)
	}
	h, err := domain.DecodeHint(hint)
	if err != nil {
		return nil, err
	}
	e.Hint = h
	return &e, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
