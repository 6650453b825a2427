package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passthroughConverter lets slice arguments reach sqlmock unchanged, the way
// the pgx stdlib driver passes them to pgx.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	return v, nil
}

var testLanguages = []string{"en", "es"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testExercise(sentence string) *domain.Exercise {
	return domain.NewExercise(
		sentence,
		"está",
		domain.LevelA1,
		"verbs",
		[]string{"es", "son"},
		map[string]string{"en": "Location uses estar.", "es": "La ubicación usa estar."},
		domain.InfinitiveOnly{Infinitive: "estar"},
		domain.SourceGenerated,
	)
}

func TestSaveBatch_InBatchDuplicatesInsertOnce(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	first := testExercise("El libro ___ en la mesa.")
	second := testExercise("  el LIBRO ___ en la mesa. ")
	require.NotEqual(t, first.ID, second.ID)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exercises`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(first.ID.String(), true))
	mock.ExpectCommit()

	ids, err := s.SaveBatch(context.Background(), []*domain.Exercise{first, second})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_ConflictsAreSkipped(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	existing := testExercise("Mi casa ___ cerca.")
	backfill := testExercise("Tu casa ___ lejos.")
	fresh := testExercise("La tienda ___ abierta.")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exercises`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}))
	mock.ExpectQuery(`INSERT INTO exercises`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(uuid.New().String(), false))
	mock.ExpectQuery(`INSERT INTO exercises`).
		WithArgs(fresh.ID, fresh.SentenceTemplate, "la tienda ___ abierta.", "está", "esta",
			"A1", "verbs", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "infinitive",
			"generated", fresh.DifficultyScore, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(fresh.ID.String(), true))
	mock.ExpectCommit()

	ids, err := s.SaveBatch(context.Background(), []*domain.Exercise{existing, backfill, fresh})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{fresh.ID}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_InvalidExerciseRejectedBeforeWrite(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	bad := testExercise("No gap marker here.")
	_, err := s.SaveBatch(context.Background(), []*domain.Exercise{bad})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrGapMarkerCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_DriverFailureRollsBack(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exercises`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := s.SaveBatch(context.Background(), []*domain.Exercise{testExercise("Ella ___ aquí.")})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func exerciseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "sentence_template", "correct_answer", "level", "topic", "distractors", "explanations",
		"hint", "source", "difficulty_score", "usage_count", "created_at", "updated_at",
	})
}

func TestQuery_FiltersAndDecodes(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM exercises`).
		WithArgs([]string{"A1", "A2"}, []string{}, []string{"esta", "nino"}, []string{}, 5).
		WillReturnRows(exerciseRows().AddRow(
			id.String(), "Yo ___ feliz.", "soy", "A1", "verbs",
			[]byte(`["eres","es"]`), []byte(`{"en":"ser","es":"ser"}`),
			[]byte(`{"kind":"infinitive_person","infinitive":"ser","person":"yo"}`),
			"static", 0.2, 4, now, now,
		))

	got, err := s.Query(context.Background(), store.ExerciseQuery{
		Levels:         []domain.Level{domain.LevelA1, domain.LevelA2},
		ExcludeAnswers: []string{"Está", "ESTA", "niño"},
		Limit:          5,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, []string{"eres", "es"}, got[0].Distractors)
	assert.Equal(t, domain.InfinitiveWithPerson{Infinitive: "ser", Person: "yo"}, got[0].Hint)
	assert.Equal(t, domain.SourceStatic, got[0].Source)
	assert.Equal(t, 4, got[0].UsageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_EmptyInputsSkipDatabase(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	got, err := s.Query(context.Background(), store.ExerciseQuery{Levels: []domain.Level{domain.LevelB1}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_StoreUnavailable(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	mock.ExpectQuery(`SELECT .* FROM exercises`).WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	_, err := s.Query(context.Background(), store.ExerciseQuery{Levels: []domain.Level{domain.LevelB1}, Limit: 3})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestMarkUsed(t *testing.T) {
	t.Parallel()

	t.Run("increments and records the attempt", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresExerciseStore(db, testLanguages, quietLogger())
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE exercises SET usage_count = usage_count \+ 1`).
			WithArgs(id, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO exercise_usage`).
			WithArgs(id, "session-1", true, 0).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, s.MarkUsed(context.Background(), id, "session-1", true, -20))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown exercise", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE exercises`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.MarkUsed(context.Background(), uuid.New(), "s", false, 100)
		assert.ErrorIs(t, err, store.ErrExerciseNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCounts(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresExerciseStore(db, testLanguages, quietLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM exercises WHERE level = \$1`).
		WithArgs("B2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM exercises`).
		WithArgs([]string{"B2"}, []string{"verbs"}).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountByLevel(context.Background(), domain.LevelB2)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = s.CountMatching(context.Background(), []domain.Level{domain.LevelB2}, []string{"verbs"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func queueRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_id", "levels", "topics", "priority", "status", "error_message", "inserted_count",
		"created_at", "updated_at",
	})
}

func TestQueueStore_Enqueue(t *testing.T) {
	t.Parallel()

	item, err := domain.NewQueueItem([]domain.Level{domain.LevelA1}, []string{"verbs"}, "s-1", domain.PriorityBackground)
	require.NoError(t, err)

	t.Run("creates a new item", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresQueueStore(db, quietLogger())

		mock.ExpectQuery(`INSERT INTO queue_items`).
			WithArgs(item.ID, "s-1", []string{"A1"}, []string{"verbs"}, "A1|verbs", "background", "pending",
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(item.ID.String()))

		id, created, err := s.Enqueue(context.Background(), item)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, item.ID, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns the open item for the same request", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresQueueStore(db, quietLogger())
		existing := uuid.New()

		mock.ExpectQuery(`INSERT INTO queue_items`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`SELECT id FROM queue_items`).
			WithArgs("A1|verbs").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))

		id, created, err := s.Enqueue(context.Background(), item)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueueStore_ClaimPending(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresQueueStore(db, quietLogger())
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE queue_items\s+SET status = 'processing'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnRows(queueRows().AddRow(id.String(), "s-9", "{A1,B1}", "{}", "immediate", "processing", "", 0, now, now))

	items, err := s.ClaimPending(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []domain.Level{domain.LevelA1, domain.LevelB1}, items[0].Levels)
	assert.Empty(t, items[0].Topics)
	assert.Equal(t, domain.PriorityImmediate, items[0].Priority)
	assert.Equal(t, domain.QueueStatusProcessing, items[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_TerminalItemsStayTerminal(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresQueueStore(db, quietLogger())
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE queue_items`).
		WithArgs(id, "failed", "boom", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM queue_items WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(queueRows().AddRow(id.String(), "", "{A2}", "{verbs}", "background", "completed", "", 4, now, now))

	err := s.Fail(context.Background(), id, "boom")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_FailInterrupted(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresQueueStore(db, quietLogger())

	mock.ExpectExec(`UPDATE queue_items\s+SET status = 'failed'`).
		WithArgs("interrupted by restart", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.FailInterrupted(context.Background(), "interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
