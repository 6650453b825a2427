package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/store"
)

const queueColumns = `id, session_id, levels, topics, priority, status, error_message, inserted_count,
	created_at, updated_at`

// PostgresQueueStore implements the store.QueueStore interface using PostgreSQL.
type PostgresQueueStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQueueStore creates a new PostgresQueueStore.
// If logger is nil, a default logger will be used.
func NewPostgresQueueStore(db store.DBTX, logger *slog.Logger) *PostgresQueueStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQueueStore{
		db:     db,
		logger: logger.With(slog.String("component", "queue_store")),
	}
}

// Ensure PostgresQueueStore implements store.QueueStore interface
var _ store.QueueStore = (*PostgresQueueStore)(nil)

// Enqueue implements store.QueueStore.Enqueue
func (s *PostgresQueueStore) Enqueue(ctx context.Context, item *domain.QueueItem) (uuid.UUID, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO queue_items (id, session_id, levels, topics, request_key, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3::text[], $4::text[], $5, $6, $7, $8, $9)
		ON CONFLICT (request_key) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING id
	`,
		item.ID,
		item.SessionID,
		domain.LevelStrings(item.Levels),
		nonNil(item.Topics),
		item.RequestKey(),
		string(item.Priority),
		string(domain.QueueStatusPending),
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&id)
	if err == nil {
		log.Info("queue item enqueued",
			slog.String("queue_item_id", id.String()),
			slog.String("request_key", item.RequestKey()),
			slog.String("priority", string(item.Priority)))
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to enqueue queue item",
			slog.String("request_key", item.RequestKey()),
			slog.String("error", err.Error()))
		return uuid.Nil, false, MapError(err)
	}

	// An open request already covers this bucket.
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM queue_items
		WHERE request_key = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
		LIMIT 1
	`, item.RequestKey()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The open item finished between the two statements.
			return s.Enqueue(ctx, item)
		}
		return uuid.Nil, false, MapError(err)
	}
	log.Debug("queue item deduplicated",
		slog.String("queue_item_id", id.String()),
		slog.String("request_key", item.RequestKey()))
	return id, false, nil
}

// ClaimPending implements store.QueueStore.ClaimPending
func (s *PostgresQueueStore) ClaimPending(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		UPDATE queue_items
		SET status = 'processing', updated_at = $2
		WHERE id IN (
			SELECT id FROM queue_items
			WHERE status = 'pending'
			ORDER BY (priority = 'immediate') DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns,
		limit, time.Now().UTC())
	if err != nil {
		log.Error("failed to claim pending queue items", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items, err := s.scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		log.Debug("claimed queue items", slog.Int("count", len(items)))
	}
	return items, nil
}

// Complete implements store.QueueStore.Complete
func (s *PostgresQueueStore) Complete(ctx context.Context, id uuid.UUID, inserted int) error {
	return s.finish(ctx, id, domain.QueueStatusCompleted, "", inserted)
}

// Fail implements store.QueueStore.Fail
func (s *PostgresQueueStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return s.finish(ctx, id, domain.QueueStatusFailed, message, 0)
}

// finish moves a processing item to a terminal status. Items in any other
// status are left alone and reported as an invalid transition.
func (s *PostgresQueueStore) finish(
	ctx context.Context,
	id uuid.UUID,
	status domain.QueueStatus,
	message string,
	inserted int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $2, error_message = $3, inserted_count = $4, updated_at = $5
		WHERE id = $1 AND status = 'processing'
	`, id, string(status), message, inserted, time.Now().UTC())
	if err != nil {
		log.Error("failed to update queue item status",
			slog.String("queue_item_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, nil); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
}

// GetByID implements store.QueueStore.GetByID
func (s *PostgresQueueStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+queueColumns+` FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items, err := s.scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrQueueItemNotFound
	}
	return items[0], nil
}

// HasPending implements store.QueueStore.HasPending
func (s *PostgresQueueStore) HasPending(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_items WHERE status = 'pending')`).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// FailInterrupted implements store.QueueStore.FailInterrupted
func (s *PostgresQueueStore) FailInterrupted(ctx context.Context, message string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'failed', error_message = $1, updated_at = $2
		WHERE status = 'processing'
	`, message, time.Now().UTC())
	if err != nil {
		log.Error("failed to fail interrupted queue items", slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}
	if n > 0 {
		log.Warn("marked interrupted queue items as failed", slog.Int64("count", n))
	}
	return int(n), nil
}

func (s *PostgresQueueStore) scanItems(rows *sql.Rows) ([]*domain.QueueItem, error) {
	// pgtype.Map caches scan plans and is not safe for concurrent use.
	types := pgtype.NewMap()
	var items []*domain.QueueItem
	for rows.Next() {
		var (
			item             domain.QueueItem
			levels, topics   []string
			priority, status string
		)
		if err := rows.Scan(
			&item.ID,
			&item.SessionID,
			types.SQLScanner(&levels),
			types.SQLScanner(&topics),
			&priority,
			&status,
			&item.ErrorMessage,
			&item.InsertedCount,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Levels = make([]domain.Level, len(levels))
		for i, l := range levels {
			item.Levels[i] = domain.Level(l)
		}
		item.Topics = topics
		item.Priority = domain.Priority(priority)
		item.Status = domain.QueueStatus(status)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}
