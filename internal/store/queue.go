package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
)

// QueueStore defines the interface for backfill queue persistence.
// Version: 1.0
type QueueStore interface {
	// Enqueue stores a pending item. When an open (pending or processing)
	// item with the same request key already exists, nothing is written and
	// the existing ID is returned with created=false.
	Enqueue(ctx context.Context, item *domain.QueueItem) (id uuid.UUID, created bool, err error)

	// ClaimPending atomically moves up to limit pending items to processing
	// and returns them. An item is never returned to two callers.
	ClaimPending(ctx context.Context, limit int) ([]*domain.QueueItem, error)

	// Complete marks a processing item completed with the number of rows it inserted.
	Complete(ctx context.Context, id uuid.UUID, inserted int) error

	// Fail marks a processing item failed with a diagnostic message.
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// GetByID retrieves a queue item.
	// Returns ErrQueueItemNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error)

	// HasPending reports whether any item is waiting to be claimed.
	HasPending(ctx context.Context) (bool, error)

	// FailInterrupted marks every processing item as failed. It is called at
	// startup, when no worker of this process can own such items.
	FailInterrupted(ctx context.Context, message string) (int, error)
}
