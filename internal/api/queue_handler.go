package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/gapfill-api/internal/api/shared"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/task"
)

// Enqueuer accepts background generation requests. task.GenerationQueue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req task.EnqueueRequest) (uuid.UUID, error)
}

// QueueItemReader looks up queue items. store.QueueStore implements it.
type QueueItemReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error)
}

// QueueHandler handles queue requests
type QueueHandler struct {
	queue Enqueuer
	items QueueItemReader
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(queue Enqueuer, items QueueItemReader) *QueueHandler {
	return &QueueHandler{queue: queue, items: items}
}

// Enqueue handles POST /api/queue/enqueue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	levels, err := domain.ParseLevels(req.Levels)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	id, err := h.queue.Enqueue(r.Context(), task.EnqueueRequest{
		Levels:    levels,
		Topics:    req.Topics,
		SessionID: req.SessionID,
		Priority:  priority,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{QueueItemID: id.String()})
}

// GetQueueItem handles GET /api/queue/{id}
func (h *QueueHandler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	item, err := h.items.GetByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueItemToResponse(item))
}
