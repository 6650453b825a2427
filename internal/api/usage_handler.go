package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/gapfill-api/internal/api/shared"
	"github.com/phrazzld/gapfill-api/internal/service"
)

// AttemptRecorder accepts usage reports. service.UsageTracker implements it.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a service.Attempt) error
}

// UsageHandler handles usage reporting requests
type UsageHandler struct {
	recorder AttemptRecorder
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(recorder AttemptRecorder) *UsageHandler {
	return &UsageHandler{recorder: recorder}
}

// RecordUsage handles POST /api/usage. The write happens in the background,
// so a 202 only means the attempt was accepted.
func (h *UsageHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	err := h.recorder.RecordAttempt(r.Context(), service.Attempt{
		ExerciseID: uuid.MustParse(req.ExerciseID),
		SessionID:  req.SessionID,
		WasCorrect: req.WasCorrect,
		LatencyMs:  req.LatencyMs,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, StatusResponse{Status: "accepted"})
}
