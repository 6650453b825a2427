package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/gapfill-api/internal/api/shared"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/service"
)

// ExerciseResolver serves exercises. service.FallbackResolver implements it.
type ExerciseResolver interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (*service.ResolveResult, error)
}

// ExerciseHandler handles exercise retrieval requests
type ExerciseHandler struct {
	resolver ExerciseResolver
	shuffle  shuffleFunc
}

// NewExerciseHandler creates a new ExerciseHandler
func NewExerciseHandler(resolver ExerciseResolver) *ExerciseHandler {
	return &ExerciseHandler{resolver: resolver}
}

// GetExercises handles GET /api/exercises?levels=A1,A2&topics=verbs&count=10&session_id=...
func (h *ExerciseHandler) GetExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	count, err := queryInt(q, "count", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	interactive, err := queryBool(q, "interactive", true)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.resolve(w, r, ExercisesRequest{
		Levels:      queryList(q, "levels"),
		Topics:      queryList(q, "topics"),
		Count:       count,
		SessionID:   q.Get("session_id"),
		Interactive: &interactive,
	})
}

// PostExercises handles POST /api/exercises with an ExercisesRequest body.
func (h *ExerciseHandler) PostExercises(w http.ResponseWriter, r *http.Request) {
	var req ExercisesRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	h.resolve(w, r, req)
}

func (h *ExerciseHandler) resolve(w http.ResponseWriter, r *http.Request, req ExercisesRequest) {
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	levels, err := domain.ParseLevels(req.Levels)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if req.Count == 0 {
		req.Count = DefaultExerciseCount
	}
	interactive := req.Interactive == nil || *req.Interactive

	result, err := h.resolver.Resolve(r.Context(), service.ResolveRequest{
		Levels:      levels,
		Topics:      req.Topics,
		Count:       req.Count,
		SessionID:   req.SessionID,
		Interactive: interactive,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := ExercisesResponse{
		Exercises: exercisesToResponse(result.Exercises, h.shuffle),
		Tiers:     result.Tiers,
	}
	if result.QueueItemID != uuid.Nil {
		resp.QueueItemID = result.QueueItemID.String()
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
