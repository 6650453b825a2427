package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/gapfill-api/internal/api/shared"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/store"
)

// CoverageReporter summarises the exercise cache. store.ExerciseStore implements it.
type CoverageReporter interface {
	CoverageReport(ctx context.Context) ([]store.CoverageBucket, error)
	CountByLevel(ctx context.Context, level domain.Level) (int, error)
}

// Pinger checks that a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	coverage CoverageReporter
	db       Pinger
}

// NewAdminHandler creates a new AdminHandler. db may be nil.
func NewAdminHandler(coverage CoverageReporter, db Pinger) *AdminHandler {
	return &AdminHandler{coverage: coverage, db: db}
}

// Coverage handles GET /api/admin/coverage
func (h *AdminHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.coverage.CoverageReport(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// Every level is listed, including empty ones.
	levels := make(map[string]int, len(domain.AllLevels))
	for _, level := range domain.AllLevels {
		n, err := h.coverage.CountByLevel(r.Context(), level)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		levels[string(level)] = n
	}
	shared.RespondWithJSON(w, r, http.StatusOK, coverageToResponse(buckets, levels))
}

// Health handles GET /health. It reports 503 when the database does not answer.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Status: "ok"})
}
