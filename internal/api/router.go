package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apimw "github.com/phrazzld/gapfill-api/internal/api/middleware"
)

// Handlers groups the handlers mounted by NewRouter.
type Handlers struct {
	Exercises *ExerciseHandler
	Usage     *UsageHandler
	Queue     *QueueHandler
	Admin     *AdminHandler
}

// NewRouter builds the HTTP routes under /api plus /health.
func NewRouter(h Handlers, log *slog.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(apimw.Trace(log))
	r.Use(chimw.Recoverer)
	if requestTimeout > 0 {
		r.Use(chimw.Timeout(requestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/exercises", h.Exercises.GetExercises)
		r.Post("/exercises", h.Exercises.PostExercises)

		r.Post("/usage", h.Usage.RecordUsage)

		r.Post("/queue/enqueue", h.Queue.Enqueue)
		r.Get("/queue/{id}", h.Queue.GetQueueItem)

		r.Get("/admin/coverage", h.Admin.Coverage)
	})

	r.Get("/health", h.Admin.Health)

	return r
}
