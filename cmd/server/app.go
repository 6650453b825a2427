package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/gapfill-api/internal/api"
	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/platform/gemini"
	"github.com/phrazzld/gapfill-api/internal/platform/memory"
	"github.com/phrazzld/gapfill-api/internal/platform/postgres"
	"github.com/phrazzld/gapfill-api/internal/platform/redis"
	"github.com/phrazzld/gapfill-api/internal/redact"
	"github.com/phrazzld/gapfill-api/internal/seedbank"
	"github.com/phrazzld/gapfill-api/internal/service"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/phrazzld/gapfill-api/internal/task"
)

// requestTimeoutMargin is added to the interactive generation timeout so the
// resolver can still fall back to seeds before the request is cut off.
const requestTimeoutMargin = 5 * time.Second

// dependencies lets callers supply external clients. Nil fields are built
// from configuration.
type dependencies struct {
	model   generation.Model
	mastery masteryBackend
}

// masteryBackend is a mastery store plus whatever it needs released on shutdown.
type masteryBackend struct {
	store store.MasteryStore
	close func() error
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	exerciseStore *postgres.PostgresExerciseStore
	queueStore    *postgres.PostgresQueueStore
	seeds         *seedbank.Bank

	supervisor *task.Supervisor
	queue      *task.GenerationQueue
	tracker    *service.UsageTracker
	resolver   *service.FallbackResolver

	closeMastery func() error
	router       http.Handler
}

// newApplication creates a new application instance with all dependencies
// initialized. The database must already be migrated.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	db *sql.DB,
	deps dependencies,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
		db:     db,
	}
	languages := cfg.Exercise.Languages

	app.exerciseStore = postgres.NewPostgresExerciseStore(db, languages, log)
	app.queueStore = postgres.NewPostgresQueueStore(db, log)

	var err error
	app.seeds, err = seedbank.Default(languages)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed bank: %w", err)
	}
	log.Info("seed bank loaded", slog.Int("exercises", app.seeds.Len()))

	model := deps.model
	if model == nil {
		model, err = gemini.NewModel(ctx, log.With(slog.String("component", "llm_model")), cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM model: %w", err)
		}
	}

	prompts, err := generation.NewPromptBuilder(cfg.LLM.PromptTemplatePath, languages)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt template: %w", err)
	}
	validator := generation.NewCandidateValidator(languages)

	// Interactive calls get one attempt; the request is waiting on them.
	interactive := generation.NewGenerator(model, prompts, validator, log)
	background := generation.NewGenerator(
		generation.WithRetry(model, cfg.LLM.MaxRetries, cfg.LLM.RetryBaseDelay, log),
		prompts, validator, log,
	)

	mastery := deps.mastery
	if mastery.store == nil {
		mastery, err = newMasteryBackend(ctx, cfg.Mastery, log)
		if err != nil {
			return nil, err
		}
	}
	app.closeMastery = mastery.close

	app.supervisor = task.NewSupervisor(task.DefaultSupervisorConfig("usage"), log)
	app.tracker, err = service.NewUsageTracker(app.exerciseStore, mastery.store, app.supervisor, cfg.Mastery.Streak, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage tracker: %w", err)
	}

	app.queue = task.NewGenerationQueue(app.queueStore, app.exerciseStore, background, app.tracker, task.QueueConfig{
		MaxConcurrent:     cfg.Queue.MaxConcurrent,
		CoverageTarget:    cfg.Queue.CoverageTarget,
		GenerationTimeout: cfg.LLM.BackgroundTimeout,
	}, log)

	app.resolver, err = service.NewFallbackResolver(
		app.exerciseStore,
		interactive,
		app.seeds,
		app.queue,
		app.tracker,
		service.ResolverConfig{
			OnDemandEnabled:    cfg.Resolver.OnDemandEnabled,
			OnDemandCap:        cfg.Resolver.OnDemandCap,
			InteractiveTimeout: cfg.LLM.InteractiveTimeout,
			MaxCount:           cfg.Resolver.MaxCount,
		},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback resolver: %w", err)
	}

	app.router = api.NewRouter(api.Handlers{
		Exercises: api.NewExerciseHandler(app.resolver),
		Usage:     api.NewUsageHandler(app.tracker),
		Queue:     api.NewQueueHandler(app.queue, app.queueStore),
		Admin:     api.NewAdminHandler(app.exerciseStore, db),
	}, log, cfg.LLM.InteractiveTimeout+requestTimeoutMargin)

	log.Info("application initialized successfully")
	return app, nil
}

// newMasteryBackend builds the configured mastery store.
func newMasteryBackend(ctx context.Context, cfg config.MasteryConfig, log *slog.Logger) (masteryBackend, error) {
	switch cfg.Backend {
	case "redis":
		client, err := redis.NewClient(ctx, cfg)
		if err != nil {
			return masteryBackend{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("mastery store initialized", slog.String("backend", "redis"))
		return masteryBackend{
			store: redis.NewMasteryStore(client, cfg.TTL, log),
			close: client.Close,
		}, nil
	case "memory", "":
		log.Info("mastery store initialized", slog.String("backend", "memory"))
		return masteryBackend{store: memory.NewMasteryStore(cfg.TTL)}, nil
	default:
		return masteryBackend{}, fmt.Errorf("unknown mastery backend %q", cfg.Backend)
	}
}

// Run imports the seed bank and recovers the queue, then serves HTTP until
// ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	if app.config.Exercise.ImportSeedsOnStart {
		app.importSeedBank(ctx)
	}
	if app.config.Queue.RecoverOnStart {
		if err := app.queue.Recover(ctx); err != nil {
			// Serving from cache and seeds still works without the queue.
			app.logger.Error("failed to recover generation queue", redact.Attr(err))
		}
	}

	if err := app.startHTTPServer(ctx, app.router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// importSeedBank stores the seed bank so served seeds can be marked used.
// Seeds are still served from memory when this fails.
func (app *application) importSeedBank(ctx context.Context) {
	if _, err := app.seeds.Import(ctx, app.exerciseStore, app.logger); err != nil {
		app.logger.Error("failed to import seed bank on start", redact.Attr(err))
	}
}

// cleanup stops background work and releases resources. The database is
// closed by the caller that opened it.
func (app *application) cleanup(ctx context.Context) error {
	var errs []error

	if err := app.queue.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("generation queue: %w", err))
	}
	if err := app.supervisor.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("usage supervisor: %w", err))
	}
	if app.closeMastery != nil {
		if err := app.closeMastery(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, fmt.Errorf("mastery store: %w", err))
		}
	}

	app.logger.Info("application shutdown completed",
		slog.Int64("usage_completed", app.supervisor.Completed()),
		slog.Int64("usage_failures", app.supervisor.Failures()))
	return errors.Join(errs...)
}
