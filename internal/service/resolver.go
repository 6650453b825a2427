package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/seedbank"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/phrazzld/gapfill-api/internal/task"
)

// OnDemandLimit caps how many exercises one interactive request may generate.
const OnDemandLimit = 10

// ResolverConfig tunes the tiered lookup.
type ResolverConfig struct {
	// OnDemandEnabled allows interactive requests to call the model synchronously.
	OnDemandEnabled bool
	// OnDemandCap bounds synchronous generation; it is clamped to OnDemandLimit.
	OnDemandCap int
	// InteractiveTimeout bounds the synchronous model call.
	InteractiveTimeout time.Duration
	// MaxCount is the largest count a request may ask for.
	MaxCount int
}

// DefaultResolverConfig returns a ResolverConfig with reasonable defaults
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		OnDemandEnabled:    true,
		OnDemandCap:        OnDemandLimit,
		InteractiveTimeout: 15 * time.Second,
		MaxCount:           50,
	}
}

// ExerciseCache is the part of store.ExerciseStore the resolver reads and fills.
type ExerciseCache interface {
	Query(ctx context.Context, q store.ExerciseQuery) ([]*domain.Exercise, error)
	SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error)
}

// Generator produces validated exercises with one model call.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// SeedPicker serves static fallback exercises.
type SeedPicker interface {
	Pick(req seedbank.PickRequest) []*domain.Exercise
}

// Enqueuer schedules background replenishment.
type Enqueuer interface {
	Enqueue(ctx context.Context, req task.EnqueueRequest) (uuid.UUID, error)
}

// AnswerExcluder supplies the answers a session has mastered.
type AnswerExcluder interface {
	ExcludeAnswers(ctx context.Context, sessionID string) ([]string, error)
}

// ResolveRequest asks for exercises.
type ResolveRequest struct {
	Levels    []domain.Level
	Topics    []string
	Count     int
	SessionID string
	// Interactive marks a learner waiting on the response. Only interactive
	// requests may trigger synchronous generation.
	Interactive bool
}

// TierCounts reports how many exercises each tier contributed.
type TierCounts struct {
	Cache     int `json:"cache"`
	Generated int `json:"generated"`
	Seed      int `json:"seed"`
}

// ResolveResult is the outcome of Resolve.
type ResolveResult struct {
	Exercises []*domain.Exercise
	Tiers     TierCounts
	// QueueItemID identifies the background request created or reused for a
	// cache shortfall. It is uuid.Nil when none was needed or enqueue failed.
	QueueItemID uuid.UUID
}

// FallbackResolver answers exercise requests from the cache, then on-demand
// generation, then the static seed bank, scheduling a background refill
// whenever the cache fell short.
type FallbackResolver struct {
	cache     ExerciseCache
	generator Generator
	seeds     SeedPicker
	queue     Enqueuer
	excluder  AnswerExcluder
	config    ResolverConfig
	logger    *slog.Logger
}

// NewFallbackResolver creates a resolver. generator, queue and excluder may
// be nil, which disables the matching tier.
func NewFallbackResolver(
	cache ExerciseCache,
	generator Generator,
	seeds SeedPicker,
	queue Enqueuer,
	excluder AnswerExcluder,
	config ResolverConfig,
	log *slog.Logger,
) (*FallbackResolver, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: exercise cache cannot be nil", domain.ErrValidation)
	}
	if seeds == nil {
		return nil, fmt.Errorf("%w: seed picker cannot be nil", domain.ErrValidation)
	}
	defaults := DefaultResolverConfig()
	if config.OnDemandCap <= 0 || config.OnDemandCap > OnDemandLimit {
		config.OnDemandCap = OnDemandLimit
	}
	if config.InteractiveTimeout <= 0 {
		config.InteractiveTimeout = defaults.InteractiveTimeout
	}
	if config.MaxCount <= 0 {
		config.MaxCount = defaults.MaxCount
	}
	if log == nil {
		log = slog.Default()
	}

	return &FallbackResolver{
		cache:     cache,
		generator: generator,
		seeds:     seeds,
		queue:     queue,
		excluder:  excluder,
		config:    config,
		logger:    log.With(slog.String("component", "fallback_resolver")),
	}, nil
}

// Resolve returns between one and req.Count exercises. It fails only for
// invalid input; unavailable tiers are logged and skipped.
func (r *FallbackResolver) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	req, err := r.normalize(req)
	if err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.Any("levels", domain.LevelStrings(req.Levels)),
		slog.Any("topics", req.Topics),
		slog.Int("count", req.Count),
	)

	mastered := r.masteredAnswers(ctx, log, req.SessionID)
	res := &ResolveResult{Exercises: make([]*domain.Exercise, 0, req.Count)}
	seen := make(map[domain.DedupKey]struct{}, req.Count)
	add := func(exercises []*domain.Exercise) int {
		added := 0
		for _, ex := range exercises {
			if len(res.Exercises) == req.Count {
				break
			}
			key := domain.DedupKeyFor(ex)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res.Exercises = append(res.Exercises, ex)
			added++
		}
		return added
	}

	cached, err := r.cache.Query(ctx, store.ExerciseQuery{
		Levels:         req.Levels,
		Topics:         req.Topics,
		ExcludeAnswers: mastered,
		Limit:          req.Count,
	})
	if err != nil {
		// Any store failure falls through to the remaining tiers.
		log.WarnContext(ctx, "exercise cache query failed, falling back",
			slog.String("error", err.Error()),
			slog.Bool("store_unavailable", store.IsUnavailableError(err)))
	}
	res.Tiers.Cache = add(cached)
	shortfall := req.Count - len(res.Exercises)

	if shortfall > 0 && req.Interactive && r.config.OnDemandEnabled && r.generator != nil {
		res.Tiers.Generated = add(r.generateOnDemand(ctx, log, req, shortfall, mastered))
	}

	if residual := req.Count - len(res.Exercises); residual > 0 {
		exclude := make(map[uuid.UUID]struct{}, len(res.Exercises))
		for _, ex := range res.Exercises {
			exclude[ex.ID] = struct{}{}
		}
		// Ask for extra so seeds sharing a sentence with served items can be skipped.
		res.Tiers.Seed = add(r.seeds.Pick(seedbank.PickRequest{
			Levels:         req.Levels,
			Topics:         req.Topics,
			Count:          residual + len(res.Exercises),
			ExcludeIDs:     exclude,
			ExcludeAnswers: mastered,
		}))
	}

	if shortfall > 0 && r.queue != nil {
		res.QueueItemID = r.enqueue(ctx, log, req)
	}

	log.InfoContext(ctx, "exercises resolved",
		slog.Int("served", len(res.Exercises)),
		slog.Int("cache", res.Tiers.Cache),
		slog.Int("generated", res.Tiers.Generated),
		slog.Int("seed", res.Tiers.Seed))
	return res, nil
}

func (r *FallbackResolver) normalize(req ResolveRequest) (ResolveRequest, error) {
	if len(req.Levels) == 0 {
		return req, domain.ErrNoLevels
	}
	levels := make([]domain.Level, 0, len(req.Levels))
	for _, l := range req.Levels {
		if !l.IsValid() {
			return req, fmt.Errorf("%w: %q", domain.ErrInvalidLevel, l)
		}
		if !domain.ContainsLevel(levels, l) {
			levels = append(levels, l)
		}
	}
	domain.SortLevels(levels)
	req.Levels = levels

	topics, err := domain.NormalizeTopics(req.Topics)
	if err != nil {
		return req, err
	}
	req.Topics = topics

	if req.Count < 1 || req.Count > r.config.MaxCount {
		return req, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidCount, r.config.MaxCount, req.Count)
	}
	return req, nil
}

func (r *FallbackResolver) masteredAnswers(ctx context.Context, log *slog.Logger, sessionID string) []string {
	if sessionID == "" || r.excluder == nil {
		return nil
	}
	answers, err := r.excluder.ExcludeAnswers(ctx, sessionID)
	if err != nil {
		log.WarnContext(ctx, "could not load mastered answers",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil
	}
	return answers
}

// generateOnDemand makes one bounded model call. Any failure counts as an
// unmet shortfall and is only logged.
func (r *FallbackResolver) generateOnDemand(
	ctx context.Context,
	log *slog.Logger,
	req ResolveRequest,
	shortfall int,
	mastered []string,
) []*domain.Exercise {
	n := min(shortfall, r.config.OnDemandCap)

	genCtx, cancel := context.WithTimeout(ctx, r.config.InteractiveTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.generator.Generate(genCtx, generation.Request{
		Levels:       req.Levels,
		Topics:       req.Topics,
		Count:        n,
		AvoidAnswers: mastered,
	})
	if err != nil {
		log.WarnContext(ctx, "on-demand generation failed",
			slog.Int("requested", n),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil
	}

	served := result.Exercises
	inserted, err := r.cache.SaveBatch(ctx, result.Exercises)
	if err != nil {
		// Unsaved exercises are still valid for this response.
		log.WarnContext(ctx, "failed to persist on-demand exercises",
			slog.Int("count", len(result.Exercises)),
			slog.String("error", err.Error()))
	} else {
		// Skipped rows duplicate stored exercises that are either already
		// served or excluded for this session.
		served = keepInserted(result.Exercises, inserted)
	}

	log.InfoContext(ctx, "on-demand generation finished",
		slog.Int("requested", n),
		slog.Int("accepted", len(result.Exercises)),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int("inserted", len(inserted)),
		slog.Duration("elapsed", time.Since(start)))
	return served
}

func keepInserted(exercises []*domain.Exercise, inserted []uuid.UUID) []*domain.Exercise {
	ids := make(map[uuid.UUID]struct{}, len(inserted))
	for _, id := range inserted {
		ids[id] = struct{}{}
	}
	out := make([]*domain.Exercise, 0, len(inserted))
	for _, ex := range exercises {
		if _, ok := ids[ex.ID]; ok {
			out = append(out, ex)
		}
	}
	return out
}

func (r *FallbackResolver) enqueue(ctx context.Context, log *slog.Logger, req ResolveRequest) uuid.UUID {
	// Replenishment from a request always waits behind explicit immediate
	// requests made through the queue API.
	id, err := r.queue.Enqueue(ctx, task.EnqueueRequest{
		Levels:    req.Levels,
		Topics:    req.Topics,
		SessionID: req.SessionID,
		Priority:  domain.PriorityBackground,
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, task.ErrQueueStopped) {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "failed to enqueue background generation",
			slog.String("error", err.Error()))
		return uuid.Nil
	}
	return id
}
