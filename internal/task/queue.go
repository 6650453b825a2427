package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// maxErrorMessage bounds the diagnostic stored on a failed item.
const maxErrorMessage = 1000

// statusWriteTimeout bounds terminal status writes, which run even after the
// drain context was canceled.
const statusWriteTimeout = 5 * time.Second

// interruptedMessage is stored on items found in processing at startup.
const interruptedMessage = "interrupted: process restarted while item was processing"

// QueueConfig holds configuration for the generation queue
type QueueConfig struct {
	// MaxConcurrent bounds both the items claimed per pass and the
	// generation calls running at once.
	MaxConcurrent int

	// CoverageTarget is the number of matching exercises an item tries to
	// reach. Items whose bucket already holds this many complete without
	// calling the model.
	CoverageTarget int

	// GenerationTimeout bounds each model call, including its retries.
	GenerationTimeout time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent:     3,
		CoverageTarget:    10,
		GenerationTimeout: 60 * time.Second,
	}
}

// ExerciseWriter is the part of store.ExerciseStore the queue needs.
type ExerciseWriter interface {
	CountMatching(ctx context.Context, levels []domain.Level, topics []string) (int, error)
	SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error)
}

// ExerciseGenerator produces validated exercises with one model call.
type ExerciseGenerator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// AnswerExcluder supplies the answers a session has mastered.
type AnswerExcluder interface {
	ExcludeAnswers(ctx context.Context, sessionID string) ([]string, error)
}

// EnqueueRequest asks for a bucket to be replenished.
type EnqueueRequest struct {
	Levels    []domain.Level
	Topics    []string
	SessionID string
	Priority  domain.Priority
}

// GenerationQueue drains persisted backfill requests with bounded
// concurrency. At most one drain loop runs at a time; any Enqueue may start it.
type GenerationQueue struct {
	items     store.QueueStore
	exercises ExerciseWriter
	generator ExerciseGenerator
	excluder  AnswerExcluder
	config    QueueConfig
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	draining    atomic.Bool
	drainStarts atomic.Int64

	mu      sync.Mutex
	stopped bool
	active  int
	idle    chan struct{}
}

// NewGenerationQueue creates a queue. excluder may be nil.
func NewGenerationQueue(
	items store.QueueStore,
	exercises ExerciseWriter,
	generator ExerciseGenerator,
	excluder AnswerExcluder,
	config QueueConfig,
	log *slog.Logger,
) *GenerationQueue {
	if items == nil || exercises == nil || generator == nil {
		panic("generation queue dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	defaults := DefaultQueueConfig()
	if config.MaxConcurrent <= 0 {
		log.Warn("invalid max concurrency specified, using default",
			slog.Int("specified", config.MaxConcurrent),
			slog.Int("default", defaults.MaxConcurrent))
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.CoverageTarget <= 0 {
		config.CoverageTarget = defaults.CoverageTarget
	}
	if config.GenerationTimeout <= 0 {
		config.GenerationTimeout = defaults.GenerationTimeout
	}

	log = log.With(slog.String("component", "generation_queue"))
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))

	return &GenerationQueue{
		items:     items,
		exercises: exercises,
		generator: generator,
		excluder:  excluder,
		config:    config,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue persists a pending item and makes sure a drain is running. An open
// item for the same levels and topics is reused instead of creating another.
func (q *GenerationQueue) Enqueue(ctx context.Context, req EnqueueRequest) (uuid.UUID, error) {
	if q.isStopped() {
		return uuid.Nil, ErrQueueStopped
	}
	log := logger.FromContextOrDefault(ctx, q.logger)

	item, err := domain.NewQueueItem(req.Levels, req.Topics, req.SessionID, req.Priority)
	if err != nil {
		return uuid.Nil, err
	}

	id, created, err := q.items.Enqueue(ctx, item)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue generation request: %w", err)
	}

	if created {
		log.InfoContext(ctx, "generation request enqueued",
			slog.String("queue_item_id", id.String()),
			slog.String("request_key", item.RequestKey()),
			slog.String("priority", string(item.Priority)))
	} else {
		log.DebugContext(ctx, "generation request already open",
			slog.String("queue_item_id", id.String()),
			slog.String("request_key", item.RequestKey()))
	}

	q.startDrain()
	return id, nil
}

// Recover fails items left in processing by a previous process and drains
// whatever is still pending.
func (q *GenerationQueue) Recover(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	n, err := q.items.FailInterrupted(ctx, interruptedMessage)
	if err != nil {
		return fmt.Errorf("failed to fail interrupted items: %w", err)
	}

	pending, err := q.items.HasPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to check pending items: %w", err)
	}

	log.InfoContext(ctx, "recovered generation queue",
		slog.Int("interrupted_count", n),
		slog.Bool("pending", pending))

	if pending {
		q.startDrain()
	}
	return nil
}

// Stop refuses new work and waits for the running drain to finish. When ctx
// expires first, in-flight generation calls are canceled.
func (q *GenerationQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	active, idle := q.active, q.idle
	q.mu.Unlock()

	if active == 0 {
		q.cancel()
		return nil
	}

	select {
	case <-idle:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

// WaitIdle blocks until no drain is running or ctx expires.
func (q *GenerationQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	active, idle := q.active, q.idle
	q.mu.Unlock()

	if active == 0 {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainStarts returns how many drain loops have been started.
func (q *GenerationQueue) DrainStarts() int64 {
	return q.drainStarts.Load()
}

// Draining reports whether a drain loop is running.
func (q *GenerationQueue) Draining() bool {
	return q.draining.Load()
}

func (q *GenerationQueue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// startDrain launches the drain loop unless one is already running.
func (q *GenerationQueue) startDrain() bool {
	if !q.draining.CompareAndSwap(false, true) {
		return false
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.draining.Store(false)
		return false
	}
	if q.active == 0 {
		q.idle = make(chan struct{})
	}
	q.active++
	q.mu.Unlock()

	q.drainStarts.Add(1)
	go q.drain()
	return true
}

func (q *GenerationQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active--
	if q.active == 0 {
		close(q.idle)
	}
}

// drain claims and processes batches until none are pending.
func (q *GenerationQueue) drain() {
	defer q.release()

	ctx := q.ctx
	passes := 0
	for {
		items, err := q.items.ClaimPending(ctx, q.config.MaxConcurrent)
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to claim pending items", slog.String("error", err.Error()))
			// The next Enqueue retries; re-checking here could spin on a dead store.
			q.draining.Store(false)
			return
		}
		if len(items) == 0 {
			break
		}
		passes++

		var g errgroup.Group
		g.SetLimit(q.config.MaxConcurrent)
		for _, item := range items {
			g.Go(func() error {
				return q.process(ctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			q.logger.WarnContext(ctx, "drain pass finished with failures",
				slog.Int("pass", passes),
				slog.String("first_error", err.Error()))
		}
	}

	q.logger.DebugContext(ctx, "drain finished", slog.Int("passes", passes))
	q.draining.Store(false)

	// An Enqueue that raced with the final empty claim saw draining=true and
	// did not start a loop. Look again now that the flag is clear.
	if q.isStopped() {
		return
	}
	pending, err := q.items.HasPending(ctx)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to re-check pending items", slog.String("error", err.Error()))
		return
	}
	if pending {
		q.startDrain()
	}
}

// process runs the per-item algorithm. The item always ends completed or
// failed unless its status write itself fails.
func (q *GenerationQueue) process(ctx context.Context, item *domain.QueueItem) (err error) {
	log := q.logger.With(
		slog.String("queue_item_id", item.ID.String()),
		slog.Any("levels", domain.LevelStrings(item.Levels)),
		slog.Any("topics", item.Topics),
		slog.String("priority", string(item.Priority)),
		slog.String("session_id", item.SessionID))
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			err = q.fail(ctx, item, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
		}
	}()

	existing, err := q.exercises.CountMatching(ctx, item.Levels, item.Topics)
	if err != nil {
		return q.fail(ctx, item, fmt.Errorf("failed to check coverage: %w", err))
	}
	if existing >= q.config.CoverageTarget {
		log.InfoContext(ctx, "coverage already sufficient", slog.Int("existing", existing))
		return q.complete(ctx, item, 0)
	}
	needed := q.config.CoverageTarget - existing

	req := generation.Request{
		Levels: item.Levels,
		Topics: item.Topics,
		Count:  needed,
	}
	if q.excluder != nil && item.SessionID != "" {
		avoid, err := q.excluder.ExcludeAnswers(ctx, item.SessionID)
		if err != nil {
			log.WarnContext(ctx, "failed to load mastered answers", slog.String("error", err.Error()))
		}
		req.AvoidAnswers = avoid
	}

	genCtx, cancel := context.WithTimeout(ctx, q.config.GenerationTimeout)
	result, err := q.generator.Generate(genCtx, req)
	cancel()
	if err != nil {
		return q.fail(ctx, item, fmt.Errorf("failed to generate exercises: %w", err))
	}

	inserted, err := q.exercises.SaveBatch(ctx, result.Exercises)
	if err != nil {
		return q.fail(ctx, item, fmt.Errorf("failed to save exercises: %w", err))
	}

	log.InfoContext(ctx, "generation request processed",
		slog.Int("existing", existing),
		slog.Int("needed", needed),
		slog.Int("accepted", len(result.Exercises)),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int("inserted", len(inserted)))
	return q.complete(ctx, item, len(inserted))
}

func (q *GenerationQueue) complete(ctx context.Context, item *domain.QueueItem, inserted int) error {
	wctx, cancel := statusContext(ctx)
	defer cancel()

	if err := q.items.Complete(wctx, item.ID, inserted); err != nil {
		logger.FromContextOrDefault(ctx, q.logger).ErrorContext(ctx, "failed to mark item completed",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to complete item %s: %w", item.ID, err)
	}
	return nil
}

// fail records cause on the item and returns it.
func (q *GenerationQueue) fail(ctx context.Context, item *domain.QueueItem, cause error) error {
	log := logger.FromContextOrDefault(ctx, q.logger)
	log.ErrorContext(ctx, "generation request failed", slog.String("error", cause.Error()))

	wctx, cancel := statusContext(ctx)
	defer cancel()

	if err := q.items.Fail(wctx, item.ID, truncate(cause.Error(), maxErrorMessage)); err != nil {
		log.ErrorContext(ctx, "failed to mark item failed", slog.String("error", err.Error()))
		return errors.Join(cause, err)
	}
	return cause
}

func statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
