package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/gapfill-api/internal/platform/logger"
)

// SupervisorConfig holds configuration options for a Supervisor
type SupervisorConfig struct {
	// Name identifies the supervisor in logs.
	Name string

	// MaxInFlight bounds the number of concurrently running tasks.
	// If zero or negative, defaults to 16.
	MaxInFlight int

	// ErrorBuffer is the capacity of the Errors channel. Errors arriving
	// while it is full are dropped but still counted.
	ErrorBuffer int
}

// DefaultSupervisorConfig returns a SupervisorConfig with reasonable defaults
func DefaultSupervisorConfig(name string) SupervisorConfig {
	return SupervisorConfig{
		Name:        name,
		MaxInFlight: 16,
		ErrorBuffer: 64,
	}
}

// Supervisor runs fire-and-forget work on bounded goroutines and keeps every
// failure observable through a counter, an error channel and the log.
type Supervisor struct {
	name   string
	slots  chan struct{}
	errs   chan error
	logger *slog.Logger

	failures  atomic.Int64
	completed atomic.Int64

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor.
func NewSupervisor(config SupervisorConfig, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 16
	}
	if config.ErrorBuffer < 0 {
		config.ErrorBuffer = 0
	}
	return &Supervisor{
		name:   config.Name,
		slots:  make(chan struct{}, config.MaxInFlight),
		errs:   make(chan error, config.ErrorBuffer),
		logger: log.With(slog.String("component", "supervisor"), slog.String("supervisor", config.Name)),
	}
}

// Go runs fn in the background. It waits for a free slot only as long as ctx
// allows. fn receives a context that carries ctx's values but not its
// cancellation, so the work outlives the request that started it.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		s.wg.Done()
		return ctx.Err()
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		s.run(bg, name, fn)
	}()
	return nil
}

func (s *Supervisor) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		err = fn(ctx)
	}()

	if err == nil {
		s.completed.Add(1)
		return
	}

	s.failures.Add(1)
	err = fmt.Errorf("%s: %w", name, err)
	logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "background task failed",
		slog.String("supervisor", s.name),
		slog.String("task", name),
		slog.String("error", err.Error()))

	select {
	case s.errs <- err:
	default:
	}
}

// Errors returns the channel failed tasks are reported on.
func (s *Supervisor) Errors() <-chan error {
	return s.errs
}

// Failures returns the number of tasks that returned an error or panicked.
func (s *Supervisor) Failures() int64 {
	return s.failures.Load()
}

// Completed returns the number of tasks that finished without error.
func (s *Supervisor) Completed() int64 {
	return s.completed.Load()
}

// Wait stops accepting tasks and blocks until running ones finish or ctx expires.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
