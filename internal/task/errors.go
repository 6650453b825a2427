package task

import "errors"

var (
	// ErrQueueStopped is returned by Enqueue after Stop has been called.
	ErrQueueStopped = errors.New("generation queue is stopped")

	// ErrSupervisorClosed is returned by Supervisor.Go after Wait has been called.
	ErrSupervisorClosed = errors.New("supervisor is closed")

	// ErrTaskPanicked wraps a recovered panic from background work.
	ErrTaskPanicked = errors.New("background task panicked")
)
