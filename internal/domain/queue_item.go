package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the processing state of a backfill request.
type QueueStatus string

// Queue item statuses. Completed and failed are terminal.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// Priority tells the queue how urgently an item was requested.
type Priority string

// Queue priorities.
const (
	PriorityImmediate  Priority = "immediate"
	PriorityBackground Priority = "background"
)

// ParsePriority accepts "immediate" or "background"; empty means background.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityBackground, nil
	case PriorityImmediate, PriorityBackground:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	switch s {
	case QueueStatusPending:
		return next == QueueStatusProcessing
	case QueueStatusProcessing:
		return next == QueueStatusCompleted || next == QueueStatusFailed
	default:
		return false
	}
}

// QueueItem is a pending request to replenish the cache for some
// (levels, topics) combination.
type QueueItem struct {
	ID            uuid.UUID
	SessionID     string
	Levels        []Level
	Topics        []string
	Priority      Priority
	Status        QueueStatus
	ErrorMessage  string
	InsertedCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewQueueItem creates a pending item with normalized levels and topics.
func NewQueueItem(levels []Level, topics []string, sessionID string, priority Priority) (*QueueItem, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	lv := make([]Level, 0, len(levels))
	for _, l := range levels {
		if !l.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, l)
		}
		if !ContainsLevel(lv, l) {
			lv = append(lv, l)
		}
	}
	SortLevels(lv)

	tp, err := NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}

	if priority == "" {
		priority = PriorityBackground
	}
	if priority != PriorityImmediate && priority != PriorityBackground {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	now := time.Now().UTC()
	return &QueueItem{
		ID:        uuid.New(),
		SessionID: sessionID,
		Levels:    lv,
		Topics:    tp,
		Priority:  priority,
		Status:    QueueStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo moves the item to next, enforcing the state machine.
func (q *QueueItem) TransitionTo(next QueueStatus) error {
	if !q.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, next)
	}
	q.Status = next
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// RequestKey identifies requests for the same (levels, topics) pair. Two
// open items with the same key would generate for the same bucket.
func (q *QueueItem) RequestKey() string {
	return RequestKey(q.Levels, q.Topics)
}

// RequestKey builds the canonical key from already normalized levels and topics.
func RequestKey(levels []Level, topics []string) string {
	t := "*"
	if len(topics) > 0 {
		t = strings.Join(topics, ",")
	}
	return strings.Join(LevelStrings(levels), ",") + "|" + t
}
