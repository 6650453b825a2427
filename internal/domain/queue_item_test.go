package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueItem(t *testing.T) {
	t.Parallel()

	item, err := NewQueueItem([]Level{LevelB1, LevelA1, LevelB1}, []string{"Verbs"}, "s-1", "")
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelA1, LevelB1}, item.Levels)
	assert.Equal(t, []string{"verbs"}, item.Topics)
	assert.Equal(t, PriorityBackground, item.Priority)
	assert.Equal(t, QueueStatusPending, item.Status)
	assert.Equal(t, "A1,B1|verbs", item.RequestKey())

	anyTopic, err := NewQueueItem([]Level{LevelC1}, nil, "", PriorityImmediate)
	require.NoError(t, err)
	assert.Equal(t, "C1|*", anyTopic.RequestKey())

	_, err = NewQueueItem(nil, nil, "", "")
	assert.ErrorIs(t, err, ErrNoLevels)

	_, err = NewQueueItem([]Level{LevelA1}, nil, "", "urgent")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestQueueItemTransitions(t *testing.T) {
	t.Parallel()

	item, err := NewQueueItem([]Level{LevelA1}, nil, "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, item.TransitionTo(QueueStatusCompleted), ErrInvalidTransition)
	require.NoError(t, item.TransitionTo(QueueStatusProcessing))
	require.NoError(t, item.TransitionTo(QueueStatusFailed))
	assert.True(t, item.Status.IsTerminal())

	for _, next := range []QueueStatus{QueueStatusPending, QueueStatusProcessing, QueueStatusCompleted} {
		assert.ErrorIs(t, item.TransitionTo(next), ErrInvalidTransition)
	}
	assert.Equal(t, QueueStatusFailed, item.Status)
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	p, err := ParsePriority("IMMEDIATE")
	require.NoError(t, err)
	assert.Equal(t, PriorityImmediate, p)

	p, err = ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityBackground, p)

	_, err = ParsePriority("later")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}
