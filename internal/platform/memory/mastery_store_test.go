package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasteryStore_StreakReachesMastery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMasteryStore(time.Hour)

	for i := 0; i < 2; i++ {
		mastered, err := m.RecordResult(ctx, "s1", "hablo", true, 3)
		require.NoError(t, err)
		assert.False(t, mastered)
	}
	mastered, err := m.RecordResult(ctx, "s1", "hablo", true, 3)
	require.NoError(t, err)
	assert.True(t, mastered)

	got, err := m.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hablo"}, got)

	other, err := m.Mastered(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMasteryStore_WrongAnswerResetsStreak(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMasteryStore(time.Hour)

	for _, correct := range []bool{true, true, false, true, true} {
		mastered, err := m.RecordResult(ctx, "s1", "fui", correct, 3)
		require.NoError(t, err)
		assert.False(t, mastered)
	}
	mastered, err := m.RecordResult(ctx, "s1", "fui", true, 3)
	require.NoError(t, err)
	assert.True(t, mastered)

	// A later mistake does not take mastery away.
	mastered, err = m.RecordResult(ctx, "s1", "fui", false, 3)
	require.NoError(t, err)
	assert.True(t, mastered)
}

func TestMasteryStore_SessionsExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMasteryStore(time.Minute)
	m.now = func() time.Time { return now }

	_, err := m.RecordResult(ctx, "s1", "soy", true, 1)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	got, err := m.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"soy"}, got)

	now = now.Add(2 * time.Minute)
	got, err = m.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMasteryStore_WritesSweepAbandonedSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMasteryStore(time.Hour)
	m.now = func() time.Time { return now }

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := m.RecordResult(ctx, id, "soy", true, 3)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.sessionCount())

	// Within the TTL nothing is swept.
	now = now.Add(30 * time.Minute)
	_, err := m.RecordResult(ctx, "s4", "soy", true, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, m.sessionCount())

	// s1 to s3 are never read again; the next write past the TTL drops them.
	now = now.Add(45 * time.Minute)
	_, err = m.RecordResult(ctx, "s5", "soy", true, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, m.sessionCount())

	got, err := m.Mastered(ctx, "s4")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMasteryStore_NoTTLNeverSweeps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMasteryStore(0)
	m.now = func() time.Time { return now }

	_, err := m.RecordResult(ctx, "s1", "soy", true, 1)
	require.NoError(t, err)
	now = now.Add(1000 * time.Hour)
	_, err = m.RecordResult(ctx, "s2", "soy", true, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, m.sessionCount())
	got, err := m.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"soy"}, got)
}

func (m *MasteryStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func TestMasteryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMasteryStore(time.Hour)
	_, err := m.RecordResult(ctx, "s1", "soy", true, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Mastered(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
}
