package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/store"
)

func newTestStore(t *testing.T) (*MasteryStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewMasteryStore(client, time.Hour, nil), mr
}

func TestMasteryStore_StreakReachesMastery(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	for i := 0; i < 2; i++ {
		mastered, err := s.RecordResult(ctx, "s1", "hablo", true, 3)
		require.NoError(t, err)
		assert.False(t, mastered)
	}
	assert.Equal(t, "2", mr.HGet(s.streakKey("s1"), "hablo"))

	mastered, err := s.RecordResult(ctx, "s1", "hablo", true, 3)
	require.NoError(t, err)
	assert.True(t, mastered)

	got, err := s.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hablo"}, got)
	assert.Empty(t, mr.HGet(s.streakKey("s1"), "hablo"))
}

func TestMasteryStore_WrongAnswerResetsStreak(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, correct := range []bool{true, true, false, true, true} {
		mastered, err := s.RecordResult(ctx, "s1", "fui", correct, 3)
		require.NoError(t, err)
		assert.False(t, mastered)
	}
	mastered, err := s.RecordResult(ctx, "s1", "fui", true, 3)
	require.NoError(t, err)
	assert.True(t, mastered)

	mastered, err = s.RecordResult(ctx, "s1", "fui", false, 3)
	require.NoError(t, err)
	assert.True(t, mastered)
}

func TestMasteryStore_KeysExpire(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.RecordResult(ctx, "s1", "soy", true, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(s.masteredKey("s1")))

	mr.FastForward(2 * time.Hour)

	got, err := s.Mastered(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMasteryStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.RecordResult(ctx, "s1", "soy", true, 1)
	require.NoError(t, err)

	got, err := s.Mastered(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMasteryStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.RecordResult(ctx, "s1", "soy", true, 1)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)

	_, err = s.Mastered(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	addr := mr.Addr()
	client, err := NewClient(context.Background(), config.MasteryConfig{RedisAddr: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = NewClient(context.Background(), config.MasteryConfig{RedisAddr: addr})
	assert.Error(t, err)
}
