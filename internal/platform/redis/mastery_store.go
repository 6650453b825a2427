package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/store"
)

// DefaultKeyPrefix namespaces every key written by the mastery store.
const DefaultKeyPrefix = "gapfill:mastery"

// recordScript updates the streak and mastered set atomically.
// KEYS: streak hash, mastered set. ARGV: answer, correct (1|0), streak, ttl ms.
var recordScript = goredis.NewScript(`
local mastered = redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1
if ARGV[2] == '1' and not mastered then
  local n = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
  if n >= tonumber(ARGV[3]) then
    redis.call('HDEL', KEYS[1], ARGV[1])
    redis.call('SADD', KEYS[2], ARGV[1])
    mastered = true
  end
else
  redis.call('HDEL', KEYS[1], ARGV[1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
if mastered then
  return 1
end
return 0
`)

// MasteryStore implements store.MasteryStore on Redis.
type MasteryStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ store.MasteryStore = (*MasteryStore)(nil)

// NewClient connects to the Redis server named in cfg and verifies it answers.
func NewClient(ctx context.Context, cfg config.MasteryConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewMasteryStore creates a store over client. ttl must be positive.
func NewMasteryStore(client goredis.UniversalClient, ttl time.Duration, log *slog.Logger) *MasteryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MasteryStore{
		client: client,
		ttl:    ttl,
		prefix: DefaultKeyPrefix,
		logger: log.With(slog.String("component", "redis_mastery_store")),
	}
}

// RecordResult implements store.MasteryStore.
func (s *MasteryStore) RecordResult(
	ctx context.Context,
	sessionID, answerKey string,
	correct bool,
	streak int,
) (bool, error) {
	flag := "0"
	if correct {
		flag = "1"
	}
	n, err := recordScript.Run(ctx, s.client,
		[]string{s.streakKey(sessionID), s.masteredKey(sessionID)},
		answerKey, flag, streak, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, s.mapError(ctx, "record_result", err)
	}

	mastered := n == 1
	if mastered {
		logger.FromContextOrDefault(ctx, s.logger).DebugContext(ctx, "answer mastered",
			slog.String("session_id", sessionID),
			slog.String("answer", answerKey))
	}
	return mastered, nil
}

// Mastered implements store.MasteryStore.
func (s *MasteryStore) Mastered(ctx context.Context, sessionID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.masteredKey(sessionID)).Result()
	if err != nil {
		return nil, s.mapError(ctx, "mastered", err)
	}
	return members, nil
}

func (s *MasteryStore) streakKey(sessionID string) string {
	return s.prefix + ":" + sessionID + ":streaks"
}

func (s *MasteryStore) masteredKey(sessionID string) string {
	return s.prefix + ":" + sessionID + ":mastered"
}

// mapError passes context errors through and reports everything else as
// the store being unavailable.
func (s *MasteryStore) mapError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "redis operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return store.NewStoreError("mastery", op, "redis command failed",
		fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err))
}
