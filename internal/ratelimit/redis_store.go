package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

// admitScript performs the prune-count-record sequence as one atomic step on
// the redis side, which keeps per-key decisions linearizable across gateway
// instances. KEYS[1] is the window key; ARGV holds the prune cutoff score,
// the ceiling, the new entry's score, the new entry's member, and the key TTL
// in milliseconds.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisStore is a Store backed by a redis sorted set per client key, for
// deployments where the gatekeeper runs on more than one process/node and
// in-memory window state would not survive the process boundary.
type RedisStore struct {
	client  redis.UniversalClient
	window  time.Duration
	ceiling int
	prefix  string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the redis key prefix (default "gatekeeper:ratelimit").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a RedisStore with the given window and ceiling.
func NewRedisStore(
	client redis.UniversalClient,
	window time.Duration,
	ceiling int,
	opts ...RedisStoreOption,
) *RedisStore {
	s := &RedisStore{
		client:  client,
		window:  window,
		ceiling: ceiling,
		prefix:  "gatekeeper:ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implements Store.
func (s *RedisStore) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	score := now.UnixNano()
	// Member must be unique per request; two requests can share a nanosecond.
	member := strconv.FormatInt(score, 10) + "-" + uuid.NewString()

	result, err := admitScript.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		strconv.FormatInt(now.Add(-s.window).UnixNano(), 10),
		strconv.Itoa(s.ceiling),
		strconv.FormatInt(score, 10),
		member,
		strconv.FormatInt(s.window.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, apperrors.Wrap(err, "redis admit failed")
	}

	return result == 1, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (int, error) {
	redisKey := s.redisKey(key)
	cutoff := strconv.FormatInt(now.Add(-s.window).UnixNano(), 10)

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, apperrors.Wrap(err, "redis get failed")
	}

	return int(card.Val()), nil
}

// Prune implements Store. Expired keys are also reaped by the PEXPIRE set on
// every admit, so an explicit prune pass is rarely needed with this backend.
func (s *RedisStore) Prune(ctx context.Context, key string, before time.Time) error {
	err := s.client.ZRemRangeByScore(
		ctx,
		s.redisKey(key),
		"-inf",
		strconv.FormatInt(before.UnixNano(), 10),
	).Err()
	if err != nil {
		return apperrors.Wrap(err, "redis prune failed")
	}
	return nil
}

// Record implements Store.
func (s *RedisStore) Record(ctx context.Context, key string, now time.Time) error {
	score := now.UnixNano()
	member := strconv.FormatInt(score, 10) + "-" + uuid.NewString()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.redisKey(key), redis.Z{Score: float64(score), Member: member})
	pipe.PExpire(ctx, s.redisKey(key), s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, "redis record failed")
	}
	return nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}
