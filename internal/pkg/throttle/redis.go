package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "dvinyl:login-attempts:"
	fieldCount         = "count"
	fieldLastTry       = "last_try"
	fieldBlockedUntil  = "blocked_until"
)

// Redis shares attempt records between instances. Each key is a hash that
// expires after the idle TTL.
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	now     func() time.Time
	idleTTL time.Duration
}

type RedisOption func(*Redis)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		if now != nil {
			r.now = now
		}
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func NewRedis(rdb redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:     rdb,
		prefix:  defaultRedisPrefix,
		now:     time.Now,
		idleTTL: defaultIdleTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(key string) string { return r.prefix + key }

func (r *Redis) load(ctx context.Context, key string) (record, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return record{}, false, fmt.Errorf("load attempts: %w", err)
	}
	if len(vals) == 0 {
		return record{}, false, nil
	}
	var rec record
	rec.count, _ = strconv.Atoi(vals[fieldCount])
	if ms, err := strconv.ParseInt(vals[fieldLastTry], 10, 64); err == nil {
		rec.lastTry = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(vals[fieldBlockedUntil], 10, 64); err == nil && ms > 0 {
		rec.blockedUntil = time.UnixMilli(ms)
	}
	return rec, true, nil
}

func (r *Redis) Check(ctx context.Context, key string) (Status, error) {
	rec, ok, err := r.load(ctx, key)
	if err != nil || !ok {
		return Status{}, err
	}
	return rec.status(r.now()), nil
}

func (r *Redis) RecordFailure(ctx context.Context, key string) (Status, error) {
	rec, _, err := r.load(ctx, key)
	if err != nil {
		return Status{}, err
	}
	now := r.now()
	rec = rec.fail(now)

	fields := map[string]interface{}{
		fieldCount:   rec.count,
		fieldLastTry: now.UnixMilli(),
	}
	if !rec.blockedUntil.IsZero() {
		fields[fieldBlockedUntil] = rec.blockedUntil.UnixMilli()
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.key(key), fields)
	pipe.Expire(ctx, r.key(key), r.idleTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return Status{}, fmt.Errorf("record attempt: %w", err)
	}
	return rec.status(now), nil
}

func (r *Redis) RecordSuccess(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	return nil
}
