package lockx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock wait timed out")

// RedisLocker is a single-instance Redis lock (SET NX PX + compare-and-delete).
// The TTL bounds how long a crashed holder can block an owner.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
}

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
	// Wait caps how long Lock polls a held key before returning ErrLockTimeout.
	// A ctx that ends sooner still wins.
	Wait time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(rdb *redis.Client, cfg RedisConfig) *RedisLocker {
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 25 * time.Millisecond
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL, retry: cfg.Retry, wait: cfg.Wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + ":" + key
	token := uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Release with a fresh context: the request context may already be cancelled.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.rdb, []string{redisKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}
