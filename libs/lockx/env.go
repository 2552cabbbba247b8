package lockx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrSharedLockRequired means the item store is shared between processes but no Redis
// client was configured, so in-process locks could not serialize writers.
var ErrSharedLockRequired = errors.New("shared item store requires a redis locker (set REDIS_ADDR)")

// Open returns the Redis locker when a client is available. Without one it falls back to an
// in-process locker, but only for stores that are private to this process.
func Open(rdb *redis.Client, sharedStore bool, cfg RedisConfig) (Locker, error) {
	if rdb != nil {
		return NewRedisLocker(rdb, cfg), nil
	}
	if sharedStore {
		return nil, ErrSharedLockRequired
	}
	return NewLocalLocker(), nil
}
