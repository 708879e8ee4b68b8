package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reputation:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost is returned by release when the lease expired before it was
// released.
var ErrLockLost = errors.New("lock lease lost")

// Locker implements repository.Locker with SET NX leases in Redis.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a new Redis-backed locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// TryLock takes the lease for key if nobody holds it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis release lock: %w", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
	return release, true, nil
}
