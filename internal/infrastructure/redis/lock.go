package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nursinghomes/internal/shared/lock"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker implements lock.Locker with SET NX and a token-checked release,
// so one refresh runs across every API instance.
type Locker struct {
	client    *Client
	keyPrefix string
}

// NewLocker creates a new Locker
func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Acquire attempts to take key for ttl
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, lock.ErrNotAcquired
	}

	l.client.logger.Debug("acquired lock", zap.String("key", lockKey))

	return &heldLock{client: l.client, key: lockKey, token: token}, nil
}

type heldLock struct {
	client *Client
	key    string
	token  string
}

// Release deletes the key if this holder still owns it
func (h *heldLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, h.client.rdb, []string{h.key}, h.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", h.key, err)
	}
	if result == 0 {
		return lock.ErrNotHeld
	}

	h.client.logger.Debug("released lock", zap.String("key", h.key))
	return nil
}
