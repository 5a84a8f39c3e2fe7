package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/util"
)

const (
	keyPrefix    = "storefront:order-lock:"
	retryBackoff = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes work on one order across service instances with a
// SET NX PX lease.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewLocker(addr, password string, db int, ttl time.Duration, l *zap.Logger) (*Locker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Locker{client: client, ttl: ttl, logger: l}, nil
}

// Lock blocks until the lease for key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := util.GenerateUUID()
	redisKey := keyPrefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", domain.ErrLockUnavailable, err)
			}
			return nil, fmt.Errorf("failed to acquire redis lock for %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrLockUnavailable, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Error("Failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
