package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the expiry only while the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ErrLockLost is returned by a release whose lock expired before it.
var ErrLockLost = errors.New("lock expired before release")

// Redis is a Locker shared by every instance using the same Redis server.
// Locks expire after ttl so a crashed run cannot block others forever. A
// held lock is refreshed every third of ttl until it is released.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// defaultTTL applies when NewRedis gets a non-positive ttl.
const defaultTTL = 10 * time.Minute

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl, poll: 200 * time.Millisecond, logger: logger}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			r.logger.Debug("Lock acquired", zap.String("key", key), zap.Duration("ttl", r.ttl))
			stop := make(chan struct{})
			done := make(chan struct{})
			go r.keepAlive(key, token, stop, done)
			return r.releaser(key, token, stop, done), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// keepAlive pushes the expiry of key forward until stop is closed or the
// token is gone.
func (r *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
		n, err := refreshScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("Failed to refresh lock", zap.String("key", key), zap.Error(err))
		case n == 0:
			r.logger.Warn("Lock lost while held", zap.String("key", key))
			return
		}
	}
}

func (r *Redis) releaser(key, token string, stop chan struct{}, done <-chan struct{}) ReleaseFunc {
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done

		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			r.logger.Warn("Lock expired before release", zap.String("key", key))
			return ErrLockLost
		}
		return nil
	}
}
