package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a Redis lock.
type RedisOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// TTL bounds how long a crashed holder can block a sow.
	TTL time.Duration
	// Retry is the polling interval while the key is taken.
	Retry time.Duration
	// Wait caps the wait when ctx has no deadline.
	Wait time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Prefix == "" {
		o.Prefix = "breeding:lock:"
	}
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 50 * time.Millisecond
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Second
	}
	return o
}

// Redis is a lease lock built on SET NX PX with a random token.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
	logger *zap.Logger
}

func NewRedis(client *redis.Client, opts RedisOptions, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, opts: opts.withDefaults(), logger: logger}
}

// NewRedisClient opens a client for the lock.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

var _ breeding.Locker = (*Redis)(nil)

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Wait)
		defer cancel()
	}

	full := r.opts.Prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.opts.Retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.opts.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", full, err)
		}
		if ok {
			return r.unlocker(full, token), nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", breeding.ErrLockTimeout, key, ctx.Err())
		}
	}
}

func (r *Redis) unlocker(key, token string) func() {
	return func() {
		// The caller's ctx may already be cancelled; releasing must still happen.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			return
		}
		if n == 0 {
			r.logger.Warn("lock expired before release", zap.String("key", key))
		}
	}
}
