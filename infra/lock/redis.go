// Package lock holds distributed Locker implementations.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	corelock "github.com/kilianp07/powerhub/core/lock"
	"github.com/kilianp07/powerhub/core/logger"
)

// Config configures the Redis locker.
type Config struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	Prefix   string        `json:"prefix"`
	TTL      time.Duration `json:"ttl"`
	Retry    time.Duration `json:"retry"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = "powerhub:lock:"
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Retry <= 0 {
		c.Retry = 25 * time.Millisecond
	}
}

// releaseScript deletes the key only when it still carries our token, so an
// expired holder cannot release a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements core/lock.Locker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	cfg    Config
	log    logger.Logger
}

var _ corelock.Locker = (*RedisLocker)(nil)

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, cfg Config, log logger.Logger) (*RedisLocker, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisLockerFromClient(client, cfg, log), nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client *redis.Client, cfg Config, log logger.Logger) *RedisLocker {
	cfg.SetDefaults()
	return &RedisLocker{client: client, cfg: cfg, log: logger.OrNop(log)}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	k := l.cfg.Prefix + key
	ticker := time.NewTicker(l.cfg.Retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return func() {
		// Release must run even when the caller's ctx is already done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil {
			l.log.Errorf("release lock %s: %v", key, err)
		}
	}, nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error { return l.client.Close() }
