// Package redis holds the engine's short-lived shared state: per-task sign-up
// locks, cached signup counts and recurrence run records.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-community/internal/config"
	"ms-community/internal/logger"
)

const (
	taskLockPrefix     = "community:task_lock:"
	capacityPrefix     = "community:capacity:"
	capacityGenPrefix  = "community:capacity_gen:"
	recurrenceRunKey   = "community:recurrence_run:"
	recurrenceLockKey  = "community:recurrence_lock:"
	defaultLockTTL     = 5 * time.Second
	defaultCacheTTL    = 30 * time.Second
	defaultRunTTL      = 24 * time.Hour
	defaultRunLockTTL  = 10 * time.Minute
	lockRetryInterval  = 25 * time.Millisecond
	defaultLockRetries = 40
)

type Redis struct {
	Client     *redis.Client
	Logger     *logger.Logger
	LockTTL    time.Duration
	CacheTTL   time.Duration
	RunTTL     time.Duration
	RunLockTTL time.Duration
	// LockRetries bounds how many times WithTaskLock retries a held lock.
	LockRetries int
}

func NewRedis(client *redis.Client, log *logger.Logger, cfg config.RedisConfig) *Redis {
	r := &Redis{
		Client:      client,
		Logger:      log,
		LockTTL:     cfg.TaskLockTTL,
		CacheTTL:    cfg.CapacityCacheTTL,
		RunTTL:      cfg.RecurrenceRunTTL,
		RunLockTTL:  defaultRunLockTTL,
		LockRetries: defaultLockRetries,
	}
	if r.LockTTL <= 0 {
		r.LockTTL = defaultLockTTL
	}
	if r.CacheTTL <= 0 {
		r.CacheTTL = defaultCacheTTL
	}
	if r.RunTTL <= 0 {
		r.RunTTL = defaultRunTTL
	}
	return r
}

// Connect dials addr and pings it, the way main verifies every backing service
// before serving.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

func (r *Redis) debug(msg string) {
	if r.Logger != nil {
		r.Logger.Debug("REDIS", msg)
	}
}
