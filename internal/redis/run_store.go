package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// AcquireRun marks a recurrence idempotency key as in flight. It reports false
// when another caller already holds it.
func (r *Redis) AcquireRun(ctx context.Context, key, owner string) (bool, error) {
	return r.Client.SetNX(ctx, recurrenceLockKey+key, owner, r.RunLockTTL).Result()
}

func (r *Redis) ReleaseRun(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.Client, []string{recurrenceLockKey + key}, owner).Err()
}

// LoadRun returns the stored result document for key.
func (r *Redis) LoadRun(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.Client.Get(ctx, recurrenceRunKey+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) SaveRun(ctx context.Context, key string, data []byte) error {
	return r.Client.Set(ctx, recurrenceRunKey+key, data, r.RunTTL).Err()
}
