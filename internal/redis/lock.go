package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-community/internal/apperrors"
)

// releaseScript deletes a lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func taskLockKey(taskID int64) string {
	return taskLockPrefix + strconv.FormatInt(taskID, 10)
}

// LockTask takes the sign-up lock of a task for owner.
func (r *Redis) LockTask(ctx context.Context, taskID int64, owner string) (bool, error) {
	return r.Client.SetNX(ctx, taskLockKey(taskID), owner, r.LockTTL).Result()
}

// UnlockTask releases the lock if owner still holds it. An expired or foreign
// lock is left alone.
func (r *Redis) UnlockTask(ctx context.Context, taskID int64, owner string) error {
	return releaseScript.Run(ctx, r.Client, []string{taskLockKey(taskID)}, owner).Err()
}

// WithTaskLock runs fn while holding the task's sign-up lock. It retries a held
// lock until LockRetries is exhausted or ctx ends, then fails with ErrConflict.
func (r *Redis) WithTaskLock(ctx context.Context, taskID int64, fn func(ctx context.Context) error) error {
	owner := uuid.New().String()

	for attempt := 0; ; attempt++ {
		ok, err := r.LockTask(ctx, taskID, owner)
		if err != nil {
			return apperrors.Store("lock task", err)
		}
		if ok {
			break
		}
		if attempt >= r.LockRetries {
			return apperrors.Conflict("task %d is busy, try again", taskID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
	r.debug(fmt.Sprintf("locked task %d", taskID))

	defer func() {
		// The request context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.UnlockTask(releaseCtx, taskID, owner); err != nil && r.Logger != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("failed to release lock on task %d: %v", taskID, err))
		}
	}()

	return fn(ctx)
}
