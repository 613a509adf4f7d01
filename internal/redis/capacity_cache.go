package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Generations outlive the counts they guard.
const minGenerationTTL = 24 * time.Hour

// setIfGenerationScript stores a count only while the task's generation still
// matches the one read before counting.
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if (gen or "0") ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

var invalidateScript = redis.NewScript(`
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`)

func capacityKey(taskID int64) string {
	return capacityPrefix + strconv.FormatInt(taskID, 10)
}

func capacityGenKey(taskID int64) string {
	return capacityGenPrefix + strconv.FormatInt(taskID, 10)
}

func (r *Redis) generationTTL() time.Duration {
	if r.CacheTTL > minGenerationTTL {
		return r.CacheTTL
	}
	return minGenerationTTL
}

// GetSignedUp returns the cached signup count of a task and whether it was
// present.
func (r *Redis) GetSignedUp(ctx context.Context, taskID int64) (int, bool, error) {
	n, err := r.Client.Get(ctx, capacityKey(taskID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// SignedUpGeneration returns how many times the task's count was invalidated.
func (r *Redis) SignedUpGeneration(ctx context.Context, taskID int64) (int64, error) {
	n, err := r.Client.Get(ctx, capacityGenKey(taskID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// SetSignedUp caches count unless the task was invalidated after generation
// was read. It reports whether the count was stored.
func (r *Redis) SetSignedUp(ctx context.Context, taskID int64, count int, generation int64) (bool, error) {
	stored, err := setIfGenerationScript.Run(ctx, r.Client,
		[]string{capacityKey(taskID), capacityGenKey(taskID)},
		count, strconv.FormatInt(generation, 10), r.CacheTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// DeleteSignedUp drops the cached count and bumps the generation so a reader
// that counted before the write cannot store its result.
func (r *Redis) DeleteSignedUp(ctx context.Context, taskID int64) error {
	return invalidateScript.Run(ctx, r.Client,
		[]string{capacityKey(taskID), capacityGenKey(taskID)},
		r.generationTTL().Milliseconds(),
	).Err()
}
