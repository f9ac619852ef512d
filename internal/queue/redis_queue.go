package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue keeps job bodies in string keys, ready ids in a wait list,
// dequeued ids in an active list guarded by a lease key, and retry-delayed ids
// in a sorted set scored by due time in milliseconds.
type RedisQueue struct {
	rdb     *redis.Client
	prefix  string
	opts    Options
	timeout time.Duration
	clock   func() time.Time
}

func NewRedisQueue(rdb *redis.Client, name string, opts Options) *RedisQueue {
	return &RedisQueue{
		rdb:     rdb,
		prefix:  "docq:" + name,
		opts:    opts,
		timeout: time.Second,
		clock:   time.Now,
	}
}

// WithClock replaces the time source.
func (q *RedisQueue) WithClock(clock func() time.Time) *RedisQueue {
	q.clock = clock
	return q
}

func (q *RedisQueue) jobKey(id string) string   { return q.prefix + ":job:" + id }
func (q *RedisQueue) leaseKey(id string) string { return q.prefix + ":lease:" + id }
func (q *RedisQueue) waitKey() string           { return q.prefix + ":wait" }
func (q *RedisQueue) activeKey() string         { return q.prefix + ":active" }
func (q *RedisQueue) delayedKey() string        { return q.prefix + ":delayed" }
func (q *RedisQueue) failedKey() string         { return q.prefix + ":failed" }

// addScript stores the body and pushes the id in one step, so a job key never
// exists without its id being queued.
const addScript = `if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  redis.call('LPUSH', KEYS[2], ARGV[2])
  return 1
end
return 0`

func (q *RedisQueue) Add(ctx context.Context, name, id string, data Payload) (bool, error) {
	body, err := json.Marshal(newJob(name, id, data, q.opts))
	if err != nil {
		return false, err
	}
	n, err := q.rdb.Eval(ctx, addScript, []string{q.jobKey(id), q.waitKey()}, string(body), id).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Next moves one id from wait to active and leases it. An id left active
// without a lease, for example after a crash, is picked up by Recover.
func (q *RedisQueue) Next(ctx context.Context) (*Job, error) {
	if err := q.promote(ctx); err != nil {
		return nil, err
	}
	id, err := q.rdb.BRPopLPush(ctx, q.waitKey(), q.activeKey(), q.timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := q.rdb.Set(ctx, q.leaseKey(id), "1", q.opts.lease()).Err(); err != nil {
		return nil, err
	}
	raw, err := q.rdb.Get(ctx, q.jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, q.release(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// release drops id from the active list together with its lease.
func (q *RedisQueue) release(ctx context.Context, id string) error {
	if err := q.rdb.LRem(ctx, q.activeKey(), 1, id).Err(); err != nil {
		return err
	}
	return q.rdb.Del(ctx, q.leaseKey(id)).Err()
}

// Recover requeues active ids whose lease is gone. A job popped but not yet
// leased can be requeued too and run twice; delivery is at least once.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	ids, err := q.rdb.LRange(ctx, q.activeKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		leased, err := q.rdb.Exists(ctx, q.leaseKey(id)).Result()
		if err != nil {
			return moved, err
		}
		if leased > 0 {
			continue
		}
		n, err := q.rdb.LRem(ctx, q.activeKey(), 1, id).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			// settled or recovered elsewhere
			continue
		}
		if err := q.rdb.LPush(ctx, q.waitKey(), id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// promote moves delayed jobs that are due back onto the wait list.
func (q *RedisQueue) promote(ctx context.Context) error {
	now := strconv.FormatInt(q.clock().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			// another worker promoted it
			continue
		}
		if err := q.rdb.LPush(ctx, q.waitKey(), id).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	if err := q.rdb.Del(ctx, q.jobKey(job.ID)).Err(); err != nil {
		return err
	}
	return q.release(ctx, job.ID)
}

// Fail records the attempt, then schedules the retry or retains the job before
// releasing it, so a crash in between leaves it recoverable.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, cause error) (bool, error) {
	job.AttemptsMade++
	job.FailedReason = cause.Error()
	body, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if err := q.rdb.Set(ctx, q.jobKey(job.ID), string(body), 0).Err(); err != nil {
		return false, err
	}
	retry := job.AttemptsMade < job.MaxAttempts
	if retry {
		due := q.clock().Add(RetryDelay(job.Backoff, job.AttemptsMade)).UnixMilli()
		if err := q.rdb.ZAdd(ctx, q.delayedKey(), &redis.Z{Score: float64(due), Member: job.ID}).Err(); err != nil {
			return false, err
		}
	} else if err := q.rdb.SAdd(ctx, q.failedKey(), job.ID).Err(); err != nil {
		return false, err
	}
	return retry, q.release(ctx, job.ID)
}
