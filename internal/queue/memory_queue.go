package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue has RedisQueue semantics inside one process.
type MemoryQueue struct {
	mu      sync.Mutex
	opts    Options
	clock   func() time.Time
	timeout time.Duration
	jobs    map[string]*Job
	wait    []string
	active  map[string]time.Time
	delayed map[string]time.Time
	failed  map[string]struct{}
	notify  chan struct{}
}

func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		opts:    opts,
		clock:   time.Now,
		timeout: time.Second,
		jobs:    make(map[string]*Job),
		active:  make(map[string]time.Time),
		delayed: make(map[string]time.Time),
		failed:  make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// WithClock replaces the time source.
func (q *MemoryQueue) WithClock(clock func() time.Time) *MemoryQueue {
	q.clock = clock
	return q
}

func (q *MemoryQueue) Add(_ context.Context, name, id string, data Payload) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[id]; ok {
		return false, nil
	}
	q.jobs[id] = newJob(name, id, data, q.opts)
	q.wait = append(q.wait, id)
	q.signal()
	return true, nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Next(ctx context.Context) (*Job, error) {
	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	for {
		if job := q.pop(); job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	for id, due := range q.delayed {
		if !due.After(now) {
			delete(q.delayed, id)
			q.wait = append(q.wait, id)
		}
	}
	if len(q.wait) == 0 {
		return nil
	}
	id := q.wait[0]
	q.wait = q.wait[1:]
	job, ok := q.jobs[id]
	if !ok {
		return nil
	}
	q.active[id] = now.Add(q.opts.lease())
	cp := *job
	return &cp
}

func (q *MemoryQueue) Complete(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, job.ID)
	delete(q.active, job.ID)
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, job *Job, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.AttemptsMade++
	job.FailedReason = cause.Error()
	cp := *job
	q.jobs[job.ID] = &cp
	delete(q.active, job.ID)
	if job.AttemptsMade < job.MaxAttempts {
		q.delayed[job.ID] = q.clock().Add(RetryDelay(job.Backoff, job.AttemptsMade))
		return true, nil
	}
	q.failed[job.ID] = struct{}{}
	return false, nil
}

// Recover requeues active jobs whose lease has expired.
func (q *MemoryQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	moved := 0
	for id, until := range q.active {
		if until.After(now) {
			continue
		}
		delete(q.active, id)
		q.wait = append(q.wait, id)
		moved++
	}
	if moved > 0 {
		q.signal()
	}
	return moved, nil
}

// Active is the number of dequeued jobs not yet settled.
func (q *MemoryQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Failed returns ids retained after exhausting their attempts.
func (q *MemoryQueue) Failed() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.failed))
	for id := range q.failed {
		out = append(out, id)
	}
	return out
}

// Len is the number of jobs known to the queue.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
