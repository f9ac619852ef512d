// Package queue is the dispatch job queue between the outbox poller and its workers.
package queue

import (
	"context"
	"fmt"
	"time"
)

const (
	// Name of the document engine queue.
	DocEngine = "doc-engine"
	// JobProcessOutbox dispatches one outbox event.
	JobProcessOutbox = "process-outbox"
)

// Payload is the dispatch message body.
type Payload struct {
	OutboxEventID string `json:"outboxEventId"`
	TenantID      string `json:"tenantId"`
}

// Options is the runner's own retry policy, separate from the outbox backoff.
// Lease is how long a dequeued job may stay unsettled before Recover hands it
// to another worker.
type Options struct {
	Attempts int
	Backoff  time.Duration
	Lease    time.Duration
}

// DefaultLease applies when Options.Lease is zero.
const DefaultLease = 5 * time.Minute

// DefaultOptions: 5 attempts, exponential backoff from 5s.
var DefaultOptions = Options{Attempts: 5, Backoff: 5 * time.Second, Lease: DefaultLease}

func (o Options) lease() time.Duration {
	if o.Lease <= 0 {
		return DefaultLease
	}
	return o.Lease
}

type Job struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Data         Payload       `json:"data"`
	AttemptsMade int           `json:"attemptsMade"`
	MaxAttempts  int           `json:"maxAttempts"`
	Backoff      time.Duration `json:"backoff"`
	FailedReason string        `json:"failedReason,omitempty"`
}

// Queue deduplicates on job id: adding an id that is waiting, active, delayed
// or retained as failed is a no-op. Completed jobs are removed. A dequeued job
// stays active under a lease until it is completed or failed.
type Queue interface {
	// Add reports false when the id is already known.
	Add(ctx context.Context, name, id string, data Payload) (bool, error)
	// Next waits briefly for a job; nil, nil means nothing arrived.
	Next(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, job *Job) error
	// Fail schedules a retry and reports true, or retains the job as failed.
	Fail(ctx context.Context, job *Job, cause error) (bool, error)
	// Recover returns active jobs whose lease expired to the wait list and
	// reports how many were moved.
	Recover(ctx context.Context) (int, error)
}

// JobID is the deterministic dispatch id for an event version.
func JobID(eventID string, version int) string {
	return fmt.Sprintf("outbox-%s-%d", eventID, version)
}

// RetryDelay is backoff * 2^(attemptsMade-1).
func RetryDelay(backoff time.Duration, attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	if attemptsMade > 16 {
		attemptsMade = 16
	}
	return backoff * time.Duration(1<<uint(attemptsMade-1))
}

func newJob(name, id string, data Payload, opts Options) *Job {
	return &Job{ID: id, Name: name, Data: data, MaxAttempts: opts.Attempts, Backoff: opts.Backoff}
}
