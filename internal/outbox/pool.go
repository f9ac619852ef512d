package outbox

import (
	"context"
	"time"

	"github.com/richardliu001/docflow-service/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool drains the queue with a fixed number of workers.
type Pool struct {
	q      queue.Queue
	worker *Worker
	size   int
	log    *zap.SugaredLogger

	sweepEvery time.Duration
}

// DefaultSweepInterval is how often active jobs are checked for lost leases.
const DefaultSweepInterval = 30 * time.Second

func NewPool(q queue.Queue, worker *Worker, size int, logger *zap.SugaredLogger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{q: q, worker: worker, size: size, log: logger, sweepEvery: DefaultSweepInterval}
}

// WithSweep sets the recovery sweep interval.
func (p *Pool) WithSweep(every time.Duration) *Pool {
	if every > 0 {
		p.sweepEvery = every
	}
	return p
}

// Run requeues abandoned jobs, then blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	p.Recover(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.sweep(ctx)
		return nil
	})
	for i := 0; i < p.size; i++ {
		n := i
		g.Go(func() error {
			p.loop(ctx, n)
			return nil
		})
	}
	p.log.Infow("outbox workers started", "size", p.size)
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, n int) {
	for ctx.Err() == nil {
		job, err := p.q.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Errorw("dequeue", "worker", n, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		p.RunJob(ctx, job)
	}
}

// RunJob processes one job and settles it on the queue. Settling uses a
// detached context so a job interrupted by shutdown is still failed or
// completed instead of being stranded in the active set.
func (p *Pool) RunJob(ctx context.Context, job *queue.Job) {
	perr := p.worker.Process(ctx, job)
	sctx, cancel := settleContext(ctx)
	defer cancel()
	if perr == nil {
		if err := p.q.Complete(sctx, job); err != nil {
			p.log.Errorw("complete job", "job_id", job.ID, "error", err)
		}
		return
	}
	retry, err := p.q.Fail(sctx, job, perr)
	if err != nil {
		p.log.Errorw("fail job", "job_id", job.ID, "error", err)
		return
	}
	if !retry {
		p.log.Warnw("job attempts exhausted", "job_id", job.ID, "attempts", job.AttemptsMade, "reason", perr)
	}
}

// Recover requeues jobs abandoned by a crashed worker.
func (p *Pool) Recover(ctx context.Context) int {
	n, err := p.q.Recover(ctx)
	if err != nil {
		p.log.Errorw("recover active jobs", "error", err)
	}
	if n > 0 {
		p.log.Infow("requeued abandoned jobs", "count", n)
	}
	return n
}

func (p *Pool) sweep(ctx context.Context) {
	t := time.NewTicker(p.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Recover(ctx)
		}
	}
}
