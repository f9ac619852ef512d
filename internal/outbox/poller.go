package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/queue"
	"go.uber.org/zap"
)

// Poller moves due events onto the job queue. At most one tick runs at a time;
// a tick that fires while another is running is dropped.
type Poller struct {
	events    *Service
	q         queue.Queue
	interval  time.Duration
	batchSize int
	running   atomic.Bool
	log       *zap.SugaredLogger
}

func NewPoller(events *Service, q queue.Queue, interval time.Duration, batchSize int, logger *zap.SugaredLogger) *Poller {
	return &Poller{events: events, q: q, interval: interval, batchSize: batchSize, log: logger}
}

// Run ticks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infow("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() { _, _ = p.Tick(ctx) }()
		}
	}
}

// Tick enqueues one batch and returns how many jobs were newly added.
// It returns immediately with zero when another tick is in flight.
func (p *Poller) Tick(ctx context.Context) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer p.running.Store(false)
	defer metrics.TrackPoll()(time.Now())

	evts, err := p.events.ListPending(ctx, p.batchSize)
	if err != nil {
		p.log.Errorw("poll outbox", "error", err)
		return 0, err
	}

	added := 0
	for _, evt := range evts {
		id := queue.JobID(evt.ID, evt.EventVersion)
		ok, err := p.q.Add(ctx, queue.JobProcessOutbox, id, queue.Payload{
			OutboxEventID: evt.ID,
			TenantID:      evt.TenantID,
		})
		if err != nil {
			p.log.Errorw("enqueue outbox event", "event_id", evt.ID, "job_id", id, "error", err)
			continue
		}
		if ok {
			added++
			metrics.RecordEnqueued()
		}
	}
	if added > 0 {
		p.log.Debugw("outbox events enqueued", "count", added)
	}
	return added, nil
}
