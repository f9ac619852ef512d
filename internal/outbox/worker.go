package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/queue"
	"go.uber.org/zap"
)

// Worker executes dispatch jobs.
type Worker struct {
	events   *Service
	handlers *HandlerRegistry
	log      *zap.SugaredLogger
}

func NewWorker(events *Service, handlers *HandlerRegistry, logger *zap.SugaredLogger) *Worker {
	return &Worker{events: events, handlers: handlers, log: logger}
}

// Process runs one job. Any failure after the event is loaded is recorded on
// the event and returned so the queue applies its own retry policy too.
func (w *Worker) Process(ctx context.Context, job *queue.Job) error {
	if job.Name != queue.JobProcessOutbox {
		w.log.Warnw("ignoring unknown job", "job_id", job.ID, "job_name", job.Name)
		return nil
	}
	id := job.Data.OutboxEventID

	evt, err := w.events.Get(ctx, id)
	if errors.Is(err, apperr.ErrOutboxNotFound) {
		w.log.Warnw("outbox event missing", "event_id", id, "tenant_id", job.Data.TenantID)
		return nil
	}
	if err != nil {
		return err
	}
	if evt.Status == model.OutboxDone || evt.Status == model.OutboxDead {
		w.log.Debugw("outbox event already settled", "event_id", id, "status", evt.Status)
		return nil
	}

	if err := w.events.MarkProcessing(ctx, id); err != nil {
		w.fail(ctx, evt, err)
		return err
	}
	evt.Status = model.OutboxProcessing
	evt.Attempts++

	if herr := w.handlers.Get(evt.EventKey).Handle(ctx, evt); herr != nil {
		w.fail(ctx, evt, herr)
		return herr
	}

	sctx, cancel := settleContext(ctx)
	defer cancel()
	if err := w.events.MarkDone(sctx, id); err != nil {
		w.fail(ctx, evt, err)
		return err
	}
	metrics.RecordProcessed(evt.EventKey, "done")
	return nil
}

// fail records cause on the event. It runs on a detached context so a
// shutdown mid-delivery still leaves the event retryable rather than PROCESSING.
func (w *Worker) fail(ctx context.Context, evt *model.OutboxEvent, cause error) {
	sctx, cancel := settleContext(ctx)
	defer cancel()
	if err := w.events.MarkFailed(sctx, evt.ID, cause.Error()); err != nil {
		w.log.Errorw("mark failed", "event_id", evt.ID, "error", err)
	}
	metrics.RecordProcessed(evt.EventKey, "failed")
	w.log.Warnw("outbox delivery failed", "event_id", evt.ID, "event_key", evt.EventKey, "attempts", evt.Attempts, "error", cause)
}

// settleTimeout bounds bookkeeping writes made after ctx may be cancelled.
const settleTimeout = 10 * time.Second

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}
