package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func jobFor(evt *model.OutboxEvent) *queue.Job {
	return &queue.Job{
		ID:   queue.JobID(evt.ID, evt.EventVersion),
		Name: queue.JobProcessOutbox,
		Data: queue.Payload{OutboxEventID: evt.ID, TenantID: evt.TenantID},
	}
}

func TestWorker_Success(t *testing.T) {
	f := newFixture(t, 0)
	evt := f.create(t, "d1", EventDocumentPosted)

	var seen []string
	reg := NewHandlerRegistry(logger.NewNop()).Register(EventDocumentPosted, HandlerFunc(func(_ context.Context, e *model.OutboxEvent) error {
		seen = append(seen, e.ID)
		return nil
	}))
	w := NewWorker(f.svc, reg, logger.NewNop())

	require.NoError(t, w.Process(context.Background(), jobFor(evt)))
	assert.Equal(t, []string{evt.ID}, seen)

	got := f.reload(t, evt.ID)
	assert.Equal(t, model.OutboxDone, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestWorker_FailureRecordedAndReturned(t *testing.T) {
	f := newFixture(t, 0)
	evt := f.create(t, "d1", EventDocumentPosted)
	boom := errors.New("downstream unavailable")

	reg := NewHandlerRegistry(logger.NewNop()).Register(EventDocumentPosted, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		return boom
	}))
	w := NewWorker(f.svc, reg, logger.NewNop())

	err := w.Process(context.Background(), jobFor(evt))
	assert.ErrorIs(t, err, boom)

	got := f.reload(t, evt.ID)
	assert.Equal(t, model.OutboxFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "downstream unavailable", *got.LastError)
	require.NotNil(t, got.NextAttemptAt)
	assert.True(t, got.NextAttemptAt.Equal(f.now.Add(Backoff(1))))
}

func TestWorker_UnregisteredKeyUsesStub(t *testing.T) {
	f := newFixture(t, 0)
	evt := f.create(t, "d1", "some.future.event")
	w := NewWorker(f.svc, NewHandlerRegistry(logger.NewNop()), logger.NewNop())

	require.NoError(t, w.Process(context.Background(), jobFor(evt)))
	assert.Equal(t, model.OutboxDone, f.reload(t, evt.ID).Status)
}

func TestWorker_MissingEventIsNotAnError(t *testing.T) {
	f := newFixture(t, 0)
	w := NewWorker(f.svc, NewHandlerRegistry(logger.NewNop()), logger.NewNop())

	err := w.Process(context.Background(), &queue.Job{
		ID: "outbox-gone-1", Name: queue.JobProcessOutbox, Data: queue.Payload{OutboxEventID: "gone"},
	})
	assert.NoError(t, err)
}

func TestWorker_SkipsSettledEvents(t *testing.T) {
	f := newFixture(t, 0)
	evt := f.create(t, "d1", EventDocumentPosted)
	require.NoError(t, f.svc.MarkDone(context.Background(), evt.ID))

	calls := 0
	reg := NewHandlerRegistry(logger.NewNop()).Register(EventDocumentPosted, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		calls++
		return nil
	}))
	w := NewWorker(f.svc, reg, logger.NewNop())

	require.NoError(t, w.Process(context.Background(), jobFor(evt)))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, f.reload(t, evt.ID).Attempts)
}

func TestWorker_IgnoresUnknownJobName(t *testing.T) {
	f := newFixture(t, 0)
	w := NewWorker(f.svc, NewHandlerRegistry(logger.NewNop()), logger.NewNop())
	assert.NoError(t, w.Process(context.Background(), &queue.Job{ID: "x", Name: "cleanup"}))
}

func TestWorker_ProcessingFailureRecorded(t *testing.T) {
	f := newFixture(t, 0)
	evt := f.create(t, "d1", EventDocumentPosted)
	lockTimeout := errors.New("lock timeout")
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("fail_processing", func(db *gorm.DB) {
		if fields, ok := db.Statement.Dest.(map[string]interface{}); ok && fields["status"] == model.OutboxProcessing {
			_ = db.AddError(lockTimeout)
		}
	}))

	calls := 0
	reg := NewHandlerRegistry(logger.NewNop()).Register(EventDocumentPosted, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		calls++
		return nil
	}))
	w := NewWorker(f.svc, reg, logger.NewNop())

	err := w.Process(context.Background(), jobFor(evt))
	assert.ErrorIs(t, err, lockTimeout)
	assert.Equal(t, 0, calls)

	got := f.reload(t, evt.ID)
	assert.Equal(t, model.OutboxFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "lock timeout", *got.LastError)
	require.NotNil(t, got.NextAttemptAt)
}

func TestWorker_CancelledMidDeliveryStillSettles(t *testing.T) {
	cases := []struct {
		name    string
		handErr error
		want    model.OutboxStatus
	}{
		{name: "handler error", handErr: errors.New("shutting down"), want: model.OutboxFailed},
		{name: "handler success", want: model.OutboxDone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 0)
			evt := f.create(t, "d1", EventDocumentPosted)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			reg := NewHandlerRegistry(logger.NewNop()).Register(EventDocumentPosted, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
				cancel()
				return tc.handErr
			}))
			w := NewWorker(f.svc, reg, logger.NewNop())

			err := w.Process(ctx, jobFor(evt))
			if tc.handErr != nil {
				assert.ErrorIs(t, err, tc.handErr)
			} else {
				assert.NoError(t, err)
			}

			got := f.reload(t, evt.ID)
			assert.Equal(t, tc.want, got.Status)
			assert.Equal(t, 1, got.Attempts)
		})
	}
}
