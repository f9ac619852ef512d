package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestKafkaForwarder_Handle(t *testing.T) {
	w := &captureWriter{}
	f := NewKafkaForwarder(w)
	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	err := f.Handle(context.Background(), &model.OutboxEvent{
		ID: "e1", TenantID: "t1", DocumentID: "d1", EventKey: EventDocumentPosted,
		EventVersion: 2, CreatedBy: "u1", CreatedAt: created,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "d1", string(msg.Key))
	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "e1", env.ID)
	assert.Equal(t, 2, env.EventVersion)
	assert.True(t, env.CreatedAt.Equal(created))
	assert.Equal(t, "event-key", msg.Headers[0].Key)
	assert.Equal(t, EventDocumentPosted, string(msg.Headers[0].Value))
}
