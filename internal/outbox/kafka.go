package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Envelope is the message body published for an event.
type Envelope struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	DocumentID   string    `json:"documentId"`
	EventKey     string    `json:"eventKey"`
	EventVersion int       `json:"eventVersion"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// KafkaForwarder publishes events keyed by document id so one document stays on one partition.
type KafkaForwarder struct {
	writer MessageWriter
	clock  func() time.Time
}

func NewKafkaForwarder(w MessageWriter) *KafkaForwarder {
	return &KafkaForwarder{writer: w, clock: time.Now}
}

func (f *KafkaForwarder) Handle(ctx context.Context, evt *model.OutboxEvent) error {
	body, err := json.Marshal(Envelope{
		ID:           evt.ID,
		TenantID:     evt.TenantID,
		DocumentID:   evt.DocumentID,
		EventKey:     evt.EventKey,
		EventVersion: evt.EventVersion,
		CreatedBy:    evt.CreatedBy,
		CreatedAt:    evt.CreatedAt.UTC(),
	})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.DocumentID),
		Value: body,
		Time:  f.clock(),
		Headers: []kafka.Header{
			{Key: "event-key", Value: []byte(evt.EventKey)},
			{Key: "tenant-id", Value: []byte(evt.TenantID)},
		},
	}
	return f.writer.WriteMessages(ctx, msg)
}
