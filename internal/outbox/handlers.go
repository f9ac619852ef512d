package outbox

import (
	"context"

	"github.com/richardliu001/docflow-service/internal/model"
	"go.uber.org/zap"
)

// Handler delivers one event. Delivery is at least once and unordered across keys.
type Handler interface {
	Handle(ctx context.Context, evt *model.OutboxEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt *model.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, evt *model.OutboxEvent) error { return f(ctx, evt) }

// HandlerRegistry maps event keys to handlers. Register during start-up only.
type HandlerRegistry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewHandlerRegistry returns a registry whose unmatched keys go to a log-only stub.
func NewHandlerRegistry(logger *zap.SugaredLogger) *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
		fallback: stubHandler{log: logger},
	}
}

func (r *HandlerRegistry) Register(eventKey string, h Handler) *HandlerRegistry {
	r.handlers[eventKey] = h
	return r
}

// Get never returns nil.
func (r *HandlerRegistry) Get(eventKey string) Handler {
	if h, ok := r.handlers[eventKey]; ok {
		return h
	}
	return r.fallback
}

type stubHandler struct {
	log *zap.SugaredLogger
}

func (s stubHandler) Handle(_ context.Context, evt *model.OutboxEvent) error {
	s.log.Infow("no handler registered, event acknowledged",
		"event_id", evt.ID, "event_key", evt.EventKey, "document_id", evt.DocumentID)
	return nil
}
