// Package posting executes the type-specific part of posting an approved document.
package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"gorm.io/gorm"
)

// EventWriter appends outbox events in the posting transaction.
type EventWriter interface {
	Create(ctx context.Context, tx *gorm.DB, p outbox.CreateParams) (*model.OutboxEvent, error)
}

// Context is the unit of work handed to a Handler.
type Context struct {
	Document *model.Document
	Tx       *gorm.DB
	TenantID string
	ActorID  string
	Outbox   EventWriter
	Now      time.Time
}

// Handler posts one document. The engine finalises status and history afterwards.
type Handler interface {
	Post(ctx context.Context, pc *Context) error
}

// Guard holds the checks shared by every handler; embed it.
type Guard struct{}

// Check fails for documents already posted, then for any non-approved document.
func (Guard) Check(doc *model.Document) error {
	if doc.Status == model.StatusPosted {
		return apperr.ErrPostingAlreadyProcessed
	}
	if doc.Status != model.StatusApproved {
		return apperr.ErrInvalidTransition
	}
	return nil
}

// Registry maps handler names to handlers. Built once at start-up.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers map[string]Handler) *Registry {
	m := make(map[string]Handler, len(handlers))
	for k, v := range handlers {
		m[k] = v
	}
	return &Registry{handlers: m}
}

func (r *Registry) Get(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("posting handler %q: %w", name, apperr.ErrInvalidDocumentType)
	}
	return h, nil
}
