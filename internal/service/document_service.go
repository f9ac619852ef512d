package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/posting"
	"github.com/richardliu001/docflow-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCurrency = "IDR"
	autoDraftReason = "auto-transferred to DRAFT after revision request"
)

// ItemInput is one document line. Amount defaults to quantity * unit price.
type ItemInput struct {
	ItemID      *string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      *decimal.Decimal
}

// CreateInput carries the caller-supplied fields of a new document.
// A zero Total is derived from the items.
type CreateInput struct {
	DocumentKey   string
	Module        model.DocumentModule
	DocumentDate  time.Time
	DueDate       *time.Time
	PostingDate   *time.Time
	CurrencyCode  string
	ExchangeRate  decimal.Decimal
	PersonID      *string
	PersonName    *string
	Notes         *string
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	Total         decimal.Decimal
	Items         []ItemInput
}

// DocumentService is the document lifecycle engine. Every mutation runs in one
// transaction covering the document row, approval steps, history and outbox.
type DocumentService struct {
	repo     repo.RepositoryInterface
	types    *doctype.Registry
	numbers  *NumberService
	events   *outbox.Service
	postings *posting.Registry
	authz    Authorizer
	clock    func() time.Time
	log      *zap.SugaredLogger
}

// NewDocumentService wires the engine. Approval decisions are open until WithAuthorizer is used.
func NewDocumentService(
	r repo.RepositoryInterface,
	types *doctype.Registry,
	numbers *NumberService,
	events *outbox.Service,
	postings *posting.Registry,
	logger *zap.SugaredLogger,
) *DocumentService {
	return &DocumentService{
		repo:     r,
		types:    types,
		numbers:  numbers,
		events:   events,
		postings: postings,
		authz:    AllowAll{},
		clock:    time.Now,
		log:      logger,
	}
}

func (s *DocumentService) WithAuthorizer(a Authorizer) *DocumentService {
	s.authz = a
	return s
}

func (s *DocumentService) WithClock(clock func() time.Time) *DocumentService {
	s.clock = clock
	return s
}

// Repo exposes the repository (tests only)
func (s *DocumentService) Repo() repo.RepositoryInterface { return s.repo }

func (s *DocumentService) now() time.Time { return s.clock().UTC() }

type move struct {
	from, to model.DocumentStatus
}

// op is the unit of work of one engine call.
type op struct {
	tx    *gorm.DB
	doc   *model.Document
	actor string
	now   time.Time
	moves []move
}

// run loads the document in a new transaction, applies fn and saves the document.
// Transition metrics and logs are emitted only after commit.
func (s *DocumentService) run(ctx context.Context, id, tenantID, actor string, fn func(o *op) error) (*model.Document, error) {
	var o *op
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.repo.GetDocument(ctx, tx, id, tenantID)
		if err != nil {
			return err
		}
		o = &op{tx: tx, doc: doc, actor: actor, now: s.now()}
		if err := fn(o); err != nil {
			return err
		}
		return s.repo.SaveDocument(ctx, tx, o.doc)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range o.moves {
		metrics.RecordTransition(o.doc.DocumentKey, string(m.from), string(m.to))
		s.log.Infow("document transition",
			"document_id", o.doc.ID, "tenant_id", tenantID, "from", m.from, "to", m.to, "actor", actor)
	}
	return o.doc, nil
}

func checkTransition(doc *model.Document, to model.DocumentStatus) error {
	if !model.IsValidTransition(doc.Status, to) {
		return fmt.Errorf("%s -> %s: %w", doc.Status, to, apperr.ErrInvalidTransition)
	}
	return nil
}

// moveTo validates and applies one transition and appends its history row.
func (s *DocumentService) moveTo(ctx context.Context, o *op, to model.DocumentStatus, reason *string) error {
	if err := checkTransition(o.doc, to); err != nil {
		return err
	}
	from := o.doc.Status
	o.doc.Status = to
	if err := s.repo.CreateHistory(ctx, o.tx, &model.StatusHistoryEntry{
		DocumentID: o.doc.ID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  o.actor,
		Reason:     reason,
		ChangedAt:  o.now,
	}); err != nil {
		return err
	}
	o.moves = append(o.moves, move{from: from, to: to})
	return nil
}

func (s *DocumentService) emit(ctx context.Context, o *op, eventKey string) error {
	_, err := s.events.Create(ctx, o.tx, outbox.CreateParams{
		TenantID:   o.doc.TenantID,
		DocumentID: o.doc.ID,
		EventKey:   eventKey,
		ActorID:    o.actor,
	})
	return err
}

func (s *DocumentService) authorize(ctx context.Context, o *op, stepIndex int) error {
	ok, err := s.authz.CanDecide(ctx, Decision{
		TenantID:    o.doc.TenantID,
		ActorID:     o.actor,
		DocumentKey: o.doc.DocumentKey,
		StepIndex:   stepIndex,
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrAccessDenied
	}
	return nil
}

// Create issues the number and stores a DRAFT document with its items.
func (s *DocumentService) Create(ctx context.Context, tenantID string, in CreateInput, actor string) (*model.Document, error) {
	if in.DocumentKey == "" {
		return nil, apperr.ErrInvalidDocumentType
	}
	module := in.Module
	if module == "" {
		if def, ok := s.types.Get(in.DocumentKey); ok {
			module = def.Module
		}
	}
	if module == "" {
		return nil, fmt.Errorf("module for %q: %w", in.DocumentKey, apperr.ErrInvalidDocumentType)
	}

	now := s.now()
	doc := &model.Document{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Module:        module,
		DocumentKey:   in.DocumentKey,
		Status:        model.StatusDraft,
		DocumentDate:  in.DocumentDate,
		DueDate:       in.DueDate,
		PostingDate:   in.PostingDate,
		CurrencyCode:  in.CurrencyCode,
		ExchangeRate:  in.ExchangeRate,
		PersonID:      in.PersonID,
		PersonName:    in.PersonName,
		Notes:         in.Notes,
		DiscountTotal: in.DiscountTotal,
		TaxTotal:      in.TaxTotal,
		Total:         in.Total,
		CreatedBy:     actor,
	}
	if doc.DocumentDate.IsZero() {
		doc.DocumentDate = now
	}
	if doc.CurrencyCode == "" {
		doc.CurrencyCode = defaultCurrency
	}
	if doc.ExchangeRate.IsZero() {
		doc.ExchangeRate = decimal.NewFromInt(1)
	}
	items := buildItems(doc.ID, in.Items)
	applyTotals(doc, items, in.Total.IsZero())

	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, tenantID, in.DocumentKey)
		if err != nil {
			return err
		}
		doc.Number = number
		if err := s.repo.CreateDocument(ctx, tx, doc); err != nil {
			return err
		}
		return s.repo.CreateItems(ctx, tx, items)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("document created", "document_id", doc.ID, "tenant_id", tenantID, "number", doc.Number)
	return doc, nil
}

func buildItems(documentID string, in []ItemInput) []model.DocumentItem {
	items := make([]model.DocumentItem, 0, len(in))
	for i, it := range in {
		amount := it.Quantity.Mul(it.UnitPrice)
		if it.Amount != nil {
			amount = *it.Amount
		}
		items = append(items, model.DocumentItem{
			DocumentID:  documentID,
			LineNo:      i + 1,
			ItemID:      it.ItemID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      amount,
		})
	}
	return items
}

// applyTotals sets subtotal from the items and, when derive is set, total = subtotal - discount + tax.
func applyTotals(doc *model.Document, items []model.DocumentItem, derive bool) {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount)
	}
	doc.Subtotal = subtotal
	if derive {
		doc.Total = subtotal.Sub(doc.DiscountTotal).Add(doc.TaxTotal)
	}
}

func (s *DocumentService) Get(ctx context.Context, id, tenantID string) (*model.Document, error) {
	return s.repo.GetDocument(ctx, nil, id, tenantID)
}

func (s *DocumentService) ListItems(ctx context.Context, id, tenantID string) ([]model.DocumentItem, error) {
	if _, err := s.Get(ctx, id, tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, nil, id)
}

// ReplaceItems swaps the lines of a DRAFT document and recomputes its totals.
func (s *DocumentService) ReplaceItems(ctx context.Context, id, tenantID string, in []ItemInput, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		switch o.doc.Status {
		case model.StatusPosted:
			return apperr.ErrAlreadyPosted
		case model.StatusDraft:
		default:
			return fmt.Errorf("items of a %s document: %w", o.doc.Status, apperr.ErrInvalidTransition)
		}
		if err := s.repo.DeleteItems(ctx, o.tx, o.doc.ID); err != nil {
			return err
		}
		items := buildItems(o.doc.ID, in)
		if err := s.repo.CreateItems(ctx, o.tx, items); err != nil {
			return err
		}
		applyTotals(o.doc, items, true)
		return nil
	})
}

// Submit moves a DRAFT document to SUBMITTED and opens a new approval round.
func (s *DocumentService) Submit(ctx context.Context, id, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		if err := checkTransition(o.doc, model.StatusSubmitted); err != nil {
			return err
		}
		if s.requiresItems(o.doc) {
			n, err := s.repo.CountItems(ctx, o.tx, o.doc.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return apperr.ErrItemsRequired
			}
		}

		o.doc.ApprovalRound++
		o.doc.SubmittedAt = &o.now
		steps := make([]model.ApprovalStep, s.types.ApprovalSteps(o.doc.DocumentKey))
		for i := range steps {
			steps[i] = model.ApprovalStep{
				DocumentID:  o.doc.ID,
				Round:       o.doc.ApprovalRound,
				StepIndex:   i,
				Status:      model.ApprovalPending,
				RequestedBy: o.actor,
			}
		}
		if err := s.repo.CreateApprovalSteps(ctx, o.tx, steps); err != nil {
			return err
		}
		if err := s.moveTo(ctx, o, model.StatusSubmitted, nil); err != nil {
			return err
		}
		return s.emit(ctx, o, outbox.EventDocumentSubmitted)
	})
}

// ApproveStep decides one step. Steps are approved strictly in order; the last
// one moves the document to APPROVED.
func (s *DocumentService) ApproveStep(ctx context.Context, id string, stepIndex int, notes *string, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		if o.doc.Status != model.StatusSubmitted {
			return fmt.Errorf("approve %s document: %w", o.doc.Status, apperr.ErrInvalidTransition)
		}
		round := o.doc.ApprovalRound

		step, err := s.repo.GetApprovalStep(ctx, o.tx, o.doc.ID, round, stepIndex)
		if err != nil {
			return err
		}
		if step.Status != model.ApprovalPending {
			return apperr.ErrApprovalAlreadyDecided
		}
		if stepIndex > 0 {
			prev, err := s.repo.GetApprovalStep(ctx, o.tx, o.doc.ID, round, stepIndex-1)
			if err != nil && !errors.Is(err, apperr.ErrApprovalNotFound) {
				return err
			}
			if prev == nil || prev.Status != model.ApprovalApproved {
				return apperr.ErrApprovalStepNotReady
			}
		}
		if err := s.authorize(ctx, o, stepIndex); err != nil {
			return err
		}

		step.Status = model.ApprovalApproved
		step.DecidedBy = &o.actor
		step.DecidedAt = &o.now
		step.Notes = notes
		if err := s.repo.SaveApprovalStep(ctx, o.tx, step); err != nil {
			return err
		}

		pending, err := s.repo.CountPendingApprovals(ctx, o.tx, o.doc.ID, round)
		if err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		o.doc.ApprovedAt = &o.now
		if err := s.moveTo(ctx, o, model.StatusApproved, notes); err != nil {
			return err
		}
		return s.emit(ctx, o, outbox.EventDocumentApproved)
	})
}

// requiresItems holds for sales and purchase documents and for any type registered as needing lines.
func (s *DocumentService) requiresItems(doc *model.Document) bool {
	if doc.Module.RequiresItems() {
		return true
	}
	def, ok := s.types.Get(doc.DocumentKey)
	return ok && def.RequiresItems
}

// currentStep is the lowest undecided step of the current round, used for authorization.
func (s *DocumentService) currentStep(ctx context.Context, o *op) (int, error) {
	step, err := s.repo.FirstPendingApproval(ctx, o.tx, o.doc.ID, o.doc.ApprovalRound)
	if errors.Is(err, apperr.ErrApprovalNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return step.StepIndex, nil
}

// Reject closes the document and marks its pending steps REJECTED.
func (s *DocumentService) Reject(ctx context.Context, id string, reason *string, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		if err := checkTransition(o.doc, model.StatusRejected); err != nil {
			return err
		}
		idx, err := s.currentStep(ctx, o)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, o, idx); err != nil {
			return err
		}
		if _, err := s.repo.DecidePendingApprovals(ctx, o.tx, o.doc.ID, model.ApprovalRejected, o.actor, o.now, reason); err != nil {
			return err
		}
		o.doc.RejectedAt = &o.now
		if err := s.moveTo(ctx, o, model.StatusRejected, reason); err != nil {
			return err
		}
		return s.emit(ctx, o, outbox.EventDocumentRejected)
	})
}

// RequestRevision sends a submitted document back to DRAFT through REVISION_REQUESTED.
func (s *DocumentService) RequestRevision(ctx context.Context, id string, reason *string, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		if err := checkTransition(o.doc, model.StatusRevisionRequested); err != nil {
			return err
		}
		idx, err := s.currentStep(ctx, o)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, o, idx); err != nil {
			return err
		}
		if _, err := s.repo.DecidePendingApprovals(ctx, o.tx, o.doc.ID, model.ApprovalRevisionRequested, o.actor, o.now, reason); err != nil {
			return err
		}
		o.doc.RevisionRequestedAt = &o.now
		if err := s.moveTo(ctx, o, model.StatusRevisionRequested, reason); err != nil {
			return err
		}
		auto := autoDraftReason
		return s.moveTo(ctx, o, model.StatusDraft, &auto)
	})
}

// Post runs the posting handler of the document type, then marks the document POSTED.
// Posting a POSTED document always fails with ErrPostingAlreadyProcessed.
func (s *DocumentService) Post(ctx context.Context, id, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		handler, err := s.postings.Get(s.types.PostingHandler(o.doc.DocumentKey))
		if err != nil {
			return err
		}
		if err := handler.Post(ctx, &posting.Context{
			Document: o.doc,
			Tx:       o.tx,
			TenantID: o.doc.TenantID,
			ActorID:  o.actor,
			Outbox:   s.events,
			Now:      o.now,
		}); err != nil {
			return err
		}

		o.doc.PostedAt = &o.now
		if o.doc.PostingDate == nil {
			o.doc.PostingDate = &o.now
		}
		if err := s.moveTo(ctx, o, model.StatusPosted, nil); err != nil {
			return err
		}
		return s.emit(ctx, o, outbox.EventDocumentPosted)
	})
}

// Cancel closes the document and deletes its undecided approval steps.
func (s *DocumentService) Cancel(ctx context.Context, id string, reason *string, tenantID, actor string) (*model.Document, error) {
	return s.run(ctx, id, tenantID, actor, func(o *op) error {
		if err := checkTransition(o.doc, model.StatusCancelled); err != nil {
			return err
		}
		n, err := s.repo.DeletePendingApprovals(ctx, o.tx, o.doc.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.Debugw("pending approvals removed", "document_id", o.doc.ID, "count", n)
		}
		o.doc.CancelledAt = &o.now
		if err := s.moveTo(ctx, o, model.StatusCancelled, reason); err != nil {
			return err
		}
		return s.emit(ctx, o, outbox.EventDocumentCancelled)
	})
}

// ListApprovals returns the steps of the current round in step order.
func (s *DocumentService) ListApprovals(ctx context.Context, id, tenantID string) ([]model.ApprovalStep, error) {
	doc, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListApprovals(ctx, nil, doc.ID, doc.ApprovalRound)
}

func (s *DocumentService) ListHistory(ctx context.Context, id, tenantID string) ([]model.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, id, tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, nil, id)
}
