package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	CashAccountCode    = "1000"
	RevenueAccountCode = "4000"
	defaultCurrency    = "IDR"
)

// SideEffect is a downstream integration (membership, PT package, group
// session creation) run inside the posting transaction.
type SideEffect interface {
	Apply(ctx context.Context, pc *Context) error
}

var moduleEvents = map[string]string{
	doctype.SalesInvoice:  outbox.EventSalesInvoicePosted,
	doctype.SalesOrder:    outbox.EventSalesOrderPosted,
	doctype.PurchasingPO:  outbox.EventPurchasingPOPosted,
	doctype.PurchasingGRN: outbox.EventPurchasingGRNPosted,
}

// DefaultHandler writes a cash/revenue ledger pair, runs side effects and
// queues the module event for the document type.
type DefaultHandler struct {
	Guard
	repo        repo.RepositoryInterface
	sideEffects map[string][]SideEffect
	log         *zap.SugaredLogger
}

func NewDefaultHandler(r repo.RepositoryInterface, sideEffects map[string][]SideEffect, logger *zap.SugaredLogger) *DefaultHandler {
	return &DefaultHandler{repo: r, sideEffects: sideEffects, log: logger}
}

func (h *DefaultHandler) Post(ctx context.Context, pc *Context) error {
	if err := h.Check(pc.Document); err != nil {
		return err
	}
	doc := pc.Document

	debit, err := h.entry(ctx, pc, CashAccountCode, model.EntryDebit, doc.Total)
	if err != nil {
		return err
	}
	credit, err := h.entry(ctx, pc, RevenueAccountCode, model.EntryCredit, doc.Total)
	if err != nil {
		return err
	}
	if err := h.repo.CreateLedgerEntries(ctx, pc.Tx, []model.LedgerEntry{*debit, *credit}); err != nil {
		return err
	}

	for _, se := range h.sideEffects[doc.DocumentKey] {
		if err := se.Apply(ctx, pc); err != nil {
			return fmt.Errorf("posting side effect: %w", err)
		}
	}

	if key, ok := moduleEvents[doc.DocumentKey]; ok {
		if _, err := pc.Outbox.Create(ctx, pc.Tx, outbox.CreateParams{
			TenantID:   pc.TenantID,
			DocumentID: doc.ID,
			EventKey:   key,
			ActorID:    pc.ActorID,
		}); err != nil {
			return err
		}
	}
	h.log.Debugw("ledger entries written", "document_id", doc.ID, "amount", doc.Total.String())
	return nil
}

// entry resolves the account by code, falling back to the tenant's first account.
func (h *DefaultHandler) entry(ctx context.Context, pc *Context, code string, typ model.LedgerEntryType, amount decimal.Decimal) (*model.LedgerEntry, error) {
	acct, err := h.repo.FindAccount(ctx, pc.Tx, pc.TenantID, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct, err = h.repo.FirstAccount(ctx, pc.Tx, pc.TenantID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNoChartOfAccounts
		}
	}
	if err != nil {
		return nil, err
	}
	currency := pc.Document.CurrencyCode
	if currency == "" {
		currency = defaultCurrency
	}
	return &model.LedgerEntry{
		ID:           uuid.NewString(),
		TenantID:     pc.TenantID,
		DocumentID:   pc.Document.ID,
		EntryType:    typ,
		AccountID:    acct.ID,
		AccountCode:  acct.Code,
		Amount:       amount,
		CurrencyCode: currency,
		PostedAt:     pc.Now,
	}, nil
}
