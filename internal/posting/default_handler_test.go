package posting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/repo"
	"github.com/richardliu001/docflow-service/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sideEffectFunc func(ctx context.Context, pc *Context) error

func (f sideEffectFunc) Apply(ctx context.Context, pc *Context) error { return f(ctx, pc) }

func setup(t *testing.T) (*gorm.DB, *repo.Repository, *outbox.Service) {
	db := testutil.OpenDB(t)
	r := repo.NewRepository(db, logger.NewNop())
	return db, r, outbox.NewService(r, 0, logger.NewNop())
}

func approvedDoc(key string) *model.Document {
	return &model.Document{
		ID: "d1", TenantID: "t1", DocumentKey: key, Module: model.ModuleSales,
		Status: model.StatusApproved, Total: decimal.NewFromInt(250),
	}
}

func postIn(db *gorm.DB, h Handler, events *outbox.Service, doc *model.Document) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return h.Post(context.Background(), &Context{
			Document: doc, Tx: tx, TenantID: doc.TenantID, ActorID: "poster", Outbox: events, Now: time.Now(),
		})
	})
}

func TestGuard(t *testing.T) {
	var g Guard
	assert.NoError(t, g.Check(&model.Document{Status: model.StatusApproved}))
	assert.ErrorIs(t, g.Check(&model.Document{Status: model.StatusPosted}), apperr.ErrPostingAlreadyProcessed)
	assert.ErrorIs(t, g.Check(&model.Document{Status: model.StatusDraft}), apperr.ErrInvalidTransition)
}

func TestDefaultHandler_FallsBackToFirstAccount(t *testing.T) {
	db, r, events := setup(t)
	require.NoError(t, db.Create(&model.Account{ID: "a1", TenantID: "t1", Code: "1100", Name: "Bank"}).Error)

	h := NewDefaultHandler(r, nil, logger.NewNop())
	require.NoError(t, postIn(db, h, events, approvedDoc(doctype.SalesInvoice)))

	entries, err := r.ListLedgerEntries(context.Background(), nil, "d1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "1100", e.AccountCode)
		assert.Equal(t, "250", e.Amount.StringFixed(0))
		assert.Equal(t, "IDR", e.CurrencyCode)
	}

	v, err := events.NextVersion(context.Background(), nil, "d1", outbox.EventSalesInvoicePosted)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "module event written once")
}

func TestDefaultHandler_NoAccounts(t *testing.T) {
	db, r, events := setup(t)
	h := NewDefaultHandler(r, nil, logger.NewNop())
	assert.ErrorIs(t, postIn(db, h, events, approvedDoc(doctype.SalesInvoice)), apperr.ErrNoChartOfAccounts)
}

func TestDefaultHandler_SideEffectFailureRollsBack(t *testing.T) {
	db, r, events := setup(t)
	require.NoError(t, db.Create(&model.Account{ID: "a1", TenantID: "t1", Code: CashAccountCode, Name: "Cash"}).Error)
	boom := errors.New("membership service rejected")

	applied := 0
	h := NewDefaultHandler(r, map[string][]SideEffect{
		doctype.SalesInvoice: {
			sideEffectFunc(func(context.Context, *Context) error { applied++; return nil }),
			sideEffectFunc(func(context.Context, *Context) error { return boom }),
		},
	}, logger.NewNop())

	err := postIn(db, h, events, approvedDoc(doctype.SalesInvoice))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, applied)

	entries, _ := r.ListLedgerEntries(context.Background(), nil, "d1")
	assert.Empty(t, entries)
}

func TestRegistry_Unknown(t *testing.T) {
	reg := NewRegistry(map[string]Handler{doctype.DefaultPostingHandler: NewDefaultHandler(nil, nil, logger.NewNop())})
	_, err := reg.Get("membership")
	assert.ErrorIs(t, err, apperr.ErrInvalidDocumentType)
	h, err := reg.Get(doctype.DefaultPostingHandler)
	assert.NoError(t, err)
	assert.NotNil(t, h)
}
