// Package doctype is the immutable table of known document types.
package doctype

import (
	"sort"

	"github.com/richardliu001/docflow-service/internal/model"
)

const (
	SalesOrder          = "sales.order"
	SalesInvoice        = "sales.invoice"
	SalesCreditNote     = "sales.credit_note"
	PurchasingPO        = "purchasing.po"
	PurchasingGRN       = "purchasing.grn"
	AccountingJournal   = "accounting.journal"
	InventoryTransfer   = "inventory.transfer"
	InventoryAdjustment = "inventory.adjustment"
	InventoryCount      = "inventory.count"
)

// DefaultPostingHandler is the posting handler name used when a type does not name one.
const DefaultPostingHandler = "default"

type Definition struct {
	Key            string
	Module         model.DocumentModule
	Name           string
	RequiresItems  bool
	ApprovalSteps  int
	NumberPrefix   string
	PostingHandler string
}

// Registry is built once at start-up and shared read-only.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry copies defs into a new Registry. Later keys win on duplicates.
func NewRegistry(defs ...Definition) *Registry {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.PostingHandler == "" {
			d.PostingHandler = DefaultPostingHandler
		}
		// a type needs at least one step to be approvable
		if d.ApprovalSteps <= 0 {
			d.ApprovalSteps = 1
		}
		m[d.Key] = d
	}
	return &Registry{defs: m}
}

// Default returns the built-in document types.
func Default() *Registry {
	return NewRegistry(
		Definition{Key: SalesOrder, Module: model.ModuleSales, Name: "Sales Order", RequiresItems: true, ApprovalSteps: 1, NumberPrefix: "SO"},
		Definition{Key: SalesInvoice, Module: model.ModuleSales, Name: "Sales Invoice", RequiresItems: true, ApprovalSteps: 1, NumberPrefix: "INV"},
		Definition{Key: SalesCreditNote, Module: model.ModuleSales, Name: "Sales Credit Note", RequiresItems: true, ApprovalSteps: 1, NumberPrefix: "CN"},
		Definition{Key: PurchasingPO, Module: model.ModulePurchase, Name: "Purchase Order", RequiresItems: true, ApprovalSteps: 2, NumberPrefix: "PO"},
		Definition{Key: PurchasingGRN, Module: model.ModulePurchase, Name: "Goods Receipt Note", RequiresItems: true, ApprovalSteps: 1, NumberPrefix: "GRN"},
		Definition{Key: AccountingJournal, Module: model.ModuleAccounting, Name: "General Journal", ApprovalSteps: 1, NumberPrefix: "JE"},
		Definition{Key: InventoryTransfer, Module: model.ModuleInventory, Name: "Stock Transfer", ApprovalSteps: 1, NumberPrefix: "TRF"},
		Definition{Key: InventoryAdjustment, Module: model.ModuleInventory, Name: "Stock Adjustment", ApprovalSteps: 1, NumberPrefix: "ADJ"},
		Definition{Key: InventoryCount, Module: model.ModuleInventory, Name: "Cycle Count", ApprovalSteps: 1, NumberPrefix: "CNT"},
	)
}

func (r *Registry) Get(key string) (Definition, bool) {
	d, ok := r.defs[key]
	return d, ok
}

func (r *Registry) IsValidKey(key string) bool {
	_, ok := r.defs[key]
	return ok
}

// ApprovalSteps returns the configured step count, 1 for unknown keys.
func (r *Registry) ApprovalSteps(key string) int {
	if d, ok := r.defs[key]; ok {
		return d.ApprovalSteps
	}
	return 1
}

// PostingHandler returns the handler name for key, DefaultPostingHandler for unknown keys.
func (r *Registry) PostingHandler(key string) string {
	if d, ok := r.defs[key]; ok {
		return d.PostingHandler
	}
	return DefaultPostingHandler
}

// All returns the definitions sorted by key.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
