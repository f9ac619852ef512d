package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentModule groups document types by business area.
type DocumentModule string

const (
	ModuleSales      DocumentModule = "SALES"
	ModulePurchase   DocumentModule = "PURCHASE"
	ModuleAccounting DocumentModule = "ACCOUNTING"
	ModuleInventory  DocumentModule = "INVENTORY"
)

// RequiresItems reports whether documents of this module need at least one line before submission.
func (m DocumentModule) RequiresItems() bool {
	return m == ModuleSales || m == ModulePurchase
}

type Document struct {
	ID            string          `gorm:"primaryKey;size:36"`
	TenantID      string          `gorm:"size:36;not null;uniqueIndex:ux_documents_tenant_key_number,priority:1"`
	Module        DocumentModule  `gorm:"size:32;not null"`
	DocumentKey   string          `gorm:"size:64;not null;uniqueIndex:ux_documents_tenant_key_number,priority:2"`
	Number        string          `gorm:"size:64;not null;uniqueIndex:ux_documents_tenant_key_number,priority:3"`
	Status        DocumentStatus  `gorm:"size:32;not null;default:DRAFT;index"`
	ApprovalRound int             `gorm:"not null;default:0"`
	DocumentDate  time.Time       `gorm:"not null"`
	DueDate       *time.Time
	PostingDate   *time.Time
	CurrencyCode  string          `gorm:"size:3;not null;default:IDR"`
	ExchangeRate  decimal.Decimal `gorm:"type:numeric(12,6);not null;default:1"`
	PersonID      *string         `gorm:"size:36"`
	PersonName    *string         `gorm:"size:255"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TaxTotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Notes         *string         `gorm:"type:text"`
	CreatedBy     string          `gorm:"size:36;not null"`

	SubmittedAt         *time.Time
	ApprovedAt          *time.Time
	PostedAt            *time.Time
	CancelledAt         *time.Time
	RejectedAt          *time.Time
	RevisionRequestedAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string { return "documents" }

// DocumentItem is one line of a sales or purchase document.
type DocumentItem struct {
	ID          uint64          `gorm:"primaryKey"`
	DocumentID  string          `gorm:"size:36;not null;index"`
	LineNo      int             `gorm:"not null"`
	ItemID      *string         `gorm:"size:36"`
	Description string          `gorm:"size:255;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (DocumentItem) TableName() string { return "document_items" }
