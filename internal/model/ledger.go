package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEntryType string

const (
	EntryDebit  LedgerEntryType = "DEBIT"
	EntryCredit LedgerEntryType = "CREDIT"
)

// Account is a chart-of-accounts row, looked up by tenant and code.
type Account struct {
	ID        string    `gorm:"primaryKey;size:36"`
	TenantID  string    `gorm:"size:36;not null;uniqueIndex:ux_chart_of_accounts_tenant_code,priority:1"`
	Code      string    `gorm:"size:32;not null;uniqueIndex:ux_chart_of_accounts_tenant_code,priority:2"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Account) TableName() string { return "chart_of_accounts" }

type LedgerEntry struct {
	ID           string          `gorm:"primaryKey;size:36"`
	TenantID     string          `gorm:"size:36;not null;index"`
	DocumentID   string          `gorm:"size:36;not null;index"`
	EntryType    LedgerEntryType `gorm:"size:16;not null"`
	AccountID    string          `gorm:"size:36;not null"`
	AccountCode  string          `gorm:"size:32;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	CurrencyCode string          `gorm:"size:3;not null"`
	PostedAt     time.Time       `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// All returns every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Document{}, &DocumentItem{}, &ApprovalStep{}, &StatusHistoryEntry{},
		&NumberSetting{}, &OutboxEvent{}, &Account{}, &LedgerEntry{},
	}
}
