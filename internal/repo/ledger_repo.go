package repo

import (
	"context"

	"github.com/richardliu001/docflow-service/internal/model"
	"gorm.io/gorm"
)

// FindAccount looks up a chart-of-accounts row by code; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindAccount(ctx context.Context, tx *gorm.DB, tenantID, code string) (*model.Account, error) {
	var a model.Account
	if err := r.conn(ctx, tx).Where("tenant_id = ? AND code = ?", tenantID, code).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FirstAccount returns any account of the tenant, lowest code first.
func (r *Repository) FirstAccount(ctx context.Context, tx *gorm.DB, tenantID string) (*model.Account, error) {
	var a model.Account
	if err := r.conn(ctx, tx).Where("tenant_id = ?", tenantID).Order("code asc").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) CreateLedgerEntries(ctx context.Context, tx *gorm.DB, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&entries).Error
}

func (r *Repository) ListLedgerEntries(ctx context.Context, tx *gorm.DB, documentID string) ([]model.LedgerEntry, error) {
	var rows []model.LedgerEntry
	err := r.conn(ctx, tx).Where("document_id = ?", documentID).Order("posted_at asc, entry_type desc").Find(&rows).Error
	return rows, err
}
