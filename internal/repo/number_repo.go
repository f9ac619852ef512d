package repo

import (
	"context"

	"github.com/richardliu001/docflow-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetNumberSettingForUpdate locks the settings row until tx commits.
func (r *Repository) GetNumberSettingForUpdate(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (*model.NumberSetting, error) {
	var s model.NumberSetting
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND document_key = ?", tenantID, documentKey).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertNumberSettingIfAbsent is an insert-or-ignore on (tenant_id, document_key).
func (r *Repository) InsertNumberSettingIfAbsent(ctx context.Context, tx *gorm.DB, s *model.NumberSetting) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "document_key"}},
			DoNothing: true,
		}).
		Create(s).Error
}

// GetNumberSetting reads without locking.
func (r *Repository) GetNumberSetting(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (*model.NumberSetting, error) {
	var s model.NumberSetting
	if err := r.conn(ctx, tx).
		Where("tenant_id = ? AND document_key = ?", tenantID, documentKey).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) SaveNumberSetting(ctx context.Context, tx *gorm.DB, s *model.NumberSetting) error {
	return r.conn(ctx, tx).Save(s).Error
}

func (r *Repository) ListNumberSettings(ctx context.Context, tx *gorm.DB, tenantID string) ([]model.NumberSetting, error) {
	var rows []model.NumberSetting
	err := r.conn(ctx, tx).Where("tenant_id = ?", tenantID).Order("document_key asc").Find(&rows).Error
	return rows, err
}
