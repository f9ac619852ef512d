package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/model"
	"gorm.io/gorm"
)

// GetDocument loads a document scoped to its tenant.
func (r *Repository) GetDocument(ctx context.Context, tx *gorm.DB, id, tenantID string) (*model.Document, error) {
	var d model.Document
	err := r.conn(ctx, tx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) CreateDocument(ctx context.Context, tx *gorm.DB, d *model.Document) error {
	return r.conn(ctx, tx).Create(d).Error
}

func (r *Repository) SaveDocument(ctx context.Context, tx *gorm.DB, d *model.Document) error {
	return r.conn(ctx, tx).Save(d).Error
}

func (r *Repository) CreateItems(ctx context.Context, tx *gorm.DB, items []model.DocumentItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&items).Error
}

func (r *Repository) DeleteItems(ctx context.Context, tx *gorm.DB, documentID string) error {
	return r.conn(ctx, tx).Where("document_id = ?", documentID).Delete(&model.DocumentItem{}).Error
}

func (r *Repository) CountItems(ctx context.Context, tx *gorm.DB, documentID string) (int64, error) {
	var n int64
	err := r.conn(ctx, tx).Model(&model.DocumentItem{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

func (r *Repository) ListItems(ctx context.Context, tx *gorm.DB, documentID string) ([]model.DocumentItem, error) {
	var items []model.DocumentItem
	err := r.conn(ctx, tx).Where("document_id = ?", documentID).Order("line_no asc").Find(&items).Error
	return items, err
}

// CreateHistory appends an audit row.
func (r *Repository) CreateHistory(ctx context.Context, tx *gorm.DB, h *model.StatusHistoryEntry) error {
	return r.conn(ctx, tx).Create(h).Error
}

// ListHistory returns history in commit order.
func (r *Repository) ListHistory(ctx context.Context, tx *gorm.DB, documentID string) ([]model.StatusHistoryEntry, error) {
	var rows []model.StatusHistoryEntry
	err := r.conn(ctx, tx).Where("document_id = ?", documentID).Order("id asc").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateApprovalSteps(ctx context.Context, tx *gorm.DB, steps []model.ApprovalStep) error {
	if len(steps) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&steps).Error
}

func (r *Repository) GetApprovalStep(ctx context.Context, tx *gorm.DB, documentID string, round, stepIndex int) (*model.ApprovalStep, error) {
	var s model.ApprovalStep
	err := r.conn(ctx, tx).
		Where("document_id = ? AND round = ? AND step_index = ?", documentID, round, stepIndex).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FirstPendingApproval returns the lowest pending step of the round.
func (r *Repository) FirstPendingApproval(ctx context.Context, tx *gorm.DB, documentID string, round int) (*model.ApprovalStep, error) {
	var s model.ApprovalStep
	err := r.conn(ctx, tx).
		Where("document_id = ? AND round = ? AND status = ?", documentID, round, model.ApprovalPending).
		Order("step_index asc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) SaveApprovalStep(ctx context.Context, tx *gorm.DB, s *model.ApprovalStep) error {
	return r.conn(ctx, tx).Save(s).Error
}

func (r *Repository) CountPendingApprovals(ctx context.Context, tx *gorm.DB, documentID string, round int) (int64, error) {
	var n int64
	err := r.conn(ctx, tx).Model(&model.ApprovalStep{}).
		Where("document_id = ? AND round = ? AND status = ?", documentID, round, model.ApprovalPending).
		Count(&n).Error
	return n, err
}

// DecidePendingApprovals bulk-updates every pending step of the document.
func (r *Repository) DecidePendingApprovals(ctx context.Context, tx *gorm.DB, documentID string, status model.ApprovalStatus, actor string, at time.Time, notes *string) (int64, error) {
	res := r.conn(ctx, tx).Model(&model.ApprovalStep{}).
		Where("document_id = ? AND status = ?", documentID, model.ApprovalPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": actor,
			"decided_at": at,
			"notes":      notes,
		})
	return res.RowsAffected, res.Error
}

// DeletePendingApprovals physically removes undecided steps.
func (r *Repository) DeletePendingApprovals(ctx context.Context, tx *gorm.DB, documentID string) (int64, error) {
	res := r.conn(ctx, tx).
		Where("document_id = ? AND status = ?", documentID, model.ApprovalPending).
		Delete(&model.ApprovalStep{})
	return res.RowsAffected, res.Error
}

func (r *Repository) ListApprovals(ctx context.Context, tx *gorm.DB, documentID string, round int) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := r.conn(ctx, tx).
		Where("document_id = ? AND round = ?", documentID, round).
		Order("step_index asc").
		Find(&steps).Error
	return steps, err
}
