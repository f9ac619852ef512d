package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/model"
	"gorm.io/gorm"
)

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return r.conn(ctx, tx).Create(evt).Error
}

// MaxOutboxVersion returns the highest version for (document, key), 0 when none exist.
func (r *Repository) MaxOutboxVersion(ctx context.Context, tx *gorm.DB, documentID, eventKey string) (int, error) {
	var v int
	err := r.conn(ctx, tx).Model(&model.OutboxEvent{}).
		Where("document_id = ? AND event_key = ?", documentID, eventKey).
		Select("COALESCE(MAX(event_version), 0)").
		Scan(&v).Error
	return v, err
}

func (r *Repository) GetOutboxEvent(ctx context.Context, tx *gorm.DB, id string) (*model.OutboxEvent, error) {
	var evt model.OutboxEvent
	err := r.conn(ctx, tx).Where("id = ?", id).First(&evt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrOutboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// MarkOutboxProcessing flips status and bumps attempts in a single statement.
func (r *Repository) MarkOutboxProcessing(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	res := r.conn(ctx, tx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.OutboxProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) UpdateOutboxEvent(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) (int64, error) {
	res := r.conn(ctx, tx).Model(&model.OutboxEvent{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// PollOutbox pulls pending events and failed events whose retry time has come.
func (r *Repository) PollOutbox(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.conn(ctx, tx).
		Where("status = ? OR (status = ? AND next_attempt_at <= ?)", model.OutboxPending, model.OutboxFailed, now).
		Order("created_at asc").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}
