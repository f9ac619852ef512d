package repo

import (
	"context"
	"time"

	"github.com/richardliu001/docflow-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryInterface restricts Repo methods so services can be tested against fakes.
// Every method takes the transaction it must run in; a nil tx uses the root handle.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetDocument(ctx context.Context, tx *gorm.DB, id, tenantID string) (*model.Document, error)
	CreateDocument(ctx context.Context, tx *gorm.DB, d *model.Document) error
	SaveDocument(ctx context.Context, tx *gorm.DB, d *model.Document) error
	CreateItems(ctx context.Context, tx *gorm.DB, items []model.DocumentItem) error
	DeleteItems(ctx context.Context, tx *gorm.DB, documentID string) error
	CountItems(ctx context.Context, tx *gorm.DB, documentID string) (int64, error)
	ListItems(ctx context.Context, tx *gorm.DB, documentID string) ([]model.DocumentItem, error)

	CreateApprovalSteps(ctx context.Context, tx *gorm.DB, steps []model.ApprovalStep) error
	GetApprovalStep(ctx context.Context, tx *gorm.DB, documentID string, round, stepIndex int) (*model.ApprovalStep, error)
	FirstPendingApproval(ctx context.Context, tx *gorm.DB, documentID string, round int) (*model.ApprovalStep, error)
	SaveApprovalStep(ctx context.Context, tx *gorm.DB, s *model.ApprovalStep) error
	CountPendingApprovals(ctx context.Context, tx *gorm.DB, documentID string, round int) (int64, error)
	DecidePendingApprovals(ctx context.Context, tx *gorm.DB, documentID string, status model.ApprovalStatus, actor string, at time.Time, notes *string) (int64, error)
	DeletePendingApprovals(ctx context.Context, tx *gorm.DB, documentID string) (int64, error)
	ListApprovals(ctx context.Context, tx *gorm.DB, documentID string, round int) ([]model.ApprovalStep, error)

	CreateHistory(ctx context.Context, tx *gorm.DB, h *model.StatusHistoryEntry) error
	ListHistory(ctx context.Context, tx *gorm.DB, documentID string) ([]model.StatusHistoryEntry, error)

	GetNumberSettingForUpdate(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (*model.NumberSetting, error)
	InsertNumberSettingIfAbsent(ctx context.Context, tx *gorm.DB, s *model.NumberSetting) error
	GetNumberSetting(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (*model.NumberSetting, error)
	SaveNumberSetting(ctx context.Context, tx *gorm.DB, s *model.NumberSetting) error
	ListNumberSettings(ctx context.Context, tx *gorm.DB, tenantID string) ([]model.NumberSetting, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	MaxOutboxVersion(ctx context.Context, tx *gorm.DB, documentID, eventKey string) (int, error)
	GetOutboxEvent(ctx context.Context, tx *gorm.DB, id string) (*model.OutboxEvent, error)
	MarkOutboxProcessing(ctx context.Context, tx *gorm.DB, id string) (int64, error)
	UpdateOutboxEvent(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) (int64, error)
	PollOutbox(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]model.OutboxEvent, error)

	FindAccount(ctx context.Context, tx *gorm.DB, tenantID, code string) (*model.Account, error)
	FirstAccount(ctx context.Context, tx *gorm.DB, tenantID string) (*model.Account, error)
	CreateLedgerEntries(ctx context.Context, tx *gorm.DB, entries []model.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, tx *gorm.DB, documentID string) ([]model.LedgerEntry, error)
}

// Repository implements RepositoryInterface on gorm.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.WithContext(ctx)
}
