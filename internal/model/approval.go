package model

import "time"

type ApprovalStatus string

const (
	ApprovalPending           ApprovalStatus = "PENDING"
	ApprovalApproved          ApprovalStatus = "APPROVED"
	ApprovalRejected          ApprovalStatus = "REJECTED"
	ApprovalRevisionRequested ApprovalStatus = "REVISION_REQUESTED"
)

// ApprovalStep is one ordered gate of a document's sign-off. Round is the
// submission counter, so a resubmitted document gets a fresh set of steps.
type ApprovalStep struct {
	ID          uint64         `gorm:"primaryKey"`
	DocumentID  string         `gorm:"size:36;not null;uniqueIndex:ux_document_approvals_doc_round_step,priority:1"`
	Round       int            `gorm:"not null;uniqueIndex:ux_document_approvals_doc_round_step,priority:2"`
	StepIndex   int            `gorm:"not null;uniqueIndex:ux_document_approvals_doc_round_step,priority:3"`
	Status      ApprovalStatus `gorm:"size:32;not null;default:PENDING"`
	RequestedBy string         `gorm:"size:36;not null"`
	DecidedBy   *string        `gorm:"size:36"`
	DecidedAt   *time.Time
	Notes       *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ApprovalStep) TableName() string { return "document_approvals" }

// StatusHistoryEntry is an immutable audit row written once per transition.
type StatusHistoryEntry struct {
	ID         uint64         `gorm:"primaryKey"`
	DocumentID string         `gorm:"size:36;not null;index"`
	FromStatus DocumentStatus `gorm:"size:32;not null"`
	ToStatus   DocumentStatus `gorm:"size:32;not null"`
	ChangedBy  string         `gorm:"size:36;not null"`
	Reason     *string        `gorm:"type:text"`
	ChangedAt  time.Time      `gorm:"not null"`
}

func (StatusHistoryEntry) TableName() string { return "document_status_history" }
