package model

import "time"

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxDone       OutboxStatus = "DONE"
	OutboxFailed     OutboxStatus = "FAILED"
	// OutboxDead is only reached when a max attempt count is configured.
	OutboxDead OutboxStatus = "DEAD"
)

// OutboxEvent is written in the same transaction as the transition that produced it.
// (DocumentID, EventKey, EventVersion) is the idempotency key.
type OutboxEvent struct {
	ID            string       `gorm:"primaryKey;size:36"`
	TenantID      string       `gorm:"size:36;not null"`
	DocumentID    string       `gorm:"size:36;not null;uniqueIndex:ux_document_outbox_idempotency,priority:1"`
	EventKey      string       `gorm:"size:64;not null;uniqueIndex:ux_document_outbox_idempotency,priority:2"`
	EventVersion  int          `gorm:"not null;default:1;uniqueIndex:ux_document_outbox_idempotency,priority:3"`
	Status        OutboxStatus `gorm:"size:32;not null;default:PENDING;index:ix_document_outbox_status_next_attempt,priority:1"`
	Attempts      int          `gorm:"not null;default:0"`
	NextAttemptAt *time.Time   `gorm:"index:ix_document_outbox_status_next_attempt,priority:2"`
	LastError     *string      `gorm:"type:text"`
	CreatedBy     string       `gorm:"size:36"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime"`
}

func (OutboxEvent) TableName() string { return "document_outbox" }
