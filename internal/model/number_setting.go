package model

import "time"

type NumberSetting struct {
	ID             uint64    `gorm:"primaryKey"`
	TenantID       string    `gorm:"size:36;not null;uniqueIndex:ux_document_number_settings_tenant_key,priority:1"`
	DocumentKey    string    `gorm:"size:64;not null;uniqueIndex:ux_document_number_settings_tenant_key,priority:2"`
	Prefix         string    `gorm:"size:32;not null"`
	PaddingLength  int       `gorm:"not null"`
	IncludePeriod  bool      `gorm:"not null"`
	PeriodFormat   string    `gorm:"size:16;not null;default:yyyy-MM"`
	LastPeriod     *string   `gorm:"size:16"`
	CurrentCounter int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (NumberSetting) TableName() string { return "document_number_settings" }
