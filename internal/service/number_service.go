package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPadding      = 6
	defaultPeriodFormat = "yyyy-MM"
	maxPadding          = 12
)

// NumberService issues document numbers per tenant and document type.
type NumberService struct {
	repo  repo.RepositoryInterface
	types *doctype.Registry
	clock func() time.Time
	log   *zap.SugaredLogger
}

// NewNumberService returns NumberService.
func NewNumberService(r repo.RepositoryInterface, types *doctype.Registry, logger *zap.SugaredLogger) *NumberService {
	return &NumberService{repo: r, types: types, clock: time.Now, log: logger}
}

// WithClock replaces the time source; used by tests for period rollover.
func (s *NumberService) WithClock(clock func() time.Time) *NumberService {
	s.clock = clock
	return s
}

// Next issues the next number inside tx. The settings row stays locked until tx
// commits, which serialises concurrent callers for the same tenant and type.
func (s *NumberService) Next(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (string, error) {
	settings, err := s.lockSettings(ctx, tx, tenantID, documentKey)
	if err != nil {
		return "", err
	}

	var period string
	if settings.IncludePeriod {
		period = FormatPeriod(s.clock(), settings.PeriodFormat)
		if settings.LastPeriod == nil || *settings.LastPeriod != period {
			settings.CurrentCounter = 0
			p := period
			settings.LastPeriod = &p
		}
	}

	settings.CurrentCounter++
	if err := s.repo.SaveNumberSetting(ctx, tx, settings); err != nil {
		return "", err
	}
	return FormatNumber(settings, period), nil
}

func (s *NumberService) lockSettings(ctx context.Context, tx *gorm.DB, tenantID, documentKey string) (*model.NumberSetting, error) {
	settings, err := s.repo.GetNumberSettingForUpdate(ctx, tx, tenantID, documentKey)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := s.Defaults(tenantID, documentKey)
	if err := s.repo.InsertNumberSettingIfAbsent(ctx, tx, defaults); err != nil {
		return nil, err
	}
	settings, err = s.repo.GetNumberSettingForUpdate(ctx, tx, tenantID, documentKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Errorw("number settings missing after insert", "tenant_id", tenantID, "document_key", documentKey)
		return nil, fmt.Errorf("%s: %w", documentKey, apperr.ErrNumberSettings)
	}
	return settings, err
}

// Defaults returns unsaved default settings for a document type.
func (s *NumberService) Defaults(tenantID, documentKey string) *model.NumberSetting {
	prefix := strings.ToUpper(strings.Replace(documentKey, ".", "-", 1))
	if d, ok := s.types.Get(documentKey); ok && d.NumberPrefix != "" {
		prefix = d.NumberPrefix
	}
	return &model.NumberSetting{
		TenantID:      tenantID,
		DocumentKey:   documentKey,
		Prefix:        prefix,
		PaddingLength: defaultPadding,
		IncludePeriod: true,
		PeriodFormat:  defaultPeriodFormat,
	}
}

// ListSettings returns the stored settings of a tenant. Never use it to issue numbers.
func (s *NumberService) ListSettings(ctx context.Context, tenantID string) ([]model.NumberSetting, error) {
	return s.repo.ListNumberSettings(ctx, nil, tenantID)
}

// GetSettingsOrDefault returns stored settings, or unsaved defaults when none exist.
func (s *NumberService) GetSettingsOrDefault(ctx context.Context, tenantID, documentKey string) (*model.NumberSetting, error) {
	settings, err := s.repo.GetNumberSetting(ctx, nil, tenantID, documentKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.Defaults(tenantID, documentKey), nil
	}
	return settings, err
}

// SettingsPatch holds the editable fields; nil leaves a field unchanged.
type SettingsPatch struct {
	Prefix        *string
	PaddingLength *int
	IncludePeriod *bool
	PeriodFormat  *string
}

// UpdateSettings applies patch, creating the row from defaults if needed.
func (s *NumberService) UpdateSettings(ctx context.Context, tenantID, documentKey string, patch SettingsPatch) (*model.NumberSetting, error) {
	if patch.PaddingLength != nil && (*patch.PaddingLength < 1 || *patch.PaddingLength > maxPadding) {
		return nil, apperr.ErrInvalidNumberSettings
	}
	var out *model.NumberSetting
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		settings, err := s.repo.GetNumberSetting(ctx, tx, tenantID, documentKey)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			settings = s.Defaults(tenantID, documentKey)
		} else if err != nil {
			return err
		}
		if patch.Prefix != nil {
			settings.Prefix = *patch.Prefix
		}
		if patch.PaddingLength != nil {
			settings.PaddingLength = *patch.PaddingLength
		}
		if patch.IncludePeriod != nil {
			settings.IncludePeriod = *patch.IncludePeriod
		}
		if patch.PeriodFormat != nil {
			settings.PeriodFormat = *patch.PeriodFormat
		}
		if err := s.repo.SaveNumberSetting(ctx, tx, settings); err != nil {
			return err
		}
		out = settings
		return nil
	})
	return out, err
}

// FormatPeriod expands yyyy, MM and dd in format.
func FormatPeriod(t time.Time, format string) string {
	return strings.NewReplacer(
		"yyyy", fmt.Sprintf("%04d", t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"dd", fmt.Sprintf("%02d", t.Day()),
	).Replace(format)
}

// FormatNumber renders prefix[-period]-counter.
func FormatNumber(s *model.NumberSetting, period string) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	if s.IncludePeriod && period != "" {
		b.WriteString("-")
		b.WriteString(period)
	}
	b.WriteString("-")
	b.WriteString(fmt.Sprintf("%0*d", s.PaddingLength, s.CurrentCounter))
	return b.String()
}
