// Package outbox stores document events transactionally and delivers them
// at least once through a poller, a job queue and a worker pool.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxBackoffExponent caps 2^attempts minutes at roughly two years.
const maxBackoffExponent = 20

// CreateParams describes an event to append.
type CreateParams struct {
	TenantID   string
	DocumentID string
	EventKey   string
	ActorID    string
}

// Service is the append-only event ledger.
type Service struct {
	repo        repo.RepositoryInterface
	clock       func() time.Time
	maxAttempts int
	log         *zap.SugaredLogger
}

// NewService returns Service. maxAttempts <= 0 retries forever.
func NewService(r repo.RepositoryInterface, maxAttempts int, logger *zap.SugaredLogger) *Service {
	return &Service{repo: r, clock: time.Now, maxAttempts: maxAttempts, log: logger}
}

// WithClock replaces the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// NextVersion returns max(version)+1 for the pair, starting at 1.
func (s *Service) NextVersion(ctx context.Context, tx *gorm.DB, documentID, eventKey string) (int, error) {
	v, err := s.repo.MaxOutboxVersion(ctx, tx, documentID, eventKey)
	if err != nil {
		return 0, err
	}
	return v + 1, nil
}

// Create inserts a PENDING event inside the caller's transaction.
func (s *Service) Create(ctx context.Context, tx *gorm.DB, p CreateParams) (*model.OutboxEvent, error) {
	version, err := s.NextVersion(ctx, tx, p.DocumentID, p.EventKey)
	if err != nil {
		return nil, err
	}
	evt := &model.OutboxEvent{
		ID:           uuid.NewString(),
		TenantID:     p.TenantID,
		DocumentID:   p.DocumentID,
		EventKey:     p.EventKey,
		EventVersion: version,
		Status:       model.OutboxPending,
		Attempts:     0,
		CreatedBy:    p.ActorID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
		return nil, err
	}
	return evt, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.OutboxEvent, error) {
	return s.repo.GetOutboxEvent(ctx, nil, id)
}

// MarkProcessing sets PROCESSING and increments attempts atomically.
func (s *Service) MarkProcessing(ctx context.Context, id string) error {
	n, err := s.repo.MarkOutboxProcessing(ctx, nil, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrOutboxNotFound
	}
	return nil
}

func (s *Service) MarkDone(ctx context.Context, id string) error {
	n, err := s.repo.UpdateOutboxEvent(ctx, nil, id, map[string]interface{}{
		"status":          model.OutboxDone,
		"next_attempt_at": nil,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrOutboxNotFound
	}
	return nil
}

// MarkFailed records the error and schedules a retry 2^attempts minutes out.
// With a max attempt count configured, an exhausted event goes DEAD instead.
func (s *Service) MarkFailed(ctx context.Context, id, cause string) error {
	evt, err := s.repo.GetOutboxEvent(ctx, nil, id)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"last_error": cause}
	if s.maxAttempts > 0 && evt.Attempts >= s.maxAttempts {
		fields["status"] = model.OutboxDead
		fields["next_attempt_at"] = nil
		s.log.Warnw("outbox event exhausted", "event_id", id, "attempts", evt.Attempts)
	} else {
		fields["status"] = model.OutboxFailed
		fields["next_attempt_at"] = s.now().Add(Backoff(evt.Attempts))
	}
	_, err = s.repo.UpdateOutboxEvent(ctx, nil, id, fields)
	return err
}

// ListPending returns PENDING events and FAILED events that are due, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	return s.repo.PollOutbox(ctx, nil, s.now(), limit)
}

// Backoff is 2^attempts minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > maxBackoffExponent {
		attempts = maxBackoffExponent
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}
