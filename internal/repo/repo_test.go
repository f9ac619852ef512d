package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInsertNumberSettingIfAbsent_KeepsExistingRow(t *testing.T) {
	db := testutil.OpenDB(t)
	r := NewRepository(db, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, db.Create(&model.NumberSetting{
		TenantID: "t1", DocumentKey: "sales.invoice", Prefix: "INV", PaddingLength: 6,
		IncludePeriod: true, PeriodFormat: "yyyy-MM", CurrentCounter: 7,
	}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return r.InsertNumberSettingIfAbsent(ctx, tx, &model.NumberSetting{
			TenantID: "t1", DocumentKey: "sales.invoice", Prefix: "OTHER", PaddingLength: 3, PeriodFormat: "yyyy",
		})
	})
	require.NoError(t, err)

	rows, err := r.ListNumberSettings(ctx, nil, "t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV", rows[0].Prefix)
	assert.Equal(t, int64(7), rows[0].CurrentCounter)
}

func TestNumberSettingLock_ConcurrentIncrements(t *testing.T) {
	db := testutil.OpenDB(t)
	r := NewRepository(db, logger.NewNop())
	require.NoError(t, db.Create(&model.NumberSetting{
		TenantID: "t1", DocumentKey: "sales.invoice", Prefix: "INV", PaddingLength: 6, PeriodFormat: "yyyy-MM",
	}).Error)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.Transaction(func(tx *gorm.DB) error {
				s, err := r.GetNumberSettingForUpdate(context.Background(), tx, "t1", "sales.invoice")
				if err != nil {
					return err
				}
				s.CurrentCounter++
				return r.SaveNumberSetting(context.Background(), tx, s)
			})
		}()
	}
	wg.Wait()

	got, err := r.GetNumberSetting(context.Background(), nil, "t1", "sales.invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.CurrentCounter, "every locked read-modify-write is kept")
}

func TestApprovals_BulkDecideAndDelete(t *testing.T) {
	db := testutil.OpenDB(t)
	r := NewRepository(db, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, r.CreateApprovalSteps(ctx, nil, []model.ApprovalStep{
		{DocumentID: "d1", Round: 1, StepIndex: 0, Status: model.ApprovalApproved, RequestedBy: "u"},
		{DocumentID: "d1", Round: 1, StepIndex: 1, Status: model.ApprovalPending, RequestedBy: "u"},
		{DocumentID: "d1", Round: 1, StepIndex: 2, Status: model.ApprovalPending, RequestedBy: "u"},
	}))

	first, err := r.FirstPendingApproval(ctx, nil, "d1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.StepIndex)

	n, err := r.CountPendingApprovals(ctx, nil, "d1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	notes := "no"
	affected, err := r.DecidePendingApprovals(ctx, nil, "d1", model.ApprovalRejected, "boss", time.Now(), &notes)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	_, err = r.FirstPendingApproval(ctx, nil, "d1", 1)
	assert.ErrorIs(t, err, apperr.ErrApprovalNotFound)

	require.NoError(t, r.CreateApprovalSteps(ctx, nil, []model.ApprovalStep{
		{DocumentID: "d1", Round: 2, StepIndex: 0, Status: model.ApprovalPending, RequestedBy: "u"},
	}))
	deleted, err := r.DeletePendingApprovals(ctx, nil, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	steps, err := r.ListApprovals(ctx, nil, "d1", 1)
	require.NoError(t, err)
	assert.Len(t, steps, 3, "decided steps are kept")
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	r := NewRepository(db, logger.NewNop())

	_, err := r.GetDocument(context.Background(), nil, "missing", "t1")
	assert.ErrorIs(t, err, apperr.ErrDocumentNotFound)
	_, err = r.GetApprovalStep(context.Background(), nil, "missing", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrApprovalNotFound)
}

func TestNumberSettingLock_PostgresBlocksSecondLocker(t *testing.T) {
	db := testutil.OpenPostgres(t)
	r := NewRepository(db, logger.NewNop())
	ctx := context.Background()
	tenant := uuid.NewString()
	require.NoError(t, db.Create(&model.NumberSetting{
		TenantID: tenant, DocumentKey: "sales.invoice", Prefix: "INV", PaddingLength: 6, PeriodFormat: "yyyy-MM",
	}).Error)

	tx1 := db.Begin()
	require.NoError(t, tx1.Error)
	held, err := r.GetNumberSettingForUpdate(ctx, tx1, tenant, "sales.invoice")
	require.NoError(t, err)

	seen := make(chan int64, 1)
	go func() {
		_ = db.Transaction(func(tx *gorm.DB) error {
			s, err := r.GetNumberSettingForUpdate(ctx, tx, tenant, "sales.invoice")
			if err != nil {
				return err
			}
			seen <- s.CurrentCounter
			return nil
		})
	}()

	select {
	case <-seen:
		t.Fatal("second locker read the row while it was held")
	case <-time.After(300 * time.Millisecond):
	}

	held.CurrentCounter++
	require.NoError(t, r.SaveNumberSetting(ctx, tx1, held))
	require.NoError(t, tx1.Commit().Error)

	select {
	case v := <-seen:
		assert.Equal(t, int64(1), v, "waiter sees the committed counter")
	case <-time.After(5 * time.Second):
		t.Fatal("second locker never acquired the row")
	}
}
