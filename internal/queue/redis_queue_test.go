package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobJSON(t *testing.T, j *Job) string {
	b, err := json.Marshal(j)
	require.NoError(t, err)
	return string(b)
}

const (
	keyJob    = "docq:doc-engine:job:outbox-e1-1"
	keyLease  = "docq:doc-engine:lease:outbox-e1-1"
	keyWait   = "docq:doc-engine:wait"
	keyActive = "docq:doc-engine:active"
)

func TestRedisQueue_AddDeduplicates(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions)
	ctx := context.Background()
	data := Payload{OutboxEventID: "e1", TenantID: "t1"}
	id := JobID("e1", 1)
	body := jobJSON(t, newJob(JobProcessOutbox, id, data, DefaultOptions))

	mock.ExpectEval(addScript, []string{keyJob, keyWait}, body, id).SetVal(int64(1))
	mock.ExpectEval(addScript, []string{keyJob, keyWait}, body, id).SetVal(int64(0))

	added, err := q.Add(ctx, JobProcessOutbox, id, data)
	assert.NoError(t, err)
	assert.True(t, added)

	added, err = q.Add(ctx, JobProcessOutbox, id, data)
	assert.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_AddFailureLeavesNothingBehind(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions)
	ctx := context.Background()
	data := Payload{OutboxEventID: "e1", TenantID: "t1"}
	id := JobID("e1", 1)
	body := jobJSON(t, newJob(JobProcessOutbox, id, data, DefaultOptions))

	// key write and push are one script; a failed call stores neither
	mock.ExpectEval(addScript, []string{keyJob, keyWait}, body, id).SetErr(errors.New("connection reset"))
	mock.ExpectEval(addScript, []string{keyJob, keyWait}, body, id).SetVal(int64(1))

	added, err := q.Add(ctx, JobProcessOutbox, id, data)
	assert.Error(t, err)
	assert.False(t, added)

	added, err = q.Add(ctx, JobProcessOutbox, id, data)
	assert.NoError(t, err)
	assert.True(t, added, "the next tick can enqueue the same id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_NextLeasesJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions).WithClock(func() time.Time { return now })
	job := newJob(JobProcessOutbox, "outbox-e1-1", Payload{OutboxEventID: "e1", TenantID: "t1"}, DefaultOptions)

	mock.ExpectZRangeByScore("docq:doc-engine:delayed", &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).SetVal(nil)
	mock.ExpectBRPopLPush(keyWait, keyActive, time.Second).SetVal("outbox-e1-1")
	mock.ExpectSet(keyLease, "1", DefaultLease).SetVal("OK")
	mock.ExpectGet(keyJob).SetVal(jobJSON(t, job))

	got, err := q.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e1", got.Data.OutboxEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_FailSchedulesRetry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions).WithClock(func() time.Time { return now })
	ctx := context.Background()

	job := newJob(JobProcessOutbox, "outbox-e1-1", Payload{OutboxEventID: "e1", TenantID: "t1"}, DefaultOptions)
	want := *job
	want.AttemptsMade = 1
	want.FailedReason = "boom"

	mock.ExpectSet(keyJob, jobJSON(t, &want), 0).SetVal("OK")
	mock.ExpectZAdd("docq:doc-engine:delayed", &redis.Z{
		Score:  float64(now.Add(5 * time.Second).UnixMilli()),
		Member: "outbox-e1-1",
	}).SetVal(1)
	mock.ExpectLRem(keyActive, 1, "outbox-e1-1").SetVal(1)
	mock.ExpectDel(keyLease).SetVal(1)

	retry, err := q.Fail(ctx, job, errors.New("boom"))
	assert.NoError(t, err)
	assert.True(t, retry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_FailRetainsExhaustedJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions)
	ctx := context.Background()

	job := newJob(JobProcessOutbox, "outbox-e1-1", Payload{OutboxEventID: "e1"}, DefaultOptions)
	job.AttemptsMade = 4
	want := *job
	want.AttemptsMade = 5
	want.FailedReason = "boom"

	mock.ExpectSet(keyJob, jobJSON(t, &want), 0).SetVal("OK")
	mock.ExpectSAdd("docq:doc-engine:failed", "outbox-e1-1").SetVal(1)
	mock.ExpectLRem(keyActive, 1, "outbox-e1-1").SetVal(1)
	mock.ExpectDel(keyLease).SetVal(1)

	retry, err := q.Fail(ctx, job, errors.New("boom"))
	assert.NoError(t, err)
	assert.False(t, retry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_CompleteRemovesJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions)

	mock.ExpectDel(keyJob).SetVal(1)
	mock.ExpectLRem(keyActive, 1, "outbox-e1-1").SetVal(1)
	mock.ExpectDel(keyLease).SetVal(1)

	assert.NoError(t, q.Complete(context.Background(), &Job{ID: "outbox-e1-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_RecoverRequeuesUnleasedJobs(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewRedisQueue(rdb, DocEngine, DefaultOptions)

	mock.ExpectLRange(keyActive, 0, -1).SetVal([]string{"outbox-e1-1", "outbox-e2-1"})
	mock.ExpectExists(keyLease).SetVal(0)
	mock.ExpectLRem(keyActive, 1, "outbox-e1-1").SetVal(1)
	mock.ExpectLPush(keyWait, "outbox-e1-1").SetVal(1)
	mock.ExpectExists("docq:doc-engine:lease:outbox-e2-1").SetVal(1)

	n, err := q.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the job whose worker lost its lease is requeued")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryDelay(5*time.Second, 1))
	assert.Equal(t, 10*time.Second, RetryDelay(5*time.Second, 2))
	assert.Equal(t, 40*time.Second, RetryDelay(5*time.Second, 4))
}

func TestJobID(t *testing.T) {
	assert.Equal(t, "outbox-abc-3", JobID("abc", 3))
}
