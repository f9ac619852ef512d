package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransition(t *testing.T) {
	Init()
	Init()
	before := testutil.ToFloat64(DocumentTransitions.WithLabelValues("sales.invoice", "DRAFT", "SUBMITTED"))
	RecordTransition("sales.invoice", "DRAFT", "SUBMITTED")
	after := testutil.ToFloat64(DocumentTransitions.WithLabelValues("sales.invoice", "DRAFT", "SUBMITTED"))
	assert.Equal(t, before+1, after)
}

func TestRecordProcessedAndPoll(t *testing.T) {
	RecordProcessed("document.posted", "done")
	assert.Equal(t, float64(1), testutil.ToFloat64(OutboxProcessed.WithLabelValues("document.posted", "done")))

	TrackPoll()(time.Now())
	RecordHTTP("GET", "/health", "200", time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
}
