package doctype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_ApprovalSteps(t *testing.T) {
	r := Default()
	assert.Equal(t, 2, r.ApprovalSteps(PurchasingPO))
	assert.Equal(t, 1, r.ApprovalSteps(SalesInvoice))
	assert.Equal(t, 1, r.ApprovalSteps("unknown.type"))
}

func TestDefault_PostingHandlerFallback(t *testing.T) {
	r := Default()
	assert.Equal(t, DefaultPostingHandler, r.PostingHandler(SalesInvoice))
	assert.Equal(t, DefaultPostingHandler, r.PostingHandler("unknown.type"))
}

func TestNewRegistry_IsIsolatedFromCaller(t *testing.T) {
	defs := []Definition{{Key: "custom.doc", ApprovalSteps: 3, PostingHandler: "custom"}}
	r := NewRegistry(defs...)
	defs[0].ApprovalSteps = 9

	assert.True(t, r.IsValidKey("custom.doc"))
	assert.Equal(t, 3, r.ApprovalSteps("custom.doc"))
	assert.Equal(t, "custom", r.PostingHandler("custom.doc"))
}

func TestAll_SortedByKey(t *testing.T) {
	all := Default().All()
	assert.Len(t, all, 9)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key, all[i].Key)
	}
}

func TestNewRegistry_ApprovalStepsAtLeastOne(t *testing.T) {
	r := NewRegistry(
		Definition{Key: "zero.doc"},
		Definition{Key: "negative.doc", ApprovalSteps: -2},
	)
	assert.Equal(t, 1, r.ApprovalSteps("zero.doc"))
	assert.Equal(t, 1, r.ApprovalSteps("negative.doc"))

	d, ok := r.Get("zero.doc")
	assert.True(t, ok)
	assert.Equal(t, 1, d.ApprovalSteps)
}
