package service

import (
	"context"
	"errors"
	"testing"

	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/stretchr/testify/assert"
)

type staticRoles struct {
	roles map[string][]string
	super map[string]bool
	err   error
}

func (s staticRoles) Roles(_ context.Context, _, actorID string) ([]string, bool, error) {
	return s.roles[actorID], s.super[actorID], s.err
}

func TestRoleAuthorizer(t *testing.T) {
	lookup := staticRoles{
		roles: map[string][]string{"alice": {"finance_manager"}, "bob": {"cashier"}},
		super: map[string]bool{"root": true},
	}
	a := NewRoleAuthorizer(lookup, map[string]map[int][]string{
		doctype.PurchasingPO: {1: {"finance_manager"}},
	})
	ctx := context.Background()
	d := Decision{TenantID: tenant, DocumentKey: doctype.PurchasingPO, StepIndex: 1}

	cases := []struct {
		actor string
		step  int
		want  bool
	}{
		{"alice", 1, true},
		{"bob", 1, false},
		{"root", 1, true},
		{"bob", 0, true},
	}
	for _, c := range cases {
		d.ActorID, d.StepIndex = c.actor, c.step
		ok, err := a.CanDecide(ctx, d)
		assert.NoError(t, err)
		assert.Equal(t, c.want, ok, "%s step %d", c.actor, c.step)
	}
}

func TestRoleAuthorizer_LookupError(t *testing.T) {
	boom := errors.New("identity service down")
	a := NewRoleAuthorizer(staticRoles{err: boom}, map[string]map[int][]string{
		doctype.SalesInvoice: {0: {"sales_manager"}},
	})
	_, err := a.CanDecide(context.Background(), Decision{DocumentKey: doctype.SalesInvoice})
	assert.ErrorIs(t, err, boom)
}
