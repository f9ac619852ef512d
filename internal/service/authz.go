package service

import (
	"context"
	"fmt"
)

// Decision identifies the approval step an actor wants to decide.
type Decision struct {
	TenantID    string
	ActorID     string
	DocumentKey string
	StepIndex   int
}

// Authorizer gates approval decisions. Implementations live outside the engine.
type Authorizer interface {
	CanDecide(ctx context.Context, d Decision) (bool, error)
}

// AllowAll permits every decision.
type AllowAll struct{}

func (AllowAll) CanDecide(context.Context, Decision) (bool, error) { return true, nil }

// RoleLookup resolves an actor's roles inside a tenant.
type RoleLookup interface {
	Roles(ctx context.Context, tenantID, actorID string) (roles []string, superAdmin bool, err error)
}

// RoleAuthorizer allows a decision when the actor holds one of the roles
// configured for the document type and step. Unconfigured steps are open.
type RoleAuthorizer struct {
	lookup RoleLookup
	roles  map[string]map[int][]string
}

// NewRoleAuthorizer takes documentKey -> stepIndex -> allowed roles.
func NewRoleAuthorizer(lookup RoleLookup, roles map[string]map[int][]string) *RoleAuthorizer {
	return &RoleAuthorizer{lookup: lookup, roles: roles}
}

func (a *RoleAuthorizer) CanDecide(ctx context.Context, d Decision) (bool, error) {
	allowed, ok := a.roles[d.DocumentKey][d.StepIndex]
	if !ok || len(allowed) == 0 {
		return true, nil
	}
	held, super, err := a.lookup.Roles(ctx, d.TenantID, d.ActorID)
	if err != nil {
		return false, fmt.Errorf("lookup roles: %w", err)
	}
	if super {
		return true, nil
	}
	for _, h := range held {
		for _, r := range allowed {
			if h == r {
				return true, nil
			}
		}
	}
	return false, nil
}
