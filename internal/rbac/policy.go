package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Policy is a static role to permission table implementing shared.Authorizer.
type Policy struct {
	grants map[string]map[shared.Permission]struct{}
}

// NewPolicy builds a Policy from role grants. Role names are case-insensitive.
func NewPolicy(grants map[string][]shared.Permission) *Policy {
	p := &Policy{grants: make(map[string]map[shared.Permission]struct{}, len(grants))}
	for role, perms := range grants {
		set := make(map[shared.Permission]struct{}, len(perms))
		for _, perm := range perms {
			set[normalizePermission(perm)] = struct{}{}
		}
		p.grants[normalizeRole(role)] = set
	}
	return p
}

// NewDefaultPolicy returns the built-in policy.
func NewDefaultPolicy() *Policy {
	return NewPolicy(DefaultGrants())
}

// Authorize implements shared.Authorizer.
func (p *Policy) Authorize(_ context.Context, actor shared.Actor, perm shared.Permission) error {
	if p.Allows(actor.Role, perm) {
		return nil
	}
	return shared.Forbidden("no tiene permiso para realizar esta operación")
}

// Allows reports whether role holds perm.
func (p *Policy) Allows(role string, perm shared.Permission) bool {
	if p == nil {
		return false
	}
	set, ok := p.grants[normalizeRole(role)]
	if !ok {
		return false
	}
	_, ok = set[normalizePermission(perm)]
	return ok
}

// EffectivePermissions lists the permissions granted to role, sorted.
func (p *Policy) EffectivePermissions(role string) []shared.Permission {
	if p == nil {
		return nil
	}
	set := p.grants[normalizeRole(role)]
	out := make([]shared.Permission, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalizeRole(role string) string {
	return strings.TrimSpace(strings.ToLower(role))
}

func normalizePermission(perm shared.Permission) shared.Permission {
	return shared.Permission(strings.TrimSpace(strings.ToLower(string(perm))))
}
