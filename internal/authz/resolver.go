package authz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver gathers a user's applicable role grants and produces a Decision.
// It never returns an error for a normal denial; ErrUnknownUser is raised
// only when the identity itself cannot be found.
type Resolver struct {
	store    Store
	registry *Registry
	now      func() time.Time
}

// NewResolver wires a resolver over a store and a permission catalog.
func NewResolver(store Store, registry *Registry, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, registry: registry, now: now}
}

// Resolve implements the layered resolution algorithm:
//
//  1. super_admin short-circuits to allow.
//  2. admin allows everything outside the fixed exclusion list.
//  3. Gather candidate (layer, role) pairs from the system role and every
//     currently-valid membership/assignment matching the request context.
//  4. Any unconditional grant for the code wins immediately.
//  5. No grant at all fails closed.
//  6. Conditional grants evaluate against the supplied resource, or surface
//     as allow_if when the check is coarse.
func (r *Resolver) Resolve(ctx context.Context, userID, code string, rctx *RequestContext) (Decision, error) {
	user, err := r.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
		return Decision{}, err
	}

	if user.SystemRole == SystemRoleSuperAdmin {
		return Decision{Effect: EffectAllow}, nil
	}
	if user.SystemRole == SystemRoleAdmin && !AdminExcluded(code) {
		return Decision{Effect: EffectAllow}, nil
	}

	candidates, err := r.candidateRoles(ctx, user, rctx)
	if err != nil {
		return Decision{}, err
	}

	grants := r.store.Grants(ctx)
	var conds []Condition
	for _, ref := range candidates {
		list, err := grants.Lookup(ctx, ref.layer, ref.role)
		if err != nil {
			return Decision{}, err
		}
		for _, g := range list {
			if g.Permission != code {
				continue
			}
			if g.Condition == nil {
				// Most-permissive-wins: an unconditional grant from any
				// candidate is never weakened by a conditional one.
				return Decision{Effect: EffectAllow}, nil
			}
			conds = append(conds, g.Condition)
		}
	}

	if len(conds) == 0 {
		return Decision{Effect: EffectDeny}, nil
	}
	if rctx == nil || (rctx.Resource == nil && len(rctx.Fields) == 0) {
		return Decision{Effect: EffectAllowIf, Conditions: conds}, nil
	}
	for _, cond := range conds {
		if satisfied(cond, userID, rctx.Resource, rctx.Fields) {
			return Decision{Effect: EffectAllow}, nil
		}
	}
	return Decision{Effect: EffectDeny}, nil
}

// candidateRoles builds the deduplicated (layer, role) set applicable to the
// request context. A grant is filtered out only when the context names a
// scope for its layer and the resource ids differ; a context silent on a
// layer leaves that layer's grants in play.
func (r *Resolver) candidateRoles(ctx context.Context, user *User, rctx *RequestContext) ([]roleRef, error) {
	now := r.now()
	seen := make(map[roleRef]struct{})
	var refs []roleRef
	add := func(layer Layer, role string) {
		ref := roleRef{layer: layer, role: role}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	if user.SystemRole != "" {
		add(LayerSystem, user.SystemRole)
	}

	memberships, err := r.store.Memberships(ctx).ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if !m.ContributesAt(now) {
			continue
		}
		if scope := rctx.scopeFor(m.Layer); scope != "" && scope != m.ResourceID {
			continue
		}
		add(m.Layer, m.Role)
	}

	assignments, err := r.store.Assignments(ctx).ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if !a.ContributesAt(now) {
			continue
		}
		if a.ResourceID != "" {
			if scope := rctx.scopeFor(a.Layer); scope != "" && scope != a.ResourceID {
				continue
			}
		}
		add(a.Layer, a.Role)
	}
	return refs, nil
}

// PermissionSet is the coarse, context-free effective set. The value is true
// when the code is granted unconditionally, false when it is reachable only
// through a condition.
type PermissionSet map[string]bool

// Reachable reports whether the code appears in the set at all.
func (s PermissionSet) Reachable(code string) bool {
	_, ok := s[code]
	return ok
}

// EffectiveSet walks the user's candidate roles once and unions their
// grant-table lookups. This is the recompute path behind the cache.
func (r *Resolver) EffectiveSet(ctx context.Context, userID string) (PermissionSet, error) {
	user, err := r.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
		return nil, err
	}

	set := make(PermissionSet)
	switch user.SystemRole {
	case SystemRoleSuperAdmin:
		for code := range r.registry.Codes() {
			set[code] = true
		}
		return set, nil
	case SystemRoleAdmin:
		for code := range r.registry.Codes() {
			if !AdminExcluded(code) {
				set[code] = true
			}
		}
	}

	candidates, err := r.candidateRoles(ctx, user, nil)
	if err != nil {
		return nil, err
	}
	grants := r.store.Grants(ctx)
	for _, ref := range candidates {
		list, err := grants.Lookup(ctx, ref.layer, ref.role)
		if err != nil {
			return nil, err
		}
		for _, g := range list {
			if g.Condition == nil {
				set[g.Permission] = true
			} else if !set[g.Permission] {
				set[g.Permission] = false
			}
		}
	}
	return set, nil
}
