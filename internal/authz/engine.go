package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"planhub.org/internal/events"
	"planhub.org/internal/ids"
	"planhub.org/internal/obs"
)

// Publisher receives change events for every administrative mutation.
type Publisher interface {
	Publish(evt events.Event)
}

// Engine is the boundary the workflow code consumes: permission checks on
// the read side, the administrative mutation surface on the write side.
type Engine struct {
	store     Store
	registry  *Registry
	resolver  *Resolver
	cache     *Cache
	publisher Publisher

	now              func() time.Time
	recomputeTimeout time.Duration
}

// Option configures Engine behavior.
type Option func(*Engine) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) error {
		if fn != nil {
			e.now = fn
		}
		return nil
	}
}

// WithRecomputeTimeout bounds the coarse-set recompute path.
func WithRecomputeTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d > 0 {
			e.recomputeTimeout = d
		}
		return nil
	}
}

// WithPublisher wires the change-event sink.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) error {
		e.publisher = p
		return nil
	}
}

// NewEngine constructs the engine over a store.
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("authz: store is required")
	}
	e := &Engine{
		store:            store,
		registry:         NewRegistry(),
		now:              time.Now,
		recomputeTimeout: defaultRecomputeTimeout,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.resolver = NewResolver(store, e.registry, e.now)
	e.cache = NewCache(store, e.resolver, e.recomputeTimeout)
	return e, nil
}

// Registry exposes the permission catalog.
func (e *Engine) Registry() *Registry { return e.registry }

// EnsureBuiltins registers the builtin permission catalog and seeds the
// default role grant table when it is empty.
func (e *Engine) EnsureBuiltins(ctx context.Context) error {
	for _, p := range BuiltinPermissions {
		if err := e.registry.Register(p.Code, p.Category); err != nil {
			if errors.Is(err, ErrDuplicatePermission) {
				continue
			}
			return err
		}
	}
	grants := e.store.Grants(ctx)
	existing, err := grants.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, g := range DefaultGrants {
		if err := grants.Put(ctx, g); err != nil {
			return err
		}
	}
	_, err = e.store.Versions(ctx).BumpGrant(ctx)
	return err
}

// RegisterPermission adds a code to the closed catalog.
func (e *Engine) RegisterPermission(code, category string) error {
	return e.registry.Register(code, category)
}

// Permissions lists the catalog.
func (e *Engine) Permissions() []Permission { return e.registry.List() }

// Resolve runs the full resolution algorithm.
func (e *Engine) Resolve(ctx context.Context, userID, code string, rctx *RequestContext) (Decision, error) {
	start := e.now()
	d, err := e.resolver.Resolve(ctx, userID, code, rctx)
	if err == nil {
		obs.AuthzDecision(string(d.Effect))
		obs.ObserveResolve(time.Since(start))
	}
	return d, err
}

// HasPermission reports whether the permission is reachable for the user in
// the given context. When the context carries a concrete resource the result
// is the evaluated conditional decision; otherwise a conditional grant counts
// as reachable and the caller must re-check with CheckWithResource before
// acting on a specific resource.
func (e *Engine) HasPermission(ctx context.Context, userID, code string, rctx *RequestContext) (bool, error) {
	d, err := e.Resolve(ctx, userID, code, rctx)
	if err != nil {
		return false, err
	}
	return d.Reachable(), nil
}

// HasAnyPermission checks the cached coarse set for at least one code.
func (e *Engine) HasAnyPermission(ctx context.Context, userID string, codes ...string) (bool, error) {
	set, err := e.cache.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if set.Reachable(code) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions checks the cached coarse set for every code.
func (e *Engine) HasAllPermissions(ctx context.Context, userID string, codes ...string) (bool, error) {
	set, err := e.cache.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if !set.Reachable(code) {
			return false, nil
		}
	}
	return true, nil
}

// CheckWithResource forces the resource-aware conditional path. The result
// is never cached.
func (e *Engine) CheckWithResource(ctx context.Context, userID, code string, res Resource, fields ...string) (bool, error) {
	d, err := e.Resolve(ctx, userID, code, &RequestContext{Resource: res, Fields: fields})
	if err != nil {
		return false, err
	}
	return d.Allowed(), nil
}

// EffectivePermissions returns the cached coarse set as a sorted slice.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	set, err := e.cache.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate evicts the user's cached coarse set.
func (e *Engine) Invalidate(userID string) {
	e.cache.Invalidate(userID)
}

// SyncUser mirrors an identity record into the store. The identity provider
// is the source of truth; the engine only reads the snapshot.
func (e *Engine) SyncUser(ctx context.Context, u User) error {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if u.SystemRole != "" && !ValidRole(LayerSystem, u.SystemRole) {
		return fmt.Errorf("%w: system role %q", ErrUnknownRole, u.SystemRole)
	}
	return e.store.Users(ctx).Upsert(ctx, &u)
}

// AssignmentParams carries the administrative input for AssignRole.
type AssignmentParams struct {
	UserID       string
	Layer        Layer
	Role         string
	ResourceType string
	ResourceID   string
	AssignedBy   string
	ValidFrom    time.Time
	ValidUntil   *time.Time
	Notes        string
}

// AssignRole creates a time-boxed role grant, bumps the user's version and
// emits a change event. The write is atomic with respect to readers.
func (e *Engine) AssignRole(ctx context.Context, p AssignmentParams) (*Assignment, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !ValidRole(p.Layer, p.Role) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownRole, p.Layer, p.Role)
	}
	if p.Layer == LayerSystem && p.ResourceID != "" {
		return nil, fmt.Errorf("%w: system assignments take no resource scope", ErrValidation)
	}
	now := e.now().UTC()
	if p.ValidFrom.IsZero() {
		p.ValidFrom = now
	}
	if p.ValidUntil != nil && p.ValidUntil.Before(p.ValidFrom) {
		return nil, fmt.Errorf("%w: valid_until precedes valid_from", ErrValidation)
	}

	a := &Assignment{
		ID:           ids.New(),
		UserID:       p.UserID,
		Layer:        p.Layer,
		Role:         p.Role,
		ResourceType: p.ResourceType,
		ResourceID:   p.ResourceID,
		AssignedBy:   p.AssignedBy,
		ValidFrom:    p.ValidFrom,
		ValidUntil:   p.ValidUntil,
		IsActive:     true,
		Notes:        p.Notes,
		CreatedAt:    now,
	}
	if err := e.store.Assignments(ctx).Create(ctx, a); err != nil {
		return nil, err
	}
	if _, err := e.store.Versions(ctx).BumpUser(ctx, a.UserID); err != nil {
		return nil, err
	}
	e.cache.Invalidate(a.UserID)
	e.publish(events.Event{
		Type:       events.TypeAssignmentCreated,
		UserID:     a.UserID,
		Layer:      string(a.Layer),
		Role:       a.Role,
		ResourceID: a.ResourceID,
		ActorID:    a.AssignedBy,
	})
	return a, nil
}

// RevokeAssignment deactivates an assignment; the record stays for audit
// continuity.
func (e *Engine) RevokeAssignment(ctx context.Context, assignmentID, actorID string) error {
	assignments := e.store.Assignments(ctx)
	a, err := assignments.Find(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := assignments.Deactivate(ctx, a.ID); err != nil {
		return err
	}
	if _, err := e.store.Versions(ctx).BumpUser(ctx, a.UserID); err != nil {
		return err
	}
	e.cache.Invalidate(a.UserID)
	e.publish(events.Event{
		Type:       events.TypeAssignmentRevoked,
		UserID:     a.UserID,
		Layer:      string(a.Layer),
		Role:       a.Role,
		ResourceID: a.ResourceID,
		ActorID:    actorID,
	})
	return nil
}

// GrantPermission maps (layer, role) to a permission code. Changing what a
// role means invalidates every user holding it, which the global grant-table
// version bump expresses.
func (e *Engine) GrantPermission(ctx context.Context, layer Layer, role, code string, cond Condition, actorID string) error {
	if !e.registry.Has(code) {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, code)
	}
	if !ValidRole(layer, role) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownRole, layer, role)
	}
	if err := e.store.Grants(ctx).Put(ctx, RoleGrant{Layer: layer, Role: role, Permission: code, Condition: cond}); err != nil {
		return err
	}
	if _, err := e.store.Versions(ctx).BumpGrant(ctx); err != nil {
		return err
	}
	e.publish(events.Event{
		Type:       events.TypeGrantAdded,
		Layer:      string(layer),
		Role:       role,
		Permission: code,
		ActorID:    actorID,
	})
	return nil
}

// RevokePermission removes a (layer, role, code) mapping.
func (e *Engine) RevokePermission(ctx context.Context, layer Layer, role, code, actorID string) error {
	if !ValidRole(layer, role) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownRole, layer, role)
	}
	if err := e.store.Grants(ctx).Delete(ctx, layer, role, code); err != nil {
		return err
	}
	if _, err := e.store.Versions(ctx).BumpGrant(ctx); err != nil {
		return err
	}
	e.publish(events.Event{
		Type:       events.TypeGrantRemoved,
		Layer:      string(layer),
		Role:       role,
		Permission: code,
		ActorID:    actorID,
	})
	return nil
}

// SyncMembership mirrors one organizational-directory fact. The engine does
// not create organizational structure; it ingests the external feed.
func (e *Engine) SyncMembership(ctx context.Context, m Membership) error {
	m.UserID = strings.TrimSpace(m.UserID)
	if m.UserID == "" || m.ResourceID == "" {
		return fmt.Errorf("%w: user id and resource id are required", ErrValidation)
	}
	if m.Layer != LayerDivision && m.Layer != LayerTeam {
		return fmt.Errorf("%w: memberships exist at division or team layer", ErrValidation)
	}
	if !ValidRole(m.Layer, m.Role) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownRole, m.Layer, m.Role)
	}
	if err := e.store.Memberships(ctx).Upsert(ctx, &m); err != nil {
		return err
	}
	if _, err := e.store.Versions(ctx).BumpUser(ctx, m.UserID); err != nil {
		return err
	}
	e.cache.Invalidate(m.UserID)
	e.publish(events.Event{
		Type:       events.TypeMembershipSynced,
		UserID:     m.UserID,
		Layer:      string(m.Layer),
		Role:       m.Role,
		ResourceID: m.ResourceID,
	})
	return nil
}

// DeactivateMembership marks the membership inactive (logical delete).
func (e *Engine) DeactivateMembership(ctx context.Context, userID string, layer Layer, resourceID string) error {
	if err := e.store.Memberships(ctx).Deactivate(ctx, userID, layer, resourceID); err != nil {
		return err
	}
	if _, err := e.store.Versions(ctx).BumpUser(ctx, userID); err != nil {
		return err
	}
	e.cache.Invalidate(userID)
	e.publish(events.Event{
		Type:       events.TypeMembershipDeactived,
		UserID:     userID,
		Layer:      string(layer),
		ResourceID: resourceID,
	})
	return nil
}

func (e *Engine) publish(evt events.Event) {
	if e.publisher == nil {
		return
	}
	evt.Timestamp = e.now().UTC()
	e.publisher.Publish(evt)
}
