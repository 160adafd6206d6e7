// Package memory implements the authorization store in process memory with
// snapshot read semantics. It backs tests and DSN-less development runs;
// production deployments use the PostgreSQL store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"planhub.org/internal/authz"
)

type grantKey struct {
	layer      authz.Layer
	role       string
	permission string
}

type membershipKey struct {
	userID     string
	layer      authz.Layer
	resourceID string
}

// Store holds all engine state behind one RWMutex. Readers copy out, so a
// concurrent mutation is observed either fully or not at all.
type Store struct {
	mu           sync.RWMutex
	users        map[string]authz.User
	memberships  map[membershipKey]authz.Membership
	assignments  map[string]authz.Assignment
	grants       map[grantKey]authz.RoleGrant
	userVersions map[string]uint64
	grantVersion uint64
}

var _ authz.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]authz.User),
		memberships:  make(map[membershipKey]authz.Membership),
		assignments:  make(map[string]authz.Assignment),
		grants:       make(map[grantKey]authz.RoleGrant),
		userVersions: make(map[string]uint64),
	}
}

func (s *Store) Users(context.Context) authz.UserStore             { return (*userStore)(s) }
func (s *Store) Memberships(context.Context) authz.MembershipStore { return (*membershipStore)(s) }
func (s *Store) Assignments(context.Context) authz.AssignmentStore { return (*assignmentStore)(s) }
func (s *Store) Grants(context.Context) authz.GrantStore           { return (*grantStore)(s) }
func (s *Store) Versions(context.Context) authz.VersionStore       { return (*versionStore)(s) }

// User store ---------------------------------------------------------------

type userStore Store

func (s *userStore) Upsert(ctx context.Context, u *authz.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	stored, ok := s.users[u.ID]
	if !ok {
		u.CreatedAt = now
	} else {
		u.CreatedAt = stored.CreatedAt
	}
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*authz.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, authz.ErrNotFound
	}
	out := u
	return &out, nil
}

// Membership store ----------------------------------------------------------

type membershipStore Store

func (s *membershipStore) Upsert(ctx context.Context, m *authz.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{userID: m.UserID, layer: m.Layer, resourceID: m.ResourceID}
	now := time.Now().UTC()
	stored, ok := s.memberships[key]
	if !ok {
		m.CreatedAt = now
	} else {
		m.CreatedAt = stored.CreatedAt
	}
	m.UpdatedAt = now
	s.memberships[key] = *m
	return nil
}

func (s *membershipStore) Deactivate(ctx context.Context, userID string, layer authz.Layer, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{userID: userID, layer: layer, resourceID: resourceID}
	m, ok := s.memberships[key]
	if !ok {
		return fmt.Errorf("%w: membership %s/%s/%s", authz.ErrNotFound, userID, layer, resourceID)
	}
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
	s.memberships[key] = m
	return nil
}

func (s *membershipStore) ListByUser(ctx context.Context, userID string) ([]authz.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []authz.Membership
	for key, m := range s.memberships {
		if key.userID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Assignment store ----------------------------------------------------------

type assignmentStore Store

func (s *assignmentStore) Create(ctx context.Context, a *authz.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; ok {
		return fmt.Errorf("%w: assignment %s", authz.ErrConflict, a.ID)
	}
	s.assignments[a.ID] = *a
	return nil
}

func (s *assignmentStore) Find(ctx context.Context, id string) (*authz.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("%w: assignment %s", authz.ErrNotFound, id)
	}
	out := a
	return &out, nil
}

func (s *assignmentStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return fmt.Errorf("%w: assignment %s", authz.ErrNotFound, id)
	}
	a.IsActive = false
	s.assignments[id] = a
	return nil
}

func (s *assignmentStore) ListByUser(ctx context.Context, userID string) ([]authz.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []authz.Assignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Grant store ---------------------------------------------------------------

type grantStore Store

func (s *grantStore) Put(ctx context.Context, g authz.RoleGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{layer: g.Layer, role: g.Role, permission: g.Permission}] = g
	return nil
}

func (s *grantStore) Delete(ctx context.Context, layer authz.Layer, role, permission string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{layer: layer, role: role, permission: permission}
	if _, ok := s.grants[key]; !ok {
		return fmt.Errorf("%w: grant %s/%s/%s", authz.ErrNotFound, layer, role, permission)
	}
	delete(s.grants, key)
	return nil
}

func (s *grantStore) Lookup(ctx context.Context, layer authz.Layer, role string) ([]authz.RoleGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []authz.RoleGrant
	for key, g := range s.grants {
		if key.layer == layer && key.role == role {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *grantStore) List(ctx context.Context) ([]authz.RoleGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]authz.RoleGrant, 0, len(s.grants))
	for _, g := range s.grants {
		out = append(out, g)
	}
	return out, nil
}

// Version store -------------------------------------------------------------

type versionStore Store

func (s *versionStore) UserVersion(ctx context.Context, userID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userVersions[userID], nil
}

func (s *versionStore) BumpUser(ctx context.Context, userID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userVersions[userID]++
	return s.userVersions[userID], nil
}

func (s *versionStore) GrantVersion(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grantVersion, nil
}

func (s *versionStore) BumpGrant(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantVersion++
	return s.grantVersion, nil
}
