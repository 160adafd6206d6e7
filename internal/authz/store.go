package authz

import "context"

// Store describes persistence operations required by the engine. Readers
// observe either pre- or post-mutation state, never a partial write.
type Store interface {
	Users(ctx context.Context) UserStore
	Memberships(ctx context.Context) MembershipStore
	Assignments(ctx context.Context) AssignmentStore
	Grants(ctx context.Context) GrantStore
	Versions(ctx context.Context) VersionStore
}

// UserStore mirrors identity snapshots.
type UserStore interface {
	Upsert(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
}

// MembershipStore mirrors the organizational directory feed.
type MembershipStore interface {
	Upsert(ctx context.Context, m *Membership) error
	Deactivate(ctx context.Context, userID string, layer Layer, resourceID string) error
	ListByUser(ctx context.Context, userID string) ([]Membership, error)
}

// AssignmentStore manages explicit time-boxed role grants. Assignments are
// deactivated, never physically deleted.
type AssignmentStore interface {
	Create(ctx context.Context, a *Assignment) error
	Find(ctx context.Context, id string) (*Assignment, error)
	Deactivate(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]Assignment, error)
}

// GrantStore persists the role grant table.
type GrantStore interface {
	Put(ctx context.Context, g RoleGrant) error
	Delete(ctx context.Context, layer Layer, role, permission string) error
	Lookup(ctx context.Context, layer Layer, role string) ([]RoleGrant, error)
	List(ctx context.Context) ([]RoleGrant, error)
}

// VersionStore holds the invalidation counters. In a horizontally scaled
// deployment the counters live in shared storage so a grant edit on one node
// is visible to resolvers on all nodes.
type VersionStore interface {
	UserVersion(ctx context.Context, userID string) (uint64, error)
	BumpUser(ctx context.Context, userID string) (uint64, error)
	GrantVersion(ctx context.Context) (uint64, error)
	BumpGrant(ctx context.Context) (uint64, error)
}
