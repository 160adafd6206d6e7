package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"planhub.org/internal/authz"
)

func TestUserUpsertKeepsCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()
	users := s.Users(ctx)

	u := authz.User{ID: "u1", SystemRole: "admin"}
	if err := users.Upsert(ctx, &u); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	created := u.CreatedAt

	u2 := authz.User{ID: "u1", SystemRole: ""}
	if err := users.Upsert(ctx, &u2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !u2.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed on upsert")
	}

	got, err := users.Find(ctx, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.SystemRole != "" {
		t.Fatalf("upsert did not replace system role, got %q", got.SystemRole)
	}
	if _, err := users.Find(ctx, "missing"); !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestFindReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	users := s.Users(ctx)
	if err := users.Upsert(ctx, &authz.User{ID: "u1", SystemRole: "admin"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := users.Find(ctx, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got.SystemRole = "mutated"

	again, err := users.Find(ctx, "u1")
	if err != nil {
		t.Fatalf("second find: %v", err)
	}
	if again.SystemRole != "admin" {
		t.Fatalf("caller mutation leaked into the store: %q", again.SystemRole)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	memberships := s.Memberships(ctx)

	m := authz.Membership{UserID: "u1", Layer: authz.LayerTeam, ResourceID: "team-a", Role: "member", IsActive: true}
	if err := memberships.Upsert(ctx, &m); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := memberships.Deactivate(ctx, "u1", authz.LayerTeam, "team-a"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err := memberships.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].IsActive {
		t.Fatalf("deactivation is logical, record should remain inactive: %+v", list)
	}
	err = memberships.Deactivate(ctx, "u1", authz.LayerTeam, "team-missing")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("missing membership: got %v, want ErrNotFound", err)
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	assignments := s.Assignments(ctx)

	a := authz.Assignment{ID: "a1", UserID: "u1", Layer: authz.LayerProject, Role: "developer",
		ValidFrom: time.Now().UTC(), IsActive: true}
	if err := assignments.Create(ctx, &a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := assignments.Create(ctx, &a); !errors.Is(err, authz.ErrConflict) {
		t.Fatalf("duplicate id: got %v, want ErrConflict", err)
	}
	if err := assignments.Deactivate(ctx, "a1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := assignments.Find(ctx, "a1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.IsActive {
		t.Fatalf("assignment should be inactive after deactivation")
	}
	if _, err := assignments.Find(ctx, "missing"); !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("missing assignment: got %v, want ErrNotFound", err)
	}
}

func TestGrantPutReplacesCondition(t *testing.T) {
	s := New()
	ctx := context.Background()
	grants := s.Grants(ctx)

	g := authz.RoleGrant{Layer: authz.LayerTeam, Role: "member", Permission: "edit_own_task",
		Condition: authz.OwnOnly{Field: "assignee"}}
	if err := grants.Put(ctx, g); err != nil {
		t.Fatalf("put: %v", err)
	}
	g.Condition = nil
	if err := grants.Put(ctx, g); err != nil {
		t.Fatalf("second put: %v", err)
	}

	list, err := grants.Lookup(ctx, authz.LayerTeam, "member")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("put must upsert on the grant key, got %d rows", len(list))
	}
	if list[0].Condition != nil {
		t.Fatalf("condition should have been replaced by the second put")
	}

	if err := grants.Delete(ctx, authz.LayerTeam, "member", "edit_own_task"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := grants.Delete(ctx, authz.LayerTeam, "member", "edit_own_task"); !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestVersionCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	versions := s.Versions(ctx)

	if v, _ := versions.UserVersion(ctx, "u1"); v != 0 {
		t.Fatalf("fresh user version = %d, want 0", v)
	}
	if v, _ := versions.BumpUser(ctx, "u1"); v != 1 {
		t.Fatalf("first bump = %d, want 1", v)
	}
	if v, _ := versions.BumpUser(ctx, "u1"); v != 2 {
		t.Fatalf("second bump = %d, want 2", v)
	}
	if v, _ := versions.UserVersion(ctx, "u2"); v != 0 {
		t.Fatalf("other user version = %d, bumps must not leak", v)
	}

	if v, _ := versions.GrantVersion(ctx); v != 0 {
		t.Fatalf("fresh grant version = %d, want 0", v)
	}
	if v, _ := versions.BumpGrant(ctx); v != 1 {
		t.Fatalf("grant bump = %d, want 1", v)
	}
}
