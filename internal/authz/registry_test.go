package authz

import (
	"errors"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("view_task", "task"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.Has("view_task") {
		t.Fatalf("expected view_task in catalog")
	}
	if r.Has("delete_task") {
		t.Fatalf("unexpected delete_task in catalog")
	}
	if err := r.Register("view_task", "task"); !errors.Is(err, ErrDuplicatePermission) {
		t.Fatalf("expected ErrDuplicatePermission, got %v", err)
	}
	if err := r.Register("  ", "task"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank code, got %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, code := range []string{"manage_board", "assign_task", "view_task"} {
		if err := r.Register(code, "task"); err != nil {
			t.Fatalf("register %s: %v", code, err)
		}
	}
	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 permissions, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Code >= list[i].Code {
			t.Fatalf("catalog not sorted: %s before %s", list[i-1].Code, list[i].Code)
		}
	}
}

func TestAdminExcluded(t *testing.T) {
	if !AdminExcluded(PermOverridePermission) {
		t.Fatalf("override_permission should be excluded from admin")
	}
	if !AdminExcluded(PermManageAuditLogs) {
		t.Fatalf("manage_audit_logs should be excluded from admin")
	}
	if AdminExcluded(PermManageRoles) {
		t.Fatalf("manage_roles should not be excluded from admin")
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(LayerSystem, SystemRoleSuperAdmin) {
		t.Fatalf("super_admin should be a system role")
	}
	if !ValidRole(LayerTeam, "scrum_master") {
		t.Fatalf("scrum_master should be a team role")
	}
	if ValidRole(LayerTeam, "division_head") {
		t.Fatalf("division_head is not a team role")
	}
	if ValidRole(Layer("galaxy"), "member") {
		t.Fatalf("unknown layer should have no roles")
	}
}

func TestParseLayer(t *testing.T) {
	if l, err := ParseLayer("project"); err != nil || l != LayerProject {
		t.Fatalf("parse project: %v %v", l, err)
	}
	if _, err := ParseLayer("galaxy"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown layer, got %v", err)
	}
}
