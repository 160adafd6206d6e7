package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"planhub.org/internal/authz"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestUserUpsert(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into users").
		WithArgs("u1", "admin", "Manager").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := authz.User{ID: "u1", SystemRole: "admin", InstitutionRole: "Manager"}
	if err := s.Users(context.Background()).Upsert(context.Background(), &u); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !u.CreatedAt.Equal(now) || !u.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not populated from returning clause")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select id, system_role, institution_role").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "institution_role", "created_at", "updated_at"}))

	_, err := s.Users(context.Background()).Find(context.Background(), "ghost")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignmentCreateStoresNullResource(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into assignments").
		WithArgs("a1", "u1", "system", "support_agent", "", nil,
			"root", now, nil, true, "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := authz.Assignment{
		ID: "a1", UserID: "u1", Layer: authz.LayerSystem, Role: "support_agent",
		AssignedBy: "root", ValidFrom: now, IsActive: true, CreatedAt: now,
	}
	if err := s.Assignments(context.Background()).Create(context.Background(), &a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentCreateMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into assignments").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	a := authz.Assignment{ID: "a1", UserID: "u1", Layer: authz.LayerTeam, Role: "member",
		ValidFrom: now, IsActive: true, CreatedAt: now}
	err := s.Assignments(context.Background()).Create(context.Background(), &a)
	if !errors.Is(err, authz.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignmentFindAndDeactivate(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	until := now.Add(time.Hour)

	cols := []string{"id", "user_id", "layer", "role", "resource_type", "resource_id",
		"assigned_by", "valid_from", "valid_until", "is_active", "notes", "created_at"}
	mock.ExpectQuery("select id, user_id, layer, role").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "u1", "team", "scrum_master", "team", "team-a", "root", now, until, true, "", now))

	assignments := s.Assignments(context.Background())
	a, err := assignments.Find(context.Background(), "a1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if a.Layer != authz.LayerTeam || a.Role != "scrum_master" || a.ResourceID != "team-a" {
		t.Fatalf("unexpected assignment: %+v", a)
	}
	if a.ValidUntil == nil || !a.ValidUntil.Equal(until) {
		t.Fatalf("valid_until not scanned: %v", a.ValidUntil)
	}

	mock.ExpectExec("update assignments set is_active = false").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := assignments.Deactivate(context.Background(), "a1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	mock.ExpectExec("update assignments set is_active = false").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := assignments.Deactivate(context.Background(), "gone"); !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMembershipDeactivateNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("update memberships set is_active = false").
		WithArgs("u1", "team", "team-z").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Memberships(context.Background()).Deactivate(context.Background(), "u1", authz.LayerTeam, "team-z")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantConditionRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)
	grants := s.Grants(context.Background())

	mock.ExpectExec("insert into role_grants").
		WithArgs("team", "member", "edit_own_task", "own_only", []byte(`{"field":"assignee"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := grants.Put(context.Background(), authz.RoleGrant{
		Layer: authz.LayerTeam, Role: "member", Permission: "edit_own_task",
		Condition: authz.OwnOnly{Field: "assignee"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	cols := []string{"layer", "role", "permission", "condition_type", "condition_config"}
	mock.ExpectQuery("select layer, role, permission").
		WithArgs("project", "qa_tester").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("project", "qa_tester", "view_task", "none", []byte(`{}`)).
			AddRow("project", "qa_tester", "edit_qa_fields", "field_scope", []byte(`{"allowed":["test_status","qa_notes"]}`)))

	list, err := grants.Lookup(context.Background(), authz.LayerProject, "qa_tester")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(list))
	}
	if list[0].Condition != nil {
		t.Fatalf("none condition should decode to nil")
	}
	fs, ok := list[1].Condition.(authz.FieldScope)
	if !ok || len(fs.Allowed) != 2 || fs.Allowed[0] != "test_status" {
		t.Fatalf("field_scope not decoded: %+v", list[1].Condition)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantDeleteNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("delete from role_grants").
		WithArgs("team", "member", "view_task").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Grants(context.Background()).Delete(context.Background(), authz.LayerTeam, "member", "view_task")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVersionCounters(t *testing.T) {
	s, mock := newMockStore(t)
	versions := s.Versions(context.Background())

	mock.ExpectQuery("select v from authz_versions").
		WithArgs("user:u1").
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	v, err := versions.UserVersion(context.Background(), "u1")
	if err != nil || v != 0 {
		t.Fatalf("unseen user version = %d, %v; want 0, nil", v, err)
	}

	mock.ExpectQuery("insert into authz_versions").
		WithArgs("user:u1").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(1))
	v, err = versions.BumpUser(context.Background(), "u1")
	if err != nil || v != 1 {
		t.Fatalf("bump = %d, %v; want 1, nil", v, err)
	}

	mock.ExpectQuery("insert into authz_versions").
		WithArgs("grants").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(7))
	v, err = versions.BumpGrant(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("grant bump = %d, %v; want 7, nil", v, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
