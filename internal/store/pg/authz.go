package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"planhub.org/internal/authz"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

const grantVersionKey = "grants"

var _ authz.Store = (*Store)(nil)

func (s *Store) Users(context.Context) authz.UserStore             { return &userStore{db: s.db} }
func (s *Store) Memberships(context.Context) authz.MembershipStore { return &membershipStore{db: s.db} }
func (s *Store) Assignments(context.Context) authz.AssignmentStore { return &assignmentStore{db: s.db} }
func (s *Store) Grants(context.Context) authz.GrantStore           { return &grantStore{db: s.db} }
func (s *Store) Versions(context.Context) authz.VersionStore       { return &versionStore{db: s.db} }

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Upsert(ctx context.Context, u *authz.User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, system_role, institution_role)
		values ($1, $2, $3)
		on conflict (id) do update
		set system_role = excluded.system_role,
		    institution_role = excluded.institution_role,
		    updated_at = now()
		returning created_at, updated_at
	`, u.ID, u.SystemRole, u.InstitutionRole)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*authz.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, system_role, institution_role, created_at, updated_at
		from users where id = $1
	`, id)
	var u authz.User
	if err := row.Scan(&u.ID, &u.SystemRole, &u.InstitutionRole, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Membership store ----------------------------------------------------------

type membershipStore struct{ db *sql.DB }

func (s *membershipStore) Upsert(ctx context.Context, m *authz.Membership) error {
	row := s.db.QueryRowContext(ctx, `
		insert into memberships (user_id, layer, resource_id, role, is_active)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, layer, resource_id) do update
		set role = excluded.role,
		    is_active = excluded.is_active,
		    updated_at = now()
		returning created_at, updated_at
	`, m.UserID, string(m.Layer), m.ResourceID, m.Role, m.IsActive)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *membershipStore) Deactivate(ctx context.Context, userID string, layer authz.Layer, resourceID string) error {
	res, err := s.db.ExecContext(ctx, `
		update memberships set is_active = false, updated_at = now()
		where user_id = $1 and layer = $2 and resource_id = $3
	`, userID, string(layer), resourceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func (s *membershipStore) ListByUser(ctx context.Context, userID string) ([]authz.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, layer, resource_id, role, is_active, created_at, updated_at
		from memberships where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []authz.Membership
	for rows.Next() {
		var (
			m     authz.Membership
			layer string
		)
		if err := rows.Scan(&m.UserID, &layer, &m.ResourceID, &m.Role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Layer = authz.Layer(layer)
		result = append(result, m)
	}
	return result, rows.Err()
}

// Assignment store ----------------------------------------------------------

type assignmentStore struct{ db *sql.DB }

func (s *assignmentStore) Create(ctx context.Context, a *authz.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into assignments
			(id, user_id, layer, role, resource_type, resource_id, assigned_by,
			 valid_from, valid_until, is_active, notes, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.UserID, string(a.Layer), a.Role, a.ResourceType, nullable(a.ResourceID),
		a.AssignedBy, a.ValidFrom, a.ValidUntil, a.IsActive, a.Notes, a.CreatedAt)
	return mapPgError(err)
}

func (s *assignmentStore) Find(ctx context.Context, id string) (*authz.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, layer, role, resource_type, coalesce(resource_id, ''),
		       assigned_by, valid_from, valid_until, is_active, notes, created_at
		from assignments where id = $1
	`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: assignment %s", authz.ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

func (s *assignmentStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update assignments set is_active = false where id = $1
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: assignment %s", authz.ErrNotFound, id)
	}
	return nil
}

func (s *assignmentStore) ListByUser(ctx context.Context, userID string) ([]authz.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, layer, role, resource_type, coalesce(resource_id, ''),
		       assigned_by, valid_from, valid_until, is_active, notes, created_at
		from assignments where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []authz.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row scanner) (*authz.Assignment, error) {
	var (
		a     authz.Assignment
		layer string
	)
	if err := row.Scan(&a.ID, &a.UserID, &layer, &a.Role, &a.ResourceType, &a.ResourceID,
		&a.AssignedBy, &a.ValidFrom, &a.ValidUntil, &a.IsActive, &a.Notes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Layer = authz.Layer(layer)
	return &a, nil
}

// Grant store ---------------------------------------------------------------

type grantStore struct{ db *sql.DB }

func (s *grantStore) Put(ctx context.Context, g authz.RoleGrant) error {
	condType, condConfig, err := encodeCondition(g.Condition)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into role_grants (layer, role, permission, condition_type, condition_config)
		values ($1, $2, $3, $4, $5)
		on conflict (layer, role, permission) do update
		set condition_type = excluded.condition_type,
		    condition_config = excluded.condition_config
	`, string(g.Layer), g.Role, g.Permission, condType, condConfig)
	return mapPgError(err)
}

func (s *grantStore) Delete(ctx context.Context, layer authz.Layer, role, permission string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_grants where layer = $1 and role = $2 and permission = $3
	`, string(layer), role, permission)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func (s *grantStore) Lookup(ctx context.Context, layer authz.Layer, role string) ([]authz.RoleGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select layer, role, permission, condition_type, condition_config
		from role_grants where layer = $1 and role = $2
	`, string(layer), role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (s *grantStore) List(ctx context.Context) ([]authz.RoleGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select layer, role, permission, condition_type, condition_config
		from role_grants order by layer, role, permission
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows *sql.Rows) ([]authz.RoleGrant, error) {
	var result []authz.RoleGrant
	for rows.Next() {
		var (
			g          authz.RoleGrant
			layer      string
			condType   string
			condConfig []byte
		)
		if err := rows.Scan(&layer, &g.Role, &g.Permission, &condType, &condConfig); err != nil {
			return nil, err
		}
		g.Layer = authz.Layer(layer)
		cond, err := decodeCondition(condType, condConfig)
		if err != nil {
			return nil, err
		}
		g.Condition = cond
		result = append(result, g)
	}
	return result, rows.Err()
}

// Conditions persist as a discriminator column plus a jsonb config.

type ownOnlyConfig struct {
	Field string `json:"field"`
}

type fieldScopeConfig struct {
	Allowed []string `json:"allowed"`
}

func encodeCondition(cond authz.Condition) (string, []byte, error) {
	switch c := cond.(type) {
	case nil:
		return "none", []byte("{}"), nil
	case authz.OwnOnly:
		cfg, err := json.Marshal(ownOnlyConfig{Field: c.Field})
		return "own_only", cfg, err
	case authz.FieldScope:
		cfg, err := json.Marshal(fieldScopeConfig{Allowed: c.Allowed})
		return "field_scope", cfg, err
	default:
		return "", nil, fmt.Errorf("unsupported condition type %T", cond)
	}
}

func decodeCondition(condType string, config []byte) (authz.Condition, error) {
	switch condType {
	case "none", "":
		return nil, nil
	case "own_only":
		var cfg ownOnlyConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("decode own_only config: %w", err)
		}
		return authz.OwnOnly{Field: cfg.Field}, nil
	case "field_scope":
		var cfg fieldScopeConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("decode field_scope config: %w", err)
		}
		return authz.FieldScope{Allowed: cfg.Allowed}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", condType)
	}
}

// Version store -------------------------------------------------------------

type versionStore struct{ db *sql.DB }

func (s *versionStore) UserVersion(ctx context.Context, userID string) (uint64, error) {
	return s.read(ctx, "user:"+userID)
}

func (s *versionStore) BumpUser(ctx context.Context, userID string) (uint64, error) {
	return s.bump(ctx, "user:"+userID)
}

func (s *versionStore) GrantVersion(ctx context.Context) (uint64, error) {
	return s.read(ctx, grantVersionKey)
}

func (s *versionStore) BumpGrant(ctx context.Context) (uint64, error) {
	return s.bump(ctx, grantVersionKey)
}

func (s *versionStore) read(ctx context.Context, key string) (uint64, error) {
	var v uint64
	err := s.db.QueryRowContext(ctx, `
		select v from authz_versions where key = $1
	`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *versionStore) bump(ctx context.Context, key string) (uint64, error) {
	var v uint64
	err := s.db.QueryRowContext(ctx, `
		insert into authz_versions (key, v) values ($1, 1)
		on conflict (key) do update set v = authz_versions.v + 1
		returning v
	`, key).Scan(&v)
	return v, err
}

// Helpers -------------------------------------------------------------------

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return authz.ErrConflict
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: %s", authz.ErrValidation, pgErr.ConstraintName)
		}
	}
	return err
}
