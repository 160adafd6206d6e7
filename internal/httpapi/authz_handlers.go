package httpapi

import (
	"net/http"
	"strings"
	"time"

	"planhub.org/internal/audit"
	"planhub.org/internal/authz"
	"planhub.org/internal/identity"
	"planhub.org/internal/ids"
)

type tokenRequest struct {
	User            string `json:"user"`
	SystemRole      string `json:"system_role"`
	InstitutionRole string `json:"institution_role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken issues a bearer token and mirrors the identity snapshot
// into the engine's store. Production deployments put this behind the
// organization's SSO; the contract here is the claim shape.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}

	if err := a.engine.SyncUser(r.Context(), authz.User{
		ID:              user,
		SystemRole:      strings.TrimSpace(req.SystemRole),
		InstitutionRole: strings.TrimSpace(req.InstitutionRole),
	}); err != nil {
		handleEngineError(w, r, err)
		return
	}

	token, err := identity.GenerateToken(user, req.SystemRole, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":        user,
		"system_role": req.SystemRole,
		"expires_at":  expiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// --- permission checks ---

type checkContext struct {
	DivisionID string `json:"division_id"`
	TeamID     string `json:"team_id"`
	ProjectID  string `json:"project_id"`
}

type checkRequest struct {
	UserID     string        `json:"user_id"`
	Permission string        `json:"permission"`
	Context    *checkContext `json:"context"`
}

type checkResponse struct {
	Effect     string   `json:"effect"`
	Allowed    bool     `json:"allowed"`
	Conditions []string `json:"conditions,omitempty"`
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.Permission == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and permission are required")
		return
	}
	var rctx *authz.RequestContext
	if req.Context != nil {
		rctx = &authz.RequestContext{
			DivisionID: req.Context.DivisionID,
			TeamID:     req.Context.TeamID,
			ProjectID:  req.Context.ProjectID,
		}
	}
	d, err := a.engine.Resolve(r.Context(), req.UserID, req.Permission, rctx)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Effect:     string(d.Effect),
		Allowed:    d.Allowed(),
		Conditions: describeConditions(d.Conditions),
	})
}

type checkResourceRequest struct {
	UserID     string         `json:"user_id"`
	Permission string         `json:"permission"`
	Resource   map[string]any `json:"resource"`
	Fields     []string       `json:"fields"`
}

func (a *API) handleCheckResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req checkResourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.Permission == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and permission are required")
		return
	}
	allowed, err := a.engine.CheckWithResource(r.Context(), req.UserID, req.Permission,
		authz.Resource(req.Resource), req.Fields...)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": a.engine.Permissions()})
}

// handleRoleCatalog lists the closed role vocabulary, layer by layer, so
// admin UIs can populate pickers without hardcoding role names.
func (a *API) handleRoleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	layers := make(map[string][]string, len(authz.Layers))
	for _, layer := range authz.Layers {
		layers[string(layer)] = authz.RolesForLayer(layer)
	}
	writeJSON(w, http.StatusOK, map[string]any{"layers": layers})
}

// handleUserScoped serves /v1/authz/users/{id}/permissions.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/authz/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms, err := a.engine.EffectivePermissions(r.Context(), parts[0])
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     parts[0],
		"permissions": perms,
	})
}

// --- administrative mutations ---

type assignRoleRequest struct {
	UserID       string     `json:"user_id"`
	Layer        string     `json:"layer"`
	Role         string     `json:"role"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	ValidFrom    *time.Time `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
	Notes        string     `json:"notes"`
}

func (a *API) handleAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireManage(w, r) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	layer, err := authz.ParseLayer(req.Layer)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	params := authz.AssignmentParams{
		UserID:       req.UserID,
		Layer:        layer,
		Role:         req.Role,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		AssignedBy:   actorFrom(r.Context()),
		ValidUntil:   req.ValidUntil,
		Notes:        req.Notes,
	}
	if req.ValidFrom != nil {
		params.ValidFrom = *req.ValidFrom
	}
	assignment, err := a.engine.AssignRole(r.Context(), params)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "authz.assignment.created", map[string]any{
		"assignment_id": assignment.ID,
		"user_id":       assignment.UserID,
		"layer":         string(assignment.Layer),
		"role":          assignment.Role,
		"resource_id":   assignment.ResourceID,
	})
	w.Header().Set("Location", "/v1/authz/assignments/"+assignment.ID)
	writeJSON(w, http.StatusCreated, assignment)
}

// handleAssignmentScoped serves DELETE /v1/authz/assignments/{id}.
func (a *API) handleAssignmentScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/authz/assignments/"), "/")
	if !ids.Valid(id) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.requireManage(w, r) {
		return
	}
	if err := a.engine.RevokeAssignment(r.Context(), id, actorFrom(r.Context())); err != nil {
		handleEngineError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "authz.assignment.revoked", map[string]any{
		"assignment_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

type grantRequest struct {
	Layer         string   `json:"layer"`
	Role          string   `json:"role"`
	Permission    string   `json:"permission"`
	ConditionType string   `json:"condition_type"`
	Field         string   `json:"field"`
	Allowed       []string `json:"allowed"`
}

func (a *API) handleGrants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodDelete:
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	if !a.requireManage(w, r) {
		return
	}
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	layer, err := authz.ParseLayer(req.Layer)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodDelete {
		if err := a.engine.RevokePermission(r.Context(), layer, req.Role, req.Permission, actorFrom(r.Context())); err != nil {
			handleEngineError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "authz.grant.removed", map[string]any{
			"layer": req.Layer, "role": req.Role, "permission": req.Permission,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
		return
	}

	cond, err := parseCondition(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.GrantPermission(r.Context(), layer, req.Role, req.Permission, cond, actorFrom(r.Context())); err != nil {
		handleEngineError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "authz.grant.added", map[string]any{
		"layer": req.Layer, "role": req.Role, "permission": req.Permission,
		"condition_type": req.ConditionType,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"status": "granted"})
}

type membershipRequest struct {
	UserID     string `json:"user_id"`
	Layer      string `json:"layer"`
	ResourceID string `json:"resource_id"`
	Role       string `json:"role"`
	IsActive   *bool  `json:"is_active"`
}

// handleMemberships ingests the organizational-directory feed: POST mirrors
// a membership fact, DELETE deactivates one.
func (a *API) handleMemberships(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodDelete:
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	if !a.requireManage(w, r) {
		return
	}
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	layer, err := authz.ParseLayer(req.Layer)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodDelete {
		if err := a.engine.DeactivateMembership(r.Context(), req.UserID, layer, req.ResourceID); err != nil {
			handleEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	if err := a.engine.SyncMembership(r.Context(), authz.Membership{
		UserID:     req.UserID,
		Layer:      layer,
		ResourceID: req.ResourceID,
		Role:       req.Role,
		IsActive:   active,
	}); err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "synced"})
}

func parseCondition(req grantRequest) (authz.Condition, error) {
	switch strings.TrimSpace(req.ConditionType) {
	case "", "none":
		return nil, nil
	case "own_only":
		if strings.TrimSpace(req.Field) == "" {
			return nil, errInvalidCondition("own_only requires field")
		}
		return authz.OwnOnly{Field: req.Field}, nil
	case "field_scope":
		if len(req.Allowed) == 0 {
			return nil, errInvalidCondition("field_scope requires allowed fields")
		}
		return authz.FieldScope{Allowed: req.Allowed}, nil
	default:
		return nil, errInvalidCondition("unknown condition_type " + req.ConditionType)
	}
}

type errInvalidCondition string

func (e errInvalidCondition) Error() string { return string(e) }

func describeConditions(conds []authz.Condition) []string {
	if len(conds) == 0 {
		return nil
	}
	out := make([]string, 0, len(conds))
	for _, c := range conds {
		switch cond := c.(type) {
		case authz.OwnOnly:
			out = append(out, "own_only:"+cond.Field)
		case authz.FieldScope:
			out = append(out, "field_scope:"+strings.Join(cond.Allowed, ","))
		}
	}
	return out
}
