package authz

import "time"

// User is the identity snapshot the engine reads. It is referenced, not
// owned: the identity provider is the source of truth for SystemRole, and
// InstitutionRole is a display label the resolver never consults.
type User struct {
	ID              string    `json:"id"`
	SystemRole      string    `json:"system_role,omitempty"`
	InstitutionRole string    `json:"institution_role,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Permission is a catalog entry. Category is informational only.
type Permission struct {
	Code     string `json:"code"`
	Category string `json:"category"`
}

// Membership is a durable organizational fact: the user belongs to a
// division or team and carries the implicit role that comes with it.
// Memberships are logically deactivated, never destroyed.
type Membership struct {
	UserID     string    `json:"user_id"`
	Layer      Layer     `json:"layer"` // division or team
	ResourceID string    `json:"resource_id"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Assignment is an explicit, time-boxed role grant.
type Assignment struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Layer        Layer      `json:"layer"`
	Role         string     `json:"role"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"` // empty for system layer
	AssignedBy   string     `json:"assigned_by,omitempty"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"` // nil = open-ended
	IsActive     bool       `json:"is_active"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ContributesAt reports whether the assignment participates in resolution at
// the given instant. The validity window is inclusive on both ends.
func (a Assignment) ContributesAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if now.Before(a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && now.After(*a.ValidUntil) {
		return false
	}
	return true
}

// ContributesAt mirrors Assignment.ContributesAt. Memberships carry no time
// window; only the active flag gates them.
func (m Membership) ContributesAt(_ time.Time) bool {
	return m.IsActive
}

// RoleGrant maps a (layer, role) pair to one permission code, optionally
// narrowed by a condition. Semantics are additive: grants union, they never
// subtract.
type RoleGrant struct {
	Layer      Layer     `json:"layer"`
	Role       string    `json:"role"`
	Permission string    `json:"permission"`
	Condition  Condition `json:"-"`
}

// Effect is the outcome of a resolution.
type Effect string

const (
	EffectAllow   Effect = "allow"
	EffectAllowIf Effect = "allow_if"
	EffectDeny    Effect = "deny"
)

// Decision is a first-class result; denial is data, not an error.
type Decision struct {
	Effect     Effect
	Conditions []Condition // populated only for EffectAllowIf
}

// Allowed reports an unconditional allow.
func (d Decision) Allowed() bool { return d.Effect == EffectAllow }

// Reachable reports that the permission is at least conditionally granted.
func (d Decision) Reachable() bool { return d.Effect != EffectDeny }

// RequestContext narrows resolution to concrete organizational resources.
// A nil context means a coarse, context-free check.
type RequestContext struct {
	DivisionID string
	TeamID     string
	ProjectID  string

	// Resource and Fields feed conditional evaluation (CheckWithResource).
	Resource Resource
	Fields   []string
}

func (c *RequestContext) scopeFor(layer Layer) string {
	if c == nil {
		return ""
	}
	switch layer {
	case LayerDivision:
		return c.DivisionID
	case LayerTeam:
		return c.TeamID
	case LayerProject:
		return c.ProjectID
	default:
		return ""
	}
}

// roleRef is one candidate (layer, role) pair gathered during resolution.
type roleRef struct {
	layer Layer
	role  string
}
