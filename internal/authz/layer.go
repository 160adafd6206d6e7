package authz

import (
	"fmt"
	"strings"
)

// Layer identifies the organizational scope at which a role is held.
// System roles are global; the other three are bound to a resource id.
type Layer string

const (
	LayerSystem   Layer = "system"
	LayerDivision Layer = "division"
	LayerTeam     Layer = "team"
	LayerProject  Layer = "project"
)

// Layers lists every layer in resolution order (broadest first).
var Layers = []Layer{LayerSystem, LayerDivision, LayerTeam, LayerProject}

// System-tier roles carried by the identity provider.
const (
	SystemRoleSuperAdmin = "super_admin"
	SystemRoleAdmin      = "admin"
)

// roleVocabulary is the closed set of role names per layer. Grant-table and
// assignment writes are validated against it; a typo never reaches storage.
var roleVocabulary = map[Layer][]string{
	LayerSystem: {
		SystemRoleSuperAdmin,
		SystemRoleAdmin,
		"support_agent",
	},
	LayerDivision: {
		"division_head",
		"division_manager",
		"division_viewer",
		"hr_reviewer",
	},
	LayerTeam: {
		"team_admin",
		"team_lead",
		"scrum_master",
		"product_owner",
		"qa_lead",
		"member",
	},
	LayerProject: {
		"project_owner",
		"project_manager",
		"tech_lead",
		"developer",
		"qa_tester",
		"report_viewer",
		"stakeholder",
		"member",
	},
}

// ParseLayer normalizes and validates a layer name.
func ParseLayer(raw string) (Layer, error) {
	switch Layer(strings.ToLower(strings.TrimSpace(raw))) {
	case LayerSystem:
		return LayerSystem, nil
	case LayerDivision:
		return LayerDivision, nil
	case LayerTeam:
		return LayerTeam, nil
	case LayerProject:
		return LayerProject, nil
	default:
		return "", fmt.Errorf("%w: layer %q", ErrValidation, raw)
	}
}

// ValidRole reports whether role belongs to the layer's vocabulary.
func ValidRole(layer Layer, role string) bool {
	for _, r := range roleVocabulary[layer] {
		if r == role {
			return true
		}
	}
	return false
}

// RolesForLayer returns a copy of the layer's role vocabulary.
func RolesForLayer(layer Layer) []string {
	src := roleVocabulary[layer]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
