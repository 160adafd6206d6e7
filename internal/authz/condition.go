package authz

import (
	"fmt"
	"strings"
)

// Condition narrows a role grant to resources satisfying a runtime predicate.
// A nil Condition on a RoleGrant means the grant is unconditional. The set of
// variants is closed; dispatch is a type switch, never string comparison.
type Condition interface {
	isCondition()
}

// OwnOnly allows the action only when the named resource field holds the
// acting user's id (e.g. Field "assignee" for edit_own_task).
type OwnOnly struct {
	Field string
}

func (OwnOnly) isCondition() {}

// FieldScope allows the action only when every field it touches is on the
// allow-list (e.g. qa_tester may edit test_status but not title).
type FieldScope struct {
	Allowed []string
}

func (FieldScope) isCondition() {}

// Resource is the concrete object a conditional check evaluates against.
// Keys are field names as the consuming workflow stores them.
type Resource map[string]any

// satisfied evaluates one condition against a concrete resource. fields lists
// the field names the caller intends to touch; it only matters for FieldScope.
func satisfied(cond Condition, userID string, res Resource, fields []string) bool {
	switch c := cond.(type) {
	case OwnOnly:
		if res == nil {
			return false
		}
		v, ok := res[c.Field]
		if !ok || v == nil {
			return false
		}
		// Resources often arrive JSON-decoded, where numeric ids surface as
		// float64. Compare on the printed form so "42" matches 42.
		return fmt.Sprint(v) == userID
	case FieldScope:
		if len(fields) == 0 {
			return false
		}
		for _, f := range fields {
			if !containsFold(c.Allowed, f) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
