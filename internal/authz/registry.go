package authz

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// adminExcludedPermissions is the fixed, hand-maintained list of codes the
// near-universal admin system role does NOT get for free. For these codes an
// admin resolves through the ordinary layered rules.
var adminExcludedPermissions = map[string]struct{}{
	PermOverridePermission: {},
	PermManageAuditLogs:    {},
}

// Registry is the closed catalog of permission codes. Grant-table writes are
// validated against it, so an unregistered code can never be granted.
type Registry struct {
	mu    sync.RWMutex
	perms map[string]Permission
}

// NewRegistry returns an empty catalog.
func NewRegistry() *Registry {
	return &Registry{perms: make(map[string]Permission)}
}

// Register adds a permission code to the catalog.
func (r *Registry) Register(code, category string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: permission code is required", ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[code]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePermission, code)
	}
	r.perms[code] = Permission{Code: code, Category: strings.TrimSpace(category)}
	return nil
}

// Has reports whether the code is registered.
func (r *Registry) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.perms[code]
	return ok
}

// List returns the catalog ordered by code.
func (r *Registry) List() []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Permission, 0, len(r.perms))
	for _, p := range r.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Codes returns the set of registered codes.
func (r *Registry) Codes() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.perms))
	for code := range r.perms {
		out[code] = struct{}{}
	}
	return out
}

// AdminExcluded reports whether the code sits on the admin exclusion list.
func AdminExcluded(code string) bool {
	_, ok := adminExcludedPermissions[code]
	return ok
}
