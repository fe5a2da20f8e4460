// Package auth gates public operations behind a role/grant model.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// Modules and actions known to the checker.
const (
	ModuleAudit = "audit"

	ActionSubmit = "submit"
	ActionView   = "view"
	ActionReport = "report"
	ActionDelete = "delete"
)

// Grant names one permitted module/action pair.
type Grant struct {
	Module string
	Action string
}

// Checker resolves identities to roles and roles to grants. It fails closed:
// an identity without a role, or a role without the grant, is forbidden.
type Checker struct {
	mu      sync.RWMutex
	roles   map[string]string  // identity -> role
	grants  map[string][]Grant // role -> grants
	defRole string
}

// Config seeds the checker's role and grant tables.
type Config struct {
	// Roles maps identity -> role name.
	Roles map[string]string
	// Grants maps role name -> permitted module/action pairs.
	Grants map[string][]Grant
	// DefaultRole, when set, applies to identities without an explicit role.
	DefaultRole string
}

// NewChecker builds a Checker from config.
func NewChecker(cfg Config) *Checker {
	roles := make(map[string]string, len(cfg.Roles))
	for identity, role := range cfg.Roles {
		roles[identity] = role
	}
	grants := make(map[string][]Grant, len(cfg.Grants))
	for role, list := range cfg.Grants {
		grants[role] = append([]Grant(nil), list...)
	}
	return &Checker{roles: roles, grants: grants, defRole: cfg.DefaultRole}
}

// NewPermissive builds a checker that grants every audit action to any
// non-empty identity. Intended for single-tenant deployments.
func NewPermissive() *Checker {
	return NewChecker(Config{
		DefaultRole: "member",
		Grants: map[string][]Grant{
			"member": {
				{Module: ModuleAudit, Action: ActionSubmit},
				{Module: ModuleAudit, Action: ActionView},
				{Module: ModuleAudit, Action: ActionReport},
				{Module: ModuleAudit, Action: ActionDelete},
			},
		},
	})
}

// Require returns nil when the identity's role holds the module/action grant
// and wraps ErrForbidden otherwise.
func (c *Checker) Require(_ context.Context, identity, module, action string) error {
	if identity == "" {
		return fmt.Errorf("empty identity: %w", audit.ErrForbidden)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	role, ok := c.roles[identity]
	if !ok {
		role = c.defRole
	}
	if role == "" {
		return fmt.Errorf("identity %s has no role: %w", identity, audit.ErrForbidden)
	}
	for _, grant := range c.grants[role] {
		if grant.Module == module && grant.Action == action {
			return nil
		}
	}
	return fmt.Errorf("role %s lacks %s.%s: %w", role, module, action, audit.ErrForbidden)
}
