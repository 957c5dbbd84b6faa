// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

//go:embed model.conf
var casbinModel string

//go:embed policy.csv
var casbinPolicy string

// role names match the two account tiers the catalog knows about
// (catalog.User.IsAdmin), kept as Casbin subjects so the "every admin-only
// method" rule in the spec lives in one declarative policy table instead of
// an IsAdmin check scattered across every handler.
const (
	roleMember = "member"
	roleAdmin  = "admin"
)

// action verbs used in policy.csv.
const (
	actionRead  = "read"
	actionWrite = "write"
	actionAdmin = "admin"
)

// authorizer wraps a Casbin enforcer seeded from the embedded model/policy.
// Unlike the teacher's authz.Enforcer this carries no file-watching
// auto-reload or decision cache: Sonar's policy table is two roles and
// three actions, fixed at build time, so neither concern has anything to
// do.
type authorizer struct {
	enforcer *casbin.Enforcer
}

func newAuthorizer() (*authorizer, error) {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, casbinPolicy); err != nil {
		return nil, err
	}
	return &authorizer{enforcer: enforcer}, nil
}

func loadEmbeddedPolicy(enforcer *casbin.Enforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] != "p" || len(parts) < 4 {
			continue
		}
		if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
			return fmt.Errorf("add policy %v: %w", parts[1:], err)
		}
	}
	return nil
}

// allow reports whether isAdmin's role may perform action on resource.
func (a *authorizer) allow(isAdmin bool, resource, action string) (bool, error) {
	role := roleMember
	if isAdmin {
		role = roleAdmin
	}
	ok, err := a.enforcer.Enforce(role, resource, action)
	if err != nil {
		return false, sonarerr.WrapInternal(err, "evaluate authorization policy")
	}
	return ok, nil
}

// requireAdmin is the check every admin-only RPC verb uses.
func (a *authorizer) requireAdmin(isAdmin bool) error {
	ok, err := a.allow(isAdmin, "/*", actionAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return sonarerr.Unauthorizedf("operation requires an administrator account")
	}
	return nil
}
