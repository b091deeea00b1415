// Package outputs resolves logical monitor roles (primary/secondary/
// tertiary) to physical outputs and derives the workspace-to-output
// assignment. The resolver is deterministic: identical inputs always
// produce identical assignments.
package outputs

import (
	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// roleOrder is the resolution order; preferences for earlier roles win
// contested outputs.
var roleOrder = []state.Role{state.RolePrimary, state.RoleSecondary, state.RoleTertiary}

// fallback chains a role to the next one when unassigned. Documented and
// never cyclic: TERTIARY → SECONDARY → PRIMARY.
var fallback = map[state.Role]state.Role{
	state.RoleTertiary:  state.RoleSecondary,
	state.RoleSecondary: state.RolePrimary,
}

// Assignment is the result of one resolution pass.
type Assignment struct {
	// ByRole maps each role to its output name; missing entries are
	// unassigned roles.
	ByRole map[state.Role]string
	// ByWorkspace maps workspace numbers with declared preferences to
	// their final output.
	ByWorkspace map[int]string
}

// Resolve assigns roles to the active outputs. Outputs must be given in
// compositor connection order; preferences are fallback chains per role.
func Resolve(active []state.Output, preferences map[string][]string) map[state.Role]string {
	byRole := make(map[state.Role]string, len(roleOrder))

	pool := make([]string, 0, len(active))
	inPool := make(map[string]bool, len(active))
	for _, o := range active {
		if o.Active {
			pool = append(pool, o.Name)
			inPool[o.Name] = true
		}
	}

	// Pass 1: user preferences, first active preferred output per role.
	for _, role := range roleOrder {
		for _, name := range preferences[string(role)] {
			if inPool[name] {
				byRole[role] = name
				inPool[name] = false
				break
			}
		}
	}

	// Pass 2: remaining roles from the pool in connection order.
	for _, role := range roleOrder {
		if _, done := byRole[role]; done {
			continue
		}
		for _, name := range pool {
			if inPool[name] {
				byRole[role] = name
				inPool[name] = false
				break
			}
		}
	}

	log.Debug(log.CatOutputs, "roles resolved",
		"primary", byRole[state.RolePrimary],
		"secondary", byRole[state.RoleSecondary],
		"tertiary", byRole[state.RoleTertiary])
	return byRole
}

// OutputForRole returns the output for a role, walking the fallback chain
// when the role is unassigned. Empty when no output exists at all.
func OutputForRole(byRole map[state.Role]string, role state.Role) string {
	for {
		if name, ok := byRole[role]; ok && name != "" {
			return name
		}
		next, ok := fallback[role]
		if !ok {
			return ""
		}
		role = next
	}
}

// AssignWorkspaces derives the workspace → output mapping. Apps are
// processed first, then PWAs, so a PWA entry always wins a contested
// workspace number (last-wins). Workspaces without any declaration take
// the per-workspace default_output_role, defaulting to PRIMARY.
func AssignWorkspaces(
	byRole map[state.Role]string,
	apps *config.ApplicationRegistry,
	pwas *config.PWARegistry,
	wsConfig []config.WorkspaceEntry,
) map[int]string {
	wsRole := make(map[int]state.Role)

	if apps != nil {
		for _, app := range apps.Applications {
			if app.PreferredWorkspace == 0 {
				continue
			}
			role := app.PreferredRole
			if role == "" {
				role = state.RolePrimary
			}
			wsRole[app.PreferredWorkspace] = role
		}
	}
	if pwas != nil {
		for _, pwa := range pwas.PWAs {
			if pwa.PreferredWorkspace == 0 {
				continue
			}
			role := pwa.PreferredRole
			if role == "" {
				role = state.RolePrimary
			}
			wsRole[pwa.PreferredWorkspace] = role
		}
	}
	for _, entry := range wsConfig {
		if _, declared := wsRole[entry.Number]; declared {
			continue
		}
		role := entry.DefaultOutputRole
		if role == "" {
			role = state.RolePrimary
		}
		wsRole[entry.Number] = role
	}

	byWorkspace := make(map[int]string, len(wsRole))
	for num, role := range wsRole {
		if out := OutputForRole(byRole, role); out != "" {
			byWorkspace[num] = out
		}
	}
	return byWorkspace
}

// ApplyRoles stamps resolved roles onto output models, marking the rest
// unassigned.
func ApplyRoles(outs []state.Output, byRole map[state.Role]string) []state.Output {
	assigned := make(map[string]state.Role, len(byRole))
	for role, name := range byRole {
		assigned[name] = role
	}
	result := make([]state.Output, len(outs))
	for i, o := range outs {
		if role, ok := assigned[o.Name]; ok {
			o.Role = role
		} else {
			o.Role = state.RoleUnassigned
		}
		result[i] = o
	}
	return result
}
