package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/state"
)

// rpcRunApp launches or summons a registered application. Without
// --force, an already-running instance is summoned (focused) instead of
// launching a second copy.
func (d *Daemon) rpcRunApp(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		App    string `json:"app"`
		Summon bool   `json:"summon,omitempty"`
		Hide   bool   `json:"hide,omitempty"`
		NoHide bool   `json:"nohide,omitempty"`
		Force  bool   `json:"force,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if req.App == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "app is required")
	}

	app, ok := d.cfgStore.Applications().ByName(req.App)
	if !ok {
		return nil, errdefs.Configuration(errdefs.CodeUnknownApp, "unknown application %q", req.App).
			WithSuggestion("check application-registry.json")
	}

	// Find a live window of the app.
	var existing *state.Window
	for _, w := range d.store.Windows() {
		if w.MatchClass() == app.ExpectedClass || (w.I3PMEnv != nil && w.I3PMEnv["I3PM_APP_NAME"] == app.Name) {
			existing = &w
			break
		}
	}

	if existing != nil && !req.Force {
		if req.Hide {
			return map[string]any{"action": "hidden", "window_id": existing.WindowID},
				d.client.RunCommand(ctx, fmt.Sprintf("[con_id=%d] move scratchpad", existing.WindowID))
		}
		// Summon: focus the existing window.
		if err := d.client.RunCommand(ctx, fmt.Sprintf("[con_id=%d] focus", existing.WindowID)); err != nil {
			return nil, err
		}
		return map[string]any{"action": "summoned", "window_id": existing.WindowID}, nil
	}

	// Launch through the launcher contract.
	projectName, projectDir := "", ""
	if app.Scope == state.ScopeScoped {
		if active := d.store.ActiveProject(); active != "" {
			if p, ok := d.store.Project(active); ok {
				projectName = p.Name
				projectDir = p.Directory
			}
		}
	}

	launchID, err := d.registry.NotifyLaunch(
		app.Name, projectName, projectDir, 0, app.PreferredWorkspace, app.ExpectedClass, time.Time{},
	)
	if err != nil {
		return nil, err
	}
	if err := spawnApp(ctx, app, projectName, projectDir, app.PreferredWorkspace); err != nil {
		return nil, err
	}
	return map[string]any{"action": "launched", "launch_id": launchID}, nil
}
