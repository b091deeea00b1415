package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/state"
)

// Application is one entry of application-registry.json.
type Application struct {
	Name               string      `json:"name"`
	DisplayName        string      `json:"display_name"`
	Command            string      `json:"command"`
	Parameters         []string    `json:"parameters,omitempty"`
	ExpectedClass      string      `json:"expected_class"`
	Scope              state.Scope `json:"scope"`
	PreferredWorkspace int         `json:"preferred_workspace,omitempty"`
	PreferredRole      state.Role  `json:"preferred_monitor_role,omitempty"`
	Icon               string      `json:"icon,omitempty"`
	Terminal           bool        `json:"terminal,omitempty"`
	ULID               string      `json:"ulid,omitempty"` // PWA entries only
}

// ApplicationRegistry is application-registry.json.
type ApplicationRegistry struct {
	Version      int           `json:"version"`
	Applications []Application `json:"applications"`
}

// ByName returns the application with the given registry key.
func (r *ApplicationRegistry) ByName(name string) (Application, bool) {
	for _, app := range r.Applications {
		if app.Name == name {
			return app, true
		}
	}
	return Application{}, false
}

// ByClass returns the first application whose expected class matches the
// given class, app_id, or instance.
func (r *ApplicationRegistry) ByClass(class, appID, instance string) (Application, bool) {
	for _, app := range r.Applications {
		if app.ExpectedClass == "" {
			continue
		}
		if app.ExpectedClass == class || app.ExpectedClass == appID || app.ExpectedClass == instance {
			return app, true
		}
	}
	return Application{}, false
}

// PWA is one entry of pwa-registry.json.
type PWA struct {
	Name               string `json:"name"`
	URL                string `json:"url"`
	ULID               string `json:"ulid,omitempty"`     // Firefox PWAs
	Instance           string `json:"instance,omitempty"` // Chromium PWAs
	Icon               string `json:"icon,omitempty"`
	PreferredWorkspace int    `json:"preferred_workspace,omitempty"`
	PreferredRole      state.Role `json:"preferred_monitor_role,omitempty"`
	Scope              state.Scope `json:"scope,omitempty"`
}

// PWARegistry is pwa-registry.json.
type PWARegistry struct {
	Version int   `json:"version"`
	PWAs    []PWA `json:"pwas"`
}

// ByULID returns the Firefox PWA with the given ULID.
func (r *PWARegistry) ByULID(ulid string) (PWA, bool) {
	for _, p := range r.PWAs {
		if p.ULID == ulid {
			return p, true
		}
	}
	return PWA{}, false
}

// ByInstance returns the Chromium PWA with the given instance.
func (r *PWARegistry) ByInstance(instance string) (PWA, bool) {
	for _, p := range r.PWAs {
		if p.Instance == instance {
			return p, true
		}
	}
	return PWA{}, false
}

// WorkspaceEntry is one entry of workspace-config.json.
type WorkspaceEntry struct {
	Number            int        `json:"number"`
	Name              string     `json:"name,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	DefaultOutputRole state.Role `json:"default_output_role"`
}

// AppClasses is app-classes.json: optional scope overrides by class.
type AppClasses struct {
	Scoped []string `json:"scoped,omitempty"`
	Global []string `json:"global,omitempty"`
}

// loadJSON reads and decodes one registry file. A missing file yields the
// zero value without error; corrupt files are configuration errors.
func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errdefs.Filesystem(err, "reading %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errdefs.Configuration(errdefs.CodeConfigCorrupt, "corrupt %s: %v", filepath.Base(path), err).
			WithSuggestion("validate the file with jq and fix or remove it")
	}
	return nil
}

// LoadApplicationRegistry reads application-registry.json from dir.
func LoadApplicationRegistry(dir string) (*ApplicationRegistry, error) {
	reg := &ApplicationRegistry{}
	if err := loadJSON(filepath.Join(dir, "application-registry.json"), reg); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(reg.Applications))
	for _, app := range reg.Applications {
		if _, dup := seen[app.Name]; dup {
			return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt,
				"duplicate application %q in registry", app.Name)
		}
		seen[app.Name] = struct{}{}
		if app.PreferredWorkspace != 0 &&
			(app.PreferredWorkspace < state.MinWorkspace || app.PreferredWorkspace > state.MaxWorkspace) {
			return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt,
				"application %q preferred_workspace %d out of range", app.Name, app.PreferredWorkspace)
		}
	}
	return reg, nil
}

// LoadPWARegistry reads pwa-registry.json from dir.
func LoadPWARegistry(dir string) (*PWARegistry, error) {
	reg := &PWARegistry{}
	if err := loadJSON(filepath.Join(dir, "pwa-registry.json"), reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadWorkspaceConfig reads workspace-config.json from dir.
func LoadWorkspaceConfig(dir string) ([]WorkspaceEntry, error) {
	var entries []WorkspaceEntry
	if err := loadJSON(filepath.Join(dir, "workspace-config.json"), &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Number < state.MinWorkspace || e.Number > state.MaxWorkspace {
			return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt,
				"workspace-config entry %d out of range [%d,%d]", e.Number, state.MinWorkspace, state.MaxWorkspace)
		}
	}
	return entries, nil
}

// LoadAppClasses reads app-classes.json from dir.
func LoadAppClasses(dir string) (*AppClasses, error) {
	ac := &AppClasses{}
	if err := loadJSON(filepath.Join(dir, "app-classes.json"), ac); err != nil {
		return nil, err
	}
	return ac, nil
}
