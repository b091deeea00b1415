// Package state holds the daemon's authoritative in-memory model of
// windows, workspaces, outputs, and projects. The store exclusively owns
// the canonical maps; every other component goes through its mutators and
// queries. Cross-references between entities are stored as ids, never
// pointers.
package state

import "time"

// MinWorkspace and MaxWorkspace bound valid workspace numbers.
const (
	MinWorkspace = 1
	MaxWorkspace = 70
)

// GlobalProject is the sentinel project name used by global scratchpad
// terminals.
const GlobalProject = "global"

// Scope classifies a window's or application's project affinity.
type Scope string

const (
	ScopeScoped Scope = "scoped"
	ScopeGlobal Scope = "global"
)

// Valid reports whether s is a recognised scope.
func (s Scope) Valid() bool { return s == ScopeScoped || s == ScopeGlobal }

// PWAType distinguishes the two supported PWA hosts.
type PWAType string

const (
	PWAFirefox PWAType = "firefox"
	PWAChrome  PWAType = "chrome"
)

// Role is a logical monitor role resolved to a physical output.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleSecondary  Role = "secondary"
	RoleTertiary   Role = "tertiary"
	RoleUnassigned Role = "unassigned"
)

// SourceType records where a project's working tree lives.
type SourceType string

const (
	SourceLocal    SourceType = "local"
	SourceWorktree SourceType = "worktree"
	SourceRemote   SourceType = "remote"
)

// Window is the daemon's view of one compositor container.
type Window struct {
	WindowID     int64          `json:"window_id"`
	PID          int            `json:"pid,omitempty"`
	AppID        string         `json:"app_id"`
	Instance     string         `json:"instance,omitempty"`
	Class        string         `json:"class,omitempty"`
	Title        string         `json:"title"`
	WorkspaceNum int            `json:"workspace_num"`
	OutputName   string         `json:"output_name"`
	Marks        []string       `json:"marks"`
	IsFloating   bool           `json:"is_floating"`
	IsPWA        bool           `json:"is_pwa"`
	PWAType      PWAType        `json:"pwa_type,omitempty"`
	PWAID        string         `json:"pwa_id,omitempty"`
	I3PMEnv      map[string]string `json:"i3pm_env,omitempty"`
	Scope        Scope          `json:"scope"`
	Project      string         `json:"project,omitempty"` // empty for global windows
	Focused      bool           `json:"focused"`
	Visible      bool           `json:"visible"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MatchClass returns the identity string used for matching: app_id for
// Wayland windows, class for X11.
func (w *Window) MatchClass() string {
	if w.Class != "" {
		return w.Class
	}
	return w.AppID
}

// Workspace is one numbered workspace.
type Workspace struct {
	Num       int     `json:"num"`
	Name      string  `json:"name"`
	Output    string  `json:"output_name"`
	Focused   bool    `json:"focused"`
	Visible   bool    `json:"visible"`
	WindowIDs []int64 `json:"window_ids"`
}

// Output is one physical (or headless) output.
type Output struct {
	Name   string  `json:"name"`
	Active bool    `json:"active"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
	Role   Role    `json:"role"`
}

// GitMetadata is best-effort VCS information attached to a project.
type GitMetadata struct {
	Branch        string `json:"branch,omitempty"`
	Remote        string `json:"remote,omitempty"`
	CommitsAhead  int    `json:"commits_ahead,omitempty"`
	CommitsBehind int    `json:"commits_behind,omitempty"`
	Dirty         bool   `json:"dirty,omitempty"`
}

// Project is one project definition as loaded from projects/<name>.json.
// Qualified names of the form account/repo:branch identify worktrees.
type Project struct {
	Name          string       `json:"name"`
	DisplayName   string       `json:"display_name"`
	Icon          string       `json:"icon,omitempty"`
	Directory     string       `json:"directory"`
	Scope         Scope        `json:"scope"`
	ScopedClasses []string     `json:"scoped_classes,omitempty"`
	Remote        string       `json:"remote,omitempty"`
	AutoSave      bool         `json:"auto_save"`
	AutoRestore   bool         `json:"auto_restore"`
	AutoSaveKeep  int          `json:"auto_save_keep,omitempty"` // 0 means default (10)
	SourceType    SourceType   `json:"source_type,omitempty"`
	GitMetadata   *GitMetadata `json:"git_metadata,omitempty"`
}

// FocusState is the persisted focus memory: the last focused workspace per
// project and the last focused window per workspace.
type FocusState struct {
	ProjectFocusedWorkspace map[string]int   `json:"project_focused_workspace"`
	WorkspaceFocusedWindow  map[int]int64    `json:"workspace_focused_window"`
}

// NewFocusState returns an empty focus state with initialised maps.
func NewFocusState() *FocusState {
	return &FocusState{
		ProjectFocusedWorkspace: make(map[string]int),
		WorkspaceFocusedWindow:  make(map[int]int64),
	}
}
