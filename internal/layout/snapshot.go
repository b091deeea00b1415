// Package layout captures workspace/window snapshots and restores them
// idempotently around project switches.
package layout

import (
	"time"
)

// Geometry is a placeholder's saved position and size.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MarksMetadata carries auxiliary mark state for faithful restoration.
// Absent in older snapshots; deserialises to nil.
type MarksMetadata struct {
	Project    string   `json:"project,omitempty"`
	ExtraMarks []string `json:"extra_marks,omitempty"`
}

// WindowPlaceholder describes one window slot in a snapshot. During
// restore a live window is swallowed into the slot by app identity.
type WindowPlaceholder struct {
	Class           string         `json:"class"`
	Instance        string         `json:"instance,omitempty"`
	TitlePattern    string         `json:"title_pattern,omitempty"`
	LaunchCommand   string         `json:"launch_command,omitempty"`
	Geometry        Geometry       `json:"geometry"`
	Marks           []string       `json:"marks,omitempty"`
	Floating        bool           `json:"floating"`
	CWD             string         `json:"cwd,omitempty"`
	AppRegistryName string         `json:"app_registry_name,omitempty"`
	Focused         bool           `json:"focused"`
	RestorationMark string         `json:"restoration_mark,omitempty"`
	MarksMetadata   *MarksMetadata `json:"marks_metadata,omitempty"`
}

// WorkspaceLayout is one workspace's ordered windows.
type WorkspaceLayout struct {
	Num     int                 `json:"num"`
	Name    string              `json:"name,omitempty"`
	Output  string              `json:"output,omitempty"`
	Windows []WindowPlaceholder `json:"windows"`
}

// Snapshot is a full per-project layout capture.
type Snapshot struct {
	Version    int               `json:"version"`
	Project    string            `json:"project"`
	Name       string            `json:"name"`
	CapturedAt time.Time         `json:"captured_at"`
	Workspaces []WorkspaceLayout `json:"workspaces"`
}

// RestoreResult reports a restore pass.
type RestoreResult struct {
	Success          bool     `json:"success"`
	WindowsSwallowed int      `json:"windows_swallowed"`
	Launched         []string `json:"launched,omitempty"`
	SkippedRunning   []string `json:"skipped_running,omitempty"`
	Errors           []string `json:"errors"`
}

// AutoSavePrefix prefixes automatic snapshot names; full names are
// auto-YYYYMMDD-HHMMSS.
const AutoSavePrefix = "auto-"

// AutoSaveName formats an automatic snapshot name for the given time.
func AutoSaveName(t time.Time) string {
	return AutoSavePrefix + t.Format("20060102-150405")
}
