// Package paths provides path resolution utilities for the daemon and CLI.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// SocketName is the daemon's Unix socket file name.
const SocketName = "i3-project-daemon.sock"

// ConfigDir returns the i3 project configuration directory
// ($HOME/.config/i3). All project, registry, and layout files live here.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "i3")
}

// DaemonConfigDir returns the daemon's own configuration directory
// ($HOME/.config/i3pm), holding config.yaml and trace output.
func DaemonConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "i3pm")
}

// DataDir returns the daemon's data directory ($HOME/.local/share/i3pm),
// holding the navigation history database.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "i3pm")
}

// RuntimeDir returns the user runtime directory, preferring
// $XDG_RUNTIME_DIR and falling back to /run/user/<uid>.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return fmt.Sprintf("/run/user/%d", os.Getuid())
}

// DaemonSocket returns the JSON-RPC socket path. Both the daemon and all
// clients resolve the path through this function so they cannot disagree.
func DaemonSocket() string {
	return filepath.Join(RuntimeDir(), SocketName)
}

// BadgeDir returns the runtime directory for per-window badge files,
// watched by status-bar consumers.
func BadgeDir() string {
	return filepath.Join(RuntimeDir(), "i3pm-badges")
}

// ProjectsDir returns the directory holding per-project JSON files.
func ProjectsDir() string {
	return filepath.Join(ConfigDir(), "projects")
}

// LayoutsDir returns the layout snapshot directory for a project.
func LayoutsDir(project string) string {
	return filepath.Join(ConfigDir(), "layouts", project)
}

// CompositorSocket resolves the compositor IPC socket path from the
// environment. Sway exports SWAYSOCK; i3 exports I3SOCK.
func CompositorSocket() (string, error) {
	if sock := os.Getenv("SWAYSOCK"); sock != "" {
		return sock, nil
	}
	if sock := os.Getenv("I3SOCK"); sock != "" {
		return sock, nil
	}
	return "", fmt.Errorf("neither SWAYSOCK nor I3SOCK is set")
}
