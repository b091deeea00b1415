// Package scratchpad manages the hidden per-project terminals and the
// scratchpad-based hiding of scoped windows.
package scratchpad

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"
)

// Terminal is one tracked scratchpad terminal.
type Terminal struct {
	Project  string `json:"project"` // project name or "global"
	PID      int    `json:"pid"`
	WindowID int64  `json:"window_id,omitempty"`
	Command  string `json:"command"`
	Shown    bool   `json:"shown"`
}

// Manager owns the terminal registry. At most one terminal per project
// name, the "global" sentinel included.
type Manager struct {
	mu        sync.Mutex
	terminals map[string]*Terminal

	conn ipc.Conn
	cfg  config.TerminalConfig

	// spawn starts the terminal process; swapped in tests. Returns the
	// child pid.
	spawn func(ctx context.Context, name string, args ...string) (int, error)
	// alive reports whether a pid still exists.
	alive func(pid int) bool
	// lookPath resolves emulator binaries; swapped in tests.
	lookPath func(file string) (string, error)
}

// NewManager creates a manager.
func NewManager(conn ipc.Conn, cfg config.TerminalConfig) *Manager {
	return &Manager{
		terminals: make(map[string]*Terminal),
		conn:      conn,
		cfg:       cfg,
		spawn:     spawnProcess,
		alive:     pidAlive,
		lookPath:  exec.LookPath,
	}
}

func spawnProcess(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap the child in the background so it never zombifies.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 probes existence without delivering anything.
	return syscall.Kill(pid, 0) == nil
}

// terminalCommand resolves the emulator binary: the configured preferred
// emulator when installed, otherwise the fallback.
func (m *Manager) terminalCommand() (string, error) {
	for _, candidate := range []string{m.cfg.Preferred, m.cfg.Fallback} {
		if candidate == "" {
			continue
		}
		if _, err := m.lookPath(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errdefs.Configuration(errdefs.CodeConfigMissing,
		"no terminal emulator found (tried %q, %q)", m.cfg.Preferred, m.cfg.Fallback).
		WithSuggestion("install the configured terminal or set terminal.preferred in config.yaml")
}

// Launch starts the scratchpad terminal for a project. A second launch
// while the first terminal's process is alive is a validation error and
// spawns nothing.
func (m *Manager) Launch(ctx context.Context, project *state.Project) (*Terminal, error) {
	name := state.GlobalProject
	dir := ""
	if project != nil {
		name = project.Name
		dir = project.Directory
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()

	if existing, ok := m.terminals[name]; ok {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "terminal already exists").
			WithContext("project", name).
			WithContext("pid", existing.PID)
	}

	bin, err := m.terminalCommand()
	if err != nil {
		return nil, err
	}

	args := terminalArgs(bin, dir, name)
	pid, err := m.spawn(ctx, bin, args...)
	if err != nil {
		return nil, errdefs.Filesystem(err, "spawning terminal %q", bin)
	}

	term := &Terminal{
		Project: name,
		PID:     pid,
		Command: bin,
		Shown:   true,
	}
	m.terminals[name] = term
	log.Info(log.CatScratchpad, "terminal launched", "project", name, "pid", pid, "cmd", bin)
	return term, nil
}

// terminalArgs builds emulator arguments. Both supported emulators accept
// a working directory and an X11/Wayland class hint; the class carries the
// project so the matcher can adopt the window.
func terminalArgs(bin, dir, project string) []string {
	class := "i3pm-scratchpad-" + project
	switch bin {
	case "ghostty":
		args := []string{"--class=" + class}
		if dir != "" {
			args = append(args, "--working-directory="+dir)
		}
		return args
	default: // alacritty and compatibles
		args := []string{"--class", class}
		if dir != "" {
			args = append(args, "--working-directory", dir)
		}
		return args
	}
}

// Adopt associates a newly matched window with its terminal.
func (m *Manager) Adopt(project string, windowID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if term, ok := m.terminals[project]; ok && term.WindowID == 0 {
		term.WindowID = windowID
	}
}

// Toggle cycles the project's terminal between shown and hidden.
func (m *Manager) Toggle(ctx context.Context, project string) error {
	m.mu.Lock()
	term, ok := m.terminals[project]
	if ok && !m.alive(term.PID) {
		delete(m.terminals, project)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return errdefs.Validation(errdefs.CodeValidationFailed, "no terminal for project %q", project).
			WithSuggestion("launch one with 'i3pm run terminal'")
	}
	if term.WindowID == 0 {
		return errdefs.State(errdefs.CodeNotInitialized, "terminal window for %q not yet adopted", project)
	}

	var cmd string
	if term.Shown {
		cmd = fmt.Sprintf("[con_id=%d] move scratchpad", term.WindowID)
	} else {
		cmd = fmt.Sprintf("[con_id=%d] scratchpad show", term.WindowID)
	}
	if err := m.conn.RunCommand(ctx, cmd); err != nil {
		return err
	}

	m.mu.Lock()
	term.Shown = !term.Shown
	m.mu.Unlock()
	log.Debug(log.CatScratchpad, "terminal toggled", "project", project, "shown", term.Shown)
	return nil
}

// Hide moves an arbitrary window to the scratchpad (project filtering).
func Hide(ctx context.Context, conn ipc.Conn, windowID int64) error {
	return conn.RunCommand(ctx, fmt.Sprintf("[con_id=%d] move scratchpad", windowID))
}

// Show restores a window from the scratchpad onto a workspace.
func Show(ctx context.Context, conn ipc.Conn, windowID int64, workspaceNum int) error {
	cmd := fmt.Sprintf("[con_id=%d] scratchpad show; [con_id=%d] floating disable; [con_id=%d] move container to workspace number %d",
		windowID, windowID, windowID, workspaceNum)
	return conn.RunCommand(ctx, cmd)
}

// Cleanup drops terminals whose process no longer exists.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	for name, term := range m.terminals {
		if !m.alive(term.PID) {
			delete(m.terminals, name)
			log.Debug(log.CatScratchpad, "terminal reaped", "project", name, "pid", term.PID)
		}
	}
}

// Terminals returns a snapshot of tracked terminals.
func (m *Manager) Terminals() []Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Terminal, 0, len(m.terminals))
	for _, t := range m.terminals {
		out = append(out, *t)
	}
	return out
}

// EnvForTerminal returns the I3PM_* variables that identify a scratchpad
// terminal to Tier 1. Launch does not set them on the spawned process.
func EnvForTerminal(project string) map[string]string {
	return map[string]string{
		proc.EnvAppName:    "terminal",
		proc.EnvScope:      string(state.ScopeScoped),
		proc.EnvScratchpad: "true",
		proc.EnvProjectName: project,
	}
}
