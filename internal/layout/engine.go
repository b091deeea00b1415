package layout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"
)

// Launcher spawns an application through the launcher contract: the
// pending launch is notified first so the resulting window correlates.
type Launcher interface {
	Launch(ctx context.Context, app config.Application, project *state.Project, workspaceNum int) error
}

// Engine captures and restores layouts.
type Engine struct {
	store *state.Store
	conn  ipc.Conn
	env   proc.Environment
	cfg   *config.Store
	spawn Launcher

	// placeholderWait bounds how long a restore waits for launched
	// windows to appear.
	placeholderWait time.Duration
	pollInterval    time.Duration
}

// NewEngine wires the layout engine.
func NewEngine(store *state.Store, conn ipc.Conn, env proc.Environment, cfg *config.Store, spawn Launcher) *Engine {
	return &Engine{
		store:           store,
		conn:            conn,
		env:             env,
		cfg:             cfg,
		spawn:           spawn,
		placeholderWait: 10 * time.Second,
		pollInterval:    250 * time.Millisecond,
	}
}

// Capture builds a snapshot of a project's windows: ordered workspaces,
// per workspace ordered windows.
func (e *Engine) Capture(project string, name string, at time.Time) *Snapshot {
	windows := e.store.WindowsOfProject(project)

	byWS := make(map[int][]WindowPlaceholder)
	for _, w := range windows {
		if w.WorkspaceNum == 0 {
			// Hidden in the scratchpad; not part of a visible layout.
			continue
		}
		ph := WindowPlaceholder{
			Class:           w.MatchClass(),
			Instance:        w.Instance,
			TitlePattern:    w.Title,
			Floating:        w.IsFloating,
			Focused:         w.Focused,
			Marks:           append([]string(nil), w.Marks...),
			RestorationMark: state.ScopedMark(project, w.WindowID),
		}
		if app, ok := e.cfg.Applications().ByClass(w.Class, w.AppID, w.Instance); ok {
			ph.AppRegistryName = app.Name
			ph.LaunchCommand = app.Command
		}
		if w.I3PMEnv != nil {
			if name := w.I3PMEnv[proc.EnvAppName]; name != "" {
				ph.AppRegistryName = name
			}
			if cwd := w.I3PMEnv[proc.EnvWorkingDir]; cwd != "" {
				ph.CWD = cwd
			}
		}
		if len(ph.Marks) > 0 {
			ph.MarksMetadata = &MarksMetadata{Project: project}
		}
		byWS[w.WorkspaceNum] = append(byWS[w.WorkspaceNum], ph)
	}

	nums := make([]int, 0, len(byWS))
	for num := range byWS {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	snapshot := &Snapshot{
		Version:    1,
		Project:    project,
		Name:       name,
		CapturedAt: at,
	}
	wss := e.store.Workspaces()
	wsByNum := make(map[int]state.Workspace, len(wss))
	for _, ws := range wss {
		wsByNum[ws.Num] = ws
	}
	for _, num := range nums {
		wl := WorkspaceLayout{Num: num, Windows: byWS[num]}
		if ws, ok := wsByNum[num]; ok {
			wl.Name = ws.Name
			wl.Output = ws.Output
		}
		snapshot.Workspaces = append(snapshot.Workspaces, wl)
	}

	log.Info(log.CatLayout, "layout captured",
		"project", project, "name", name, "workspaces", len(snapshot.Workspaces))
	return snapshot
}

// Restore applies a snapshot idempotently: apps already running (detected
// by I3PM_APP_NAME over the live tree) are never launched a second time.
func (e *Engine) Restore(ctx context.Context, s *Snapshot) RestoreResult {
	result := RestoreResult{Errors: []string{}}

	running := e.runningApps(ctx)

	// Determine the app set needed per workspace and launch the missing.
	type pendingSlot struct {
		app config.Application
		ws  int
	}
	var launched []pendingSlot
	for _, wl := range s.Workspaces {
		for _, ph := range wl.Windows {
			appName := ph.AppRegistryName
			if appName == "" {
				// Unmanaged window; nothing to relaunch.
				continue
			}
			if running[appName] {
				result.SkippedRunning = append(result.SkippedRunning, appName)
				continue
			}
			app, ok := e.cfg.Applications().ByName(appName)
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("unknown app %q", appName))
				continue
			}
			var project *state.Project
			if p, ok := e.store.Project(s.Project); ok {
				project = &p
			}
			if err := e.spawn.Launch(ctx, app, project, wl.Num); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("launching %q: %v", appName, err))
				continue
			}
			running[appName] = true // never launch twice within one restore
			launched = append(launched, pendingSlot{app: app, ws: wl.Num})
			result.Launched = append(result.Launched, appName)
		}
	}

	// Bounded wait for the launched windows to appear, then apply
	// geometry and restoration marks.
	if len(launched) > 0 {
		names := make(map[string]bool, len(launched))
		for _, slot := range launched {
			names[slot.app.Name] = true
		}
		e.waitForApps(ctx, names)
	}
	result.WindowsSwallowed = e.applyPlaceholders(ctx, s)

	result.Success = len(result.Errors) == 0
	log.Info(log.CatLayout, "layout restored",
		"project", s.Project, "name", s.Name,
		"launched", len(result.Launched), "swallowed", result.WindowsSwallowed,
		"errors", len(result.Errors))
	return result
}

// runningApps scans the full tree for I3PM_APP_NAME environment markers.
func (e *Engine) runningApps(ctx context.Context) map[string]bool {
	running := make(map[string]bool)
	tree, err := e.conn.GetTree(ctx)
	if err != nil {
		log.ErrorErr(log.CatLayout, "restore: tree scan failed", err)
		return running
	}
	tree.Walk(func(n *ipc.Node) {
		if !n.IsWindow() || n.PID <= 0 {
			return
		}
		res := e.env.Read(ctx, n.PID)
		if name := res.Env[proc.EnvAppName]; name != "" {
			running[name] = true
		}
	})
	return running
}

// waitForApps polls the tree until every launched app has a window or the
// bounded wait elapses.
func (e *Engine) waitForApps(ctx context.Context, names map[string]bool) {
	deadline := time.Now().Add(e.placeholderWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.pollInterval):
		}
		running := e.runningApps(ctx)
		allUp := true
		for name := range names {
			if !running[name] {
				allUp = false
				break
			}
		}
		if allUp {
			return
		}
	}
	log.Warn(log.CatLayout, "restore: placeholder wait elapsed")
}

// applyPlaceholders matches live windows to placeholders and applies
// geometry and restoration marks. Returns the number of windows swallowed.
func (e *Engine) applyPlaceholders(ctx context.Context, s *Snapshot) int {
	tree, err := e.conn.GetTree(ctx)
	if err != nil {
		log.ErrorErr(log.CatLayout, "restore: tree refresh failed", err)
		return 0
	}

	var live []*ipc.Node
	tree.Walk(func(n *ipc.Node) {
		if n.IsWindow() {
			live = append(live, n)
		}
	})

	claimed := make(map[int64]bool)
	swallowed := 0
	for _, wl := range s.Workspaces {
		for _, ph := range wl.Windows {
			node := matchPlaceholder(live, claimed, ph)
			if node == nil {
				continue
			}
			claimed[node.ID] = true
			swallowed++

			cmd := fmt.Sprintf("[con_id=%d] move container to workspace number %d", node.ID, wl.Num)
			if err := e.conn.RunCommand(ctx, cmd); err != nil {
				log.ErrorErr(log.CatLayout, "restore: move failed", err, "window", node.ID)
				continue
			}
			if ph.Floating {
				float := fmt.Sprintf("[con_id=%d] floating enable, resize set %d %d, move position %d %d",
					node.ID, ph.Geometry.Width, ph.Geometry.Height, ph.Geometry.X, ph.Geometry.Y)
				if err := e.conn.RunCommand(ctx, float); err != nil {
					log.ErrorErr(log.CatLayout, "restore: geometry failed", err, "window", node.ID)
				}
			}
			if ph.RestorationMark != "" {
				mark := fmt.Sprintf("[con_id=%d] mark --add %s", node.ID, ph.RestorationMark)
				if err := e.conn.RunCommand(ctx, mark); err != nil {
					log.ErrorErr(log.CatLayout, "restore: mark failed", err, "window", node.ID)
				}
			}
		}
	}
	return swallowed
}

// matchPlaceholder finds the first unclaimed live window matching the
// placeholder's class and, when set, instance.
func matchPlaceholder(live []*ipc.Node, claimed map[int64]bool, ph WindowPlaceholder) *ipc.Node {
	for _, n := range live {
		if claimed[n.ID] {
			continue
		}
		if n.Class() != ph.Class {
			continue
		}
		if ph.Instance != "" && n.Instance() != ph.Instance {
			continue
		}
		return n
	}
	return nil
}
