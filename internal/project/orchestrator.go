// Package project orchestrates the project lifecycle: the switch pipeline
// with scoped-window filtering, focus restoration, auto-save/auto-restore,
// and project CRUD.
package project

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/correlation"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/events"
	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/layout"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/outputs"
	"github.com/vpittamp/i3pm/internal/scratchpad"
	"github.com/vpittamp/i3pm/internal/state"
)

// UsageSink records project switches durably.
type UsageSink interface {
	Record(project string, at time.Time) error
}

// Orchestrator drives the switch pipeline.
type Orchestrator struct {
	store    *state.Store
	conn     ipc.Conn
	engine   *layout.Engine
	layouts  *layout.Persistence
	recorder *events.Recorder
	corr     *correlation.Service
	focus    *state.FocusPersistence
	cfg      *config.Store
	daemon   config.Config
	usage    UsageSink

	// switchMu serialises switches: a switch in flight blocks the next.
	switchMu sync.Mutex
	now      func() time.Time
}

// Config wires the orchestrator.
type Config struct {
	Store    *state.Store
	Conn     ipc.Conn
	Engine   *layout.Engine
	Layouts  *layout.Persistence
	Recorder *events.Recorder
	Corr     *correlation.Service
	Focus    *state.FocusPersistence
	CfgStore *config.Store
	Daemon   config.Config
	Usage    UsageSink
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		store:    cfg.Store,
		conn:     cfg.Conn,
		engine:   cfg.Engine,
		layouts:  cfg.Layouts,
		recorder: cfg.Recorder,
		corr:     cfg.Corr,
		focus:    cfg.Focus,
		cfg:      cfg.CfgStore,
		daemon:   cfg.Daemon,
		usage:    cfg.Usage,
		now:      time.Now,
	}
}

// Switch runs the full project switch pipeline. It is the central
// choreography: auto-save, filter, mark, restore, auto-restore, focus.
func (o *Orchestrator) Switch(ctx context.Context, newProject string) error {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	old := o.store.ActiveProject()
	if old == newProject {
		log.Debug(log.CatProject, "switch to active project is a no-op", "project", newProject)
		return nil
	}

	target, ok := o.store.Project(newProject)
	if !ok {
		return errdefs.Configuration(errdefs.CodeUnknownProject, "unknown project %q", newProject).
			WithSuggestion("run 'i3pm project list' to see configured projects")
	}

	ctx, cc := o.corr.NewRoot(ctx, "project::switch")
	o.recorder.Emit(ctx, "project.switching", map[string]any{
		"from": old, "to": newProject,
	}, nil)
	log.Info(log.CatProject, "switching project", "from", old, "to", newProject, "correlation", cc.CorrelationID)

	// Auto-save the outgoing project's layout.
	if old != "" {
		if oldProject, ok := o.store.Project(old); ok && oldProject.AutoSave {
			o.autoSave(ctx, &oldProject)
		}
	}

	if err := o.store.SetActiveProject(newProject); err != nil {
		return err
	}
	if o.usage != nil {
		if err := o.usage.Record(newProject, o.now()); err != nil {
			log.ErrorErr(log.CatProject, "usage record failed", err)
		}
	}

	childCtx := o.corr.EnterChild(ctx)

	// Filter: hide scoped windows of other projects, mark the new
	// project's windows. Global windows are untouched; floating scoped
	// windows follow the same rule as tiled ones.
	o.filterScoped(childCtx, newProject)

	// Restore the new project's hidden windows out of the scratchpad.
	o.restoreHidden(childCtx, newProject)

	// Auto-restore the newest auto-save, when configured.
	if target.AutoRestore {
		o.autoRestore(childCtx, &target)
	}

	// Focus restoration from the persisted focus state.
	o.restoreFocus(childCtx, newProject)

	if err := o.focus.SaveActiveProject(newProject); err != nil {
		log.ErrorErr(log.CatProject, "persisting active project failed", err)
	}

	o.recorder.Emit(ctx, "project.switched", map[string]any{
		"from": old, "to": newProject,
	}, nil)
	log.Info(log.CatProject, "project switched", "project", newProject)
	return nil
}

func (o *Orchestrator) autoSave(ctx context.Context, p *state.Project) {
	name := layout.AutoSaveName(o.now())
	snapshot := o.engine.Capture(p.Name, name, o.now())
	if err := o.layouts.Save(snapshot); err != nil {
		log.ErrorErr(log.CatLayout, "auto-save failed", err, "project", p.Name)
		return
	}
	o.recorder.Emit(ctx, "layout.auto_saved", map[string]any{
		"project": p.Name, "name": name,
	}, nil)

	keep := p.AutoSaveKeep
	if keep <= 0 {
		keep = o.daemon.AutoSaveKeep
	}
	// Pruning is best-effort and off the switch's critical path.
	go o.layouts.PruneAutoSaves(p.Name, keep)
}

// filterScoped hides scoped windows of other projects and repairs marks
// on the new project's windows.
func (o *Orchestrator) filterScoped(ctx context.Context, newProject string) {
	for _, w := range o.store.Windows() {
		if w.Scope != state.ScopeScoped {
			continue
		}
		if w.Project != newProject {
			if w.WorkspaceNum == 0 {
				continue // already hidden
			}
			if err := scratchpad.Hide(ctx, o.conn, w.WindowID); err != nil {
				log.ErrorErr(log.CatProject, "hide failed", err, "window", w.WindowID)
				continue
			}
			w.WorkspaceNum = 0
			w.Visible = false
			if err := o.store.UpsertWindow(&w); err != nil {
				log.ErrorErr(log.CatState, "store update after hide failed", err, "window", w.WindowID)
			}
			o.recorder.Emit(ctx, "window.hidden", map[string]any{
				"window_id": w.WindowID, "project": w.Project,
			}, nil)
			continue
		}

		// Ensure the unified mark on the current project's windows.
		mark := state.ScopedMark(w.Project, w.WindowID)
		if !contains(w.Marks, mark) {
			cmd := fmt.Sprintf("[con_id=%d] mark --add %s", w.WindowID, mark)
			if err := o.conn.RunCommand(ctx, cmd); err != nil {
				log.ErrorErr(log.CatProject, "mark failed", err, "window", w.WindowID)
				continue
			}
			if _, err := o.store.EnsureMark(w.WindowID); err != nil {
				log.ErrorErr(log.CatState, "ensure mark failed", err, "window", w.WindowID)
			}
		}
	}
}

// restoreHidden shows the new project's scratchpad-hidden windows. A
// window hidden before the switch whose project does not match stays
// hidden.
func (o *Orchestrator) restoreHidden(ctx context.Context, newProject string) {
	fs := o.store.FocusSnapshot()
	for _, w := range o.store.WindowsOfProject(newProject) {
		if w.WorkspaceNum != 0 {
			continue // already visible
		}
		target := fs.ProjectFocusedWorkspace[newProject]
		if target == 0 {
			target = 1
		}
		if err := scratchpad.Show(ctx, o.conn, w.WindowID, target); err != nil {
			log.ErrorErr(log.CatProject, "restore failed", err, "window", w.WindowID)
			continue
		}
		w.WorkspaceNum = target
		w.Visible = true
		if err := o.store.UpsertWindow(&w); err != nil {
			log.ErrorErr(log.CatState, "store update after restore failed", err, "window", w.WindowID)
		}
		o.recorder.Emit(ctx, "window.restored", map[string]any{
			"window_id": w.WindowID, "project": newProject, "workspace": target,
		}, nil)
	}
}

func (o *Orchestrator) autoRestore(ctx context.Context, p *state.Project) {
	latest, err := o.layouts.LatestAutoSave(p.Name)
	if err != nil || latest == "" {
		return
	}
	snapshot, err := o.layouts.Load(p.Name, latest)
	if err != nil {
		log.ErrorErr(log.CatLayout, "auto-restore load failed", err, "project", p.Name)
		return
	}
	result := o.engine.Restore(ctx, snapshot)
	o.recorder.Emit(ctx, "layout.auto_restored", map[string]any{
		"project": p.Name, "name": latest,
		"swallowed": result.WindowsSwallowed, "errors": result.Errors,
	}, nil)
}

func (o *Orchestrator) restoreFocus(ctx context.Context, project string) {
	fs := o.store.FocusSnapshot()
	wsNum, ok := fs.ProjectFocusedWorkspace[project]
	if !ok {
		return
	}
	if err := o.conn.RunCommand(ctx, fmt.Sprintf("workspace number %d", wsNum)); err != nil {
		log.ErrorErr(log.CatProject, "focus workspace failed", err, "workspace", wsNum)
		return
	}
	if windowID, ok := fs.WorkspaceFocusedWindow[wsNum]; ok {
		if err := o.conn.RunCommand(ctx, fmt.Sprintf("[con_id=%d] focus", windowID)); err != nil {
			log.ErrorErr(log.CatProject, "focus window failed", err, "window", windowID)
		}
	}
}

// ReconcileOutputs re-runs the role resolver after a topology change and
// moves declared workspaces onto their assigned outputs.
func (o *Orchestrator) ReconcileOutputs(ctx context.Context) error {
	outs, err := o.conn.GetOutputs(ctx)
	if err != nil {
		return err
	}

	models := make([]state.Output, 0, len(outs))
	for _, out := range outs {
		models = append(models, state.Output{
			Name:   out.Name,
			Active: out.Active,
			Width:  out.Rect.Width,
			Height: out.Rect.Height,
			Scale:  out.Scale,
		})
	}

	byRole := outputs.Resolve(models, o.daemon.OutputPreferences)
	o.store.SetOutputs(outputs.ApplyRoles(models, byRole))

	assignment := outputs.AssignWorkspaces(byRole, o.cfg.Applications(), o.cfg.PWAs(), o.cfg.WorkspaceConfig())
	for wsNum, outputName := range assignment {
		for _, ws := range o.store.Workspaces() {
			if ws.Num == wsNum && ws.Output != outputName {
				cmd := fmt.Sprintf("workspace number %d; move workspace to output %s", wsNum, outputName)
				if err := o.conn.RunCommand(ctx, cmd); err != nil {
					log.ErrorErr(log.CatOutputs, "workspace move failed", err, "workspace", wsNum, "output", outputName)
				}
			}
		}
	}

	o.recorder.Emit(ctx, "output.reconciled", map[string]any{
		"roles": byRole, "workspaces": assignment,
	}, nil)
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
