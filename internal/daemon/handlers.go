package daemon

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vpittamp/i3pm/internal/badges"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/launch"
	"github.com/vpittamp/i3pm/internal/layout"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/project"
	"github.com/vpittamp/i3pm/internal/state"
	"github.com/vpittamp/i3pm/internal/wsmode"
)

// decode unmarshals params into v, translating failures to validation
// errors.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return errdefs.Validation(errdefs.CodeMissingParam, "params are required")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return errdefs.Validation(errdefs.CodeValidationFailed, "invalid params: %v", err)
	}
	return nil
}

// registerHandlers installs the stable RPC surface.
func (d *Daemon) registerHandlers() {
	s := d.server

	s.Register("get_status", d.rpcGetStatus)
	s.Register("get_windows", d.rpcGetWindows)
	s.Register("get_events", d.rpcGetEvents)
	s.Register("get_marks", d.rpcGetMarks)
	s.Register("get_active_project", d.rpcGetActiveProject)
	s.Register("set_active_project", d.rpcSetActiveProject)

	s.Register("notify_launch", d.rpcNotifyLaunch)
	s.Register("get_launch_stats", d.rpcGetLaunchStats)
	s.Register("get_pending_launches", d.rpcGetPendingLaunches)
	s.Register("classify_window", d.rpcClassifyWindow)

	s.Register("get_window_rules", d.rpcGetWindowRules)
	s.Register("get_workspace_config", d.rpcGetWorkspaceConfig)
	s.Register("get_monitor_config", d.rpcGetMonitorConfig)
	s.Register("reload_window_rules", d.rpcReloadConfig)

	s.Register("workspace_mode.enter", d.rpcWSModeEnter)
	s.Register("workspace_mode.digit", d.rpcWSModeDigit)
	s.Register("workspace_mode.add_char", d.rpcWSModeAddChar)
	s.Register("workspace_mode.nav", d.rpcWSModeNav)
	s.Register("workspace_mode.delete", d.rpcWSModeDelete)
	s.Register("workspace_mode.execute", d.rpcWSModeExecute)
	s.Register("workspace_mode.cancel", d.rpcWSModeCancel)
	s.Register("workspace_mode.state", d.rpcWSModeState)
	s.Register("workspace_mode.history", d.rpcWSModeHistory)

	s.Register("layout.save", d.rpcLayoutSave)
	s.Register("layout.restore", d.rpcLayoutRestore)
	s.Register("layout.auto_save.trigger", d.rpcLayoutAutoSave)

	s.Register("badges.create", d.rpcBadgesCreate)
	s.Register("badges.clear", d.rpcBadgesClear)
	s.Register("badges.snapshot", d.rpcBadgesSnapshot)

	s.Register("scratchpad.launch", d.rpcScratchpadLaunch)
	s.Register("scratchpad.toggle", d.rpcScratchpadToggle)

	s.Register("project.list", d.rpcProjectList)
	s.Register("project.create", d.rpcProjectCreate)
	s.Register("project.delete", d.rpcProjectDelete)
	s.Register("project.edit", d.rpcProjectEdit)

	s.Register("run_app", d.rpcRunApp)

	s.Register("validate_environment_coverage", d.rpcCoverage)
	s.Register("get_health", d.rpcGetHealth)
	s.Register("benchmark.environ", d.rpcBenchmarkEnviron)
}

func (d *Daemon) rpcGetStatus(ctx context.Context, _ json.RawMessage) (any, error) {
	summary := d.store.Summary()
	summary["uptime_seconds"] = int(time.Since(d.startedAt).Seconds())
	summary["subscribers"] = d.server.SubscriberCount()
	summary["launch_stats"] = d.registry.Stats()
	summary["correlation"] = d.corr.Stats()
	summary["environ_latency"] = d.env.Stats()
	return summary, nil
}

func (d *Daemon) rpcGetWindows(ctx context.Context, params json.RawMessage) (any, error) {
	var filter struct {
		Project   string `json:"project,omitempty"`
		Workspace int    `json:"workspace,omitempty"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &filter); err != nil {
			return nil, errdefs.Validation(errdefs.CodeValidationFailed, "invalid params: %v", err)
		}
	}
	switch {
	case filter.Project != "":
		return d.store.WindowsOfProject(filter.Project), nil
	case filter.Workspace != 0:
		return d.store.WindowsOnWorkspace(filter.Workspace), nil
	default:
		return d.store.Windows(), nil
	}
}

func (d *Daemon) rpcGetEvents(ctx context.Context, params json.RawMessage) (any, error) {
	var opts struct {
		Limit int `json:"limit,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &opts)
	}
	if opts.Limit > 0 {
		return d.recorder.Ring().LastN(opts.Limit), nil
	}
	return d.recorder.Ring().All(), nil
}

func (d *Daemon) rpcGetMarks(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.client.GetMarks(ctx)
}

func (d *Daemon) rpcGetActiveProject(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]string{"project_name": d.store.ActiveProject()}, nil
}

func (d *Daemon) rpcSetActiveProject(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		ProjectName string `json:"project_name"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if req.ProjectName == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "project_name is required")
	}
	if err := d.orch.Switch(ctx, req.ProjectName); err != nil {
		return nil, err
	}
	return map[string]string{"project_name": req.ProjectName}, nil
}

func (d *Daemon) rpcNotifyLaunch(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		AppName       string  `json:"app_name"`
		ProjectName   string  `json:"project_name,omitempty"`
		ProjectDir    string  `json:"project_dir,omitempty"`
		LauncherPID   int     `json:"launcher_pid"`
		WorkspaceNum  int     `json:"workspace_num,omitempty"`
		ExpectedClass string  `json:"expected_class"`
		Timestamp     float64 `json:"timestamp,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	ts := time.Time{}
	if req.Timestamp > 0 {
		sec := int64(req.Timestamp)
		ts = time.Unix(sec, int64((req.Timestamp-float64(sec))*1e9))
	}
	launchID, err := d.registry.NotifyLaunch(
		req.AppName, req.ProjectName, req.ProjectDir,
		req.LauncherPID, req.WorkspaceNum, req.ExpectedClass, ts,
	)
	if err != nil {
		return nil, err
	}
	d.recorder.Emit(ctx, "launch.notified", map[string]any{
		"launch_id": launchID, "app": req.AppName, "project": req.ProjectName,
	}, nil)
	return map[string]string{"launch_id": launchID}, nil
}

func (d *Daemon) rpcGetLaunchStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.registry.Stats(), nil
}

func (d *Daemon) rpcGetPendingLaunches(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.registry.Pending(), nil
}

// rpcClassifyWindow runs the matcher against a live or hypothetical
// window and returns the verdict plus PWA configuration guidance.
func (d *Daemon) rpcClassifyWindow(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		WindowID int64  `json:"window_id,omitempty"`
		Class    string `json:"class,omitempty"`
		Instance string `json:"instance,omitempty"`
		PID      int    `json:"pid,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	var w state.Window
	if req.WindowID != 0 {
		stored, ok := d.store.Window(req.WindowID)
		if !ok {
			return nil, errdefs.State(errdefs.CodeNotInitialized, "window %d not known", req.WindowID)
		}
		w = stored
	} else {
		w = state.Window{WindowID: -1, Class: req.Class, Instance: req.Instance, PID: req.PID, Scope: state.ScopeGlobal}
	}

	c := d.matcher.Classify(ctx, &w)
	result := map[string]any{"classification": c}
	if g, ok := launch.GuidanceFor(w.MatchClass(), w.Instance); ok {
		result["guidance"] = g
	}
	return result, nil
}

func (d *Daemon) rpcGetWindowRules(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.cfgStore.Rules(), nil
}

func (d *Daemon) rpcGetWorkspaceConfig(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.cfgStore.WorkspaceConfig(), nil
}

func (d *Daemon) rpcGetMonitorConfig(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{
		"outputs":     d.store.Outputs(),
		"preferences": d.cfg.OutputPreferences,
	}, nil
}

func (d *Daemon) rpcReloadConfig(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := d.cfgStore.Reload(); err != nil {
		return nil, err
	}
	d.store.SetProjects(d.cfgStore.Projects())
	d.recorder.Emit(ctx, "config.reloaded", nil, nil)
	return map[string]any{"rules": len(d.cfgStore.Rules())}, nil
}

func (d *Daemon) rpcWSModeEnter(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	ctx, _ = d.corr.NewRoot(ctx, "workspace_mode::enter")
	if err := d.machine.Enter(ctx, wsmode.ModeType(req.Mode), nil); err != nil {
		return nil, err
	}
	return d.machine.State(), nil
}

func (d *Daemon) rpcWSModeDigit(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Digit string `json:"digit"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if err := d.machine.Digit(ctx, req.Digit); err != nil {
		return nil, err
	}
	return d.machine.State(), nil
}

func (d *Daemon) rpcWSModeAddChar(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Char string `json:"char"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if err := d.machine.AddChar(ctx, req.Char); err != nil {
		return nil, err
	}
	return d.machine.State(), nil
}

func (d *Daemon) rpcWSModeNav(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	return nil, d.machine.Nav(ctx, req.Direction)
}

func (d *Daemon) rpcWSModeDelete(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, d.machine.Delete(ctx)
}

func (d *Daemon) rpcWSModeExecute(ctx context.Context, _ json.RawMessage) (any, error) {
	ctx, _ = d.corr.NewRoot(ctx, "workspace_mode::execute")
	if err := d.machine.Execute(ctx); err != nil {
		return nil, err
	}
	return map[string]bool{"executed": true}, nil
}

func (d *Daemon) rpcWSModeCancel(ctx context.Context, _ json.RawMessage) (any, error) {
	d.machine.Cancel(ctx)
	return map[string]bool{"cancelled": true}, nil
}

func (d *Daemon) rpcWSModeState(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.machine.State(), nil
}

func (d *Daemon) rpcWSModeHistory(ctx context.Context, params json.RawMessage) (any, error) {
	var opts struct {
		Limit int `json:"limit,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	ring := d.machine.History(opts.Limit)
	if len(ring) >= opts.Limit {
		return ring, nil
	}
	// Backfill from the durable store when the in-memory ring is short
	// (daemon restarted recently).
	rows, err := d.history.Recent(opts.Limit)
	if err != nil {
		return ring, nil
	}
	merged := make([]wsmode.Switch, 0, opts.Limit)
	merged = append(merged, ring...)
	for _, row := range rows {
		if len(merged) >= opts.Limit {
			break
		}
		sw := wsmode.Switch{
			WorkspaceNum: row.WorkspaceNum,
			OutputName:   row.OutputName,
			Timestamp:    time.Unix(row.SwitchedAt, 0),
			ModeType:     wsmode.ModeType(row.ModeType),
		}
		if !containsSwitch(merged, sw) {
			merged = append(merged, sw)
		}
	}
	return merged, nil
}

func containsSwitch(list []wsmode.Switch, sw wsmode.Switch) bool {
	for _, s := range list {
		if s.WorkspaceNum == sw.WorkspaceNum && s.Timestamp.Unix() == sw.Timestamp.Unix() {
			return true
		}
	}
	return false
}

func (d *Daemon) rpcLayoutSave(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Project string `json:"project,omitempty"`
		Name    string `json:"name"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if req.Project == "" {
		req.Project = d.store.ActiveProject()
	}
	if req.Project == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "no project given and none active")
	}
	if req.Name == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "name is required")
	}
	snapshot := d.engine.Capture(req.Project, req.Name, time.Now())
	if err := d.layouts.Save(snapshot); err != nil {
		return nil, err
	}
	d.recorder.Emit(ctx, "layout.saved", map[string]any{"project": req.Project, "name": req.Name}, nil)
	return map[string]any{"project": req.Project, "name": req.Name, "workspaces": len(snapshot.Workspaces)}, nil
}

func (d *Daemon) rpcLayoutRestore(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Project string `json:"project,omitempty"`
		Name    string `json:"name"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if req.Project == "" {
		req.Project = d.store.ActiveProject()
	}
	snapshot, err := d.layouts.Load(req.Project, req.Name)
	if err != nil {
		return nil, err
	}
	ctx, _ = d.corr.NewRoot(ctx, "layout::restore")
	result := d.engine.Restore(ctx, snapshot)
	d.recorder.Emit(ctx, "layout.restored", map[string]any{
		"project": req.Project, "name": req.Name, "swallowed": result.WindowsSwallowed,
	}, nil)
	return result, nil
}

func (d *Daemon) rpcLayoutAutoSave(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Project string `json:"project,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &req)
	}
	if req.Project == "" {
		req.Project = d.store.ActiveProject()
	}
	if req.Project == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "no project given and none active")
	}
	p, ok := d.store.Project(req.Project)
	if !ok {
		return nil, errdefs.Configuration(errdefs.CodeUnknownProject, "unknown project %q", req.Project)
	}
	name := layout.AutoSaveName(time.Now())
	snapshot := d.engine.Capture(p.Name, name, time.Now())
	if err := d.layouts.Save(snapshot); err != nil {
		return nil, err
	}
	keep := p.AutoSaveKeep
	if keep <= 0 {
		keep = d.cfg.AutoSaveKeep
	}
	go d.layouts.PruneAutoSaves(p.Name, keep)
	return map[string]string{"name": name}, nil
}

func (d *Daemon) rpcBadgesCreate(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		WindowID int64  `json:"window_id"`
		Source   string `json:"source,omitempty"`
		State    string `json:"state,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if req.State == "" {
		req.State = string(badges.StateStopped)
	}
	project := ""
	if w, ok := d.store.Window(req.WindowID); ok {
		project = w.Project
	}
	badge, err := d.badges.CreateOrIncrement(req.WindowID, req.Source, badges.State(req.State), project)
	if err != nil {
		return nil, err
	}
	d.recorder.Emit(ctx, "badge.created", map[string]any{
		"window_id": req.WindowID, "source": req.Source, "count": badge.Count,
	}, nil)
	d.server.Broadcast("badges.updated", d.badges.Snapshot())
	return badge, nil
}

func (d *Daemon) rpcBadgesClear(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		WindowID int64 `json:"window_id"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	cleared := d.badges.Clear(req.WindowID)
	if cleared {
		d.server.Broadcast("badges.updated", d.badges.Snapshot())
	}
	return map[string]bool{"cleared": cleared}, nil
}

func (d *Daemon) rpcBadgesSnapshot(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.badges.Snapshot(), nil
}

func (d *Daemon) rpcScratchpadLaunch(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Project string `json:"project,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &req)
	}
	var proj *state.Project
	if req.Project != "" && req.Project != state.GlobalProject {
		p, ok := d.store.Project(req.Project)
		if !ok {
			return nil, errdefs.Configuration(errdefs.CodeUnknownProject, "unknown project %q", req.Project)
		}
		proj = &p
	} else if req.Project == "" {
		if active := d.store.ActiveProject(); active != "" {
			if p, ok := d.store.Project(active); ok {
				proj = &p
			}
		}
	}
	term, err := d.scratch.Launch(ctx, proj)
	if err != nil {
		return nil, err
	}
	return term, nil
}

func (d *Daemon) rpcScratchpadToggle(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Project string `json:"project,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &req)
	}
	if req.Project == "" {
		req.Project = d.store.ActiveProject()
		if req.Project == "" {
			req.Project = state.GlobalProject
		}
	}
	if err := d.scratch.Toggle(ctx, req.Project); err != nil {
		return nil, err
	}
	return map[string]bool{"toggled": true}, nil
}

func (d *Daemon) rpcProjectList(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{
		"projects": d.store.Projects(),
		"active":   d.store.ActiveProject(),
		"usage":    d.store.Usage(),
	}, nil
}

func (d *Daemon) rpcProjectCreate(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name,omitempty"`
		Directory   string `json:"directory"`
		Icon        string `json:"icon,omitempty"`
		Remote      string `json:"remote,omitempty"`
		AutoSave    bool   `json:"auto_save,omitempty"`
		AutoRestore bool   `json:"auto_restore,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	p, err := d.projects.Create(ctx, project.CreateOptions{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Directory:   req.Directory,
		Icon:        req.Icon,
		Remote:      req.Remote,
		AutoSave:    req.AutoSave,
		AutoRestore: req.AutoRestore,
	})
	if err != nil {
		return nil, err
	}
	d.recorder.Emit(ctx, "project.created", map[string]any{"project": p.Name}, nil)
	return p, nil
}

func (d *Daemon) rpcProjectDelete(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if err := d.projects.Delete(ctx, req.Name); err != nil {
		return nil, err
	}
	d.recorder.Emit(ctx, "project.deleted", map[string]any{"project": req.Name}, nil)
	return map[string]bool{"deleted": true}, nil
}

func (d *Daemon) rpcProjectEdit(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name        string  `json:"name"`
		DisplayName *string `json:"display_name,omitempty"`
		Icon        *string `json:"icon,omitempty"`
		AutoSave    *bool   `json:"auto_save,omitempty"`
		AutoRestore *bool   `json:"auto_restore,omitempty"`
	}
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	p, err := d.projects.Edit(ctx, req.Name, func(p *state.Project) error {
		if req.DisplayName != nil {
			p.DisplayName = *req.DisplayName
		}
		if req.Icon != nil {
			p.Icon = *req.Icon
		}
		if req.AutoSave != nil {
			p.AutoSave = *req.AutoSave
		}
		if req.AutoRestore != nil {
			p.AutoRestore = *req.AutoRestore
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Daemon) rpcCoverage(ctx context.Context, _ json.RawMessage) (any, error) {
	return proc.ValidateEnvironmentCoverage(ctx, d.env, d.store.Windows()), nil
}

func (d *Daemon) rpcGetHealth(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.healthReport(ctx), nil
}

// rpcBenchmarkEnviron performs N sequential environ reads against the
// daemon's own pid and reports the latency thresholds.
func (d *Daemon) rpcBenchmarkEnviron(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Samples int `json:"samples,omitempty"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &req)
	}
	if req.Samples <= 0 {
		req.Samples = 100
	}
	return d.benchmarkEnviron(ctx, req.Samples), nil
}
