package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// actionDebounce suppresses duplicate derived actions per
// (action_type, target_id) within a minimum interval.
type actionDebounce struct {
	mu   sync.Mutex
	last map[string]time.Time
	min  time.Duration
}

func newActionDebounce(min time.Duration) *actionDebounce {
	return &actionDebounce{last: make(map[string]time.Time), min: min}
}

// allow reports whether the action may run now, recording it if so.
func (a *actionDebounce) allow(actionType string, targetID int64) bool {
	key := fmt.Sprintf("%s:%d", actionType, targetID)
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	if prev, ok := a.last[key]; ok && now.Sub(prev) < a.min {
		return false
	}
	a.last[key] = now
	return true
}

var debounce = newActionDebounce(100 * time.Millisecond)

// handleEvent is the compositor event entry point. It runs on the pump
// goroutine: derived effects complete before the next event is pulled.
func (d *Daemon) handleEvent(ctx context.Context, ev ipc.Event) {
	ctx, span := d.tracer.StartSpan(ctx, "handler."+ev.Name())
	defer span.End()

	switch ev.Type {
	case ipc.EventWindow:
		d.handleWindowEvent(ctx, ev)
	case ipc.EventWorkspace:
		d.handleWorkspaceEvent(ctx, ev)
	case ipc.EventOutput:
		d.handleOutputEvent(ctx, ev)
	case ipc.EventTick:
		d.recorder.Emit(ctx, "tick", ev.Tick, nil)
	}
}

func (d *Daemon) handleWindowEvent(ctx context.Context, ev ipc.Event) {
	node := &ev.Window.Container
	switch ev.Change {
	case "new":
		d.onWindowNew(ctx, node)
	case "close":
		if !debounce.allow("window_close", node.ID) {
			return
		}
		d.store.RemoveWindow(node.ID)
		d.badges.Clear(node.ID)
		d.recorder.Emit(ctx, "window::close", map[string]any{"window_id": node.ID, "title": node.Name}, nil)
		d.server.Broadcast("window::close", map[string]any{"window_id": node.ID})
	case "focus":
		d.onWindowFocus(ctx, node)
	case "title":
		if w, ok := d.store.Window(node.ID); ok {
			w.Title = node.Name
			if err := d.store.UpsertWindow(&w); err != nil {
				log.ErrorErr(log.CatState, "title update failed", err, "window", node.ID)
			}
		}
	case "move", "floating":
		d.syncWindowPlacement(ctx, node)
	case "mark":
		d.onWindowMark(ctx, node)
	}
}

// onWindowNew classifies the window through the matcher tiers and applies
// the derived placement: marks, project tagging, target workspace.
func (d *Daemon) onWindowNew(ctx context.Context, node *ipc.Node) {
	w := windowFromNode(node, d.workspaceOf(ctx, node))
	c := d.matcher.Classify(ctx, w)

	w.Scope = c.Scope
	w.Project = c.Project
	w.IsPWA = c.IsPWA
	w.PWAType = c.PWAType
	w.PWAID = c.PWAID
	w.I3PMEnv = c.Env

	// A scoped classification without a project adopts the active one.
	if w.Scope == state.ScopeScoped && w.Project == "" {
		if active := d.store.ActiveProject(); active != "" {
			w.Project = active
		} else {
			w.Scope = state.ScopeGlobal
		}
	}

	if err := d.store.UpsertWindow(w); err != nil {
		log.ErrorErr(log.CatState, "window upsert failed", err, "window", w.WindowID)
		return
	}

	if w.Scope == state.ScopeScoped {
		mark := state.ScopedMark(w.Project, w.WindowID)
		cmd := fmt.Sprintf("[con_id=%d] mark --add %s", w.WindowID, mark)
		if err := d.client.RunCommand(ctx, cmd); err != nil {
			log.ErrorErr(log.CatIPC, "marking new window failed", err, "window", w.WindowID)
		} else if _, err := d.store.EnsureMark(w.WindowID); err != nil {
			log.ErrorErr(log.CatState, "ensure mark failed", err, "window", w.WindowID)
		}
		d.scratch.Adopt(w.Project, w.WindowID)
	}

	// Route to the tier-decided workspace.
	if c.TargetWS != 0 && c.TargetWS != w.WorkspaceNum {
		cmd := fmt.Sprintf("[con_id=%d] move container to workspace number %d", w.WindowID, c.TargetWS)
		if err := d.client.RunCommand(ctx, cmd); err != nil {
			log.ErrorErr(log.CatIPC, "workspace routing failed", err, "window", w.WindowID)
		} else {
			w.WorkspaceNum = c.TargetWS
			if err := d.store.UpsertWindow(w); err != nil {
				log.ErrorErr(log.CatState, "post-route upsert failed", err, "window", w.WindowID)
			}
		}
	}

	enrichment := map[string]any{
		"tier":       int(c.Tier),
		"confidence": c.Confidence.String(),
		"app":        c.AppName,
		"scope":      w.Scope,
		"project":    w.Project,
	}
	d.recorder.Emit(ctx, "window::new", map[string]any{
		"window_id": w.WindowID, "class": w.MatchClass(), "title": w.Title,
	}, enrichment)
	d.server.Broadcast("window::new", map[string]any{
		"window_id": w.WindowID, "class": w.MatchClass(), "project": w.Project, "scope": w.Scope,
	})
}

func (d *Daemon) onWindowFocus(ctx context.Context, node *ipc.Node) {
	ws := d.workspaceOf(ctx, node)
	d.tracker.WindowFocused(node.ID, ws)
	if d.badges.ClearOnFocus(node.ID) {
		d.server.Broadcast("badges.cleared", map[string]any{"window_id": node.ID})
	}
	d.recorder.Emit(ctx, "window::focus", map[string]any{"window_id": node.ID, "title": node.Name}, nil)
}

// onWindowMark reconciles externally changed marks with the store,
// re-adopting windows from surviving scoped:* marks (daemon restart).
func (d *Daemon) onWindowMark(ctx context.Context, node *ipc.Node) {
	w, ok := d.store.Window(node.ID)
	if !ok {
		return
	}
	w.Marks = append([]string(nil), node.Marks...)
	if p, id, found := state.FindScopedMark(node.Marks); found && id == node.ID {
		if _, exists := d.store.Project(p); exists {
			w.Scope = state.ScopeScoped
			w.Project = p
		}
	}
	if err := d.store.UpsertWindow(&w); err != nil {
		log.ErrorErr(log.CatState, "mark reconcile failed", err, "window", node.ID)
	}
}

func (d *Daemon) syncWindowPlacement(ctx context.Context, node *ipc.Node) {
	w, ok := d.store.Window(node.ID)
	if !ok {
		return
	}
	w.IsFloating = node.Type == "floating_con"
	if ws := d.workspaceOf(ctx, node); ws != 0 {
		w.WorkspaceNum = ws
	}
	if err := d.store.UpsertWindow(&w); err != nil {
		log.ErrorErr(log.CatState, "placement sync failed", err, "window", node.ID)
	}
}

func (d *Daemon) handleWorkspaceEvent(ctx context.Context, ev ipc.Event) {
	if ev.Change == "focus" && ev.WS.Current != nil {
		num := ev.WS.Current.Num
		if num >= state.MinWorkspace && num <= state.MaxWorkspace {
			d.tracker.WorkspaceFocused(num)
		}
	}
	d.refreshWorkspaces(ctx)
	d.recorder.Emit(ctx, "workspace::"+ev.Change, workspacePayload(ev), nil)
	d.server.Broadcast("workspace::"+ev.Change, workspacePayload(ev))
}

func workspacePayload(ev ipc.Event) map[string]any {
	payload := map[string]any{"change": ev.Change}
	if ev.WS != nil && ev.WS.Current != nil {
		payload["num"] = ev.WS.Current.Num
		payload["name"] = ev.WS.Current.Name
	}
	return payload
}

func (d *Daemon) handleOutputEvent(ctx context.Context, ev ipc.Event) {
	// Topology changes re-run the role resolver; the heavy move work is
	// dispatched off the pump.
	go func() {
		if err := d.orch.ReconcileOutputs(context.WithoutCancel(ctx)); err != nil {
			log.ErrorErr(log.CatOutputs, "topology reconcile failed", err)
		}
	}()
	d.recorder.Emit(ctx, "output::"+ev.Change, nil, nil)
	d.server.Broadcast("output::"+ev.Change, map[string]any{"change": ev.Change})
}

// refreshTree re-derives the whole store from GET_TREE.
func (d *Daemon) refreshTree(ctx context.Context) error {
	tree, err := d.client.GetTree(ctx)
	if err != nil {
		return err
	}
	d.refreshWorkspaces(ctx)

	valid := make(map[int64]struct{})
	tree.Walk(func(n *ipc.Node) {
		if !n.IsWindow() {
			return
		}
		valid[n.ID] = struct{}{}
		w := windowFromNode(n, d.workspaceOfTree(tree, n))

		// Prefer surviving daemon marks, then prior store state, then a
		// fresh classification.
		if p, id, ok := state.FindScopedMark(n.Marks); ok && id == n.ID {
			if _, exists := d.store.Project(p); exists {
				w.Scope = state.ScopeScoped
				w.Project = p
			}
		} else if prev, ok := d.store.Window(n.ID); ok {
			w.Scope = prev.Scope
			w.Project = prev.Project
			w.IsPWA = prev.IsPWA
			w.PWAType = prev.PWAType
			w.PWAID = prev.PWAID
			w.I3PMEnv = prev.I3PMEnv
			w.CreatedAt = prev.CreatedAt
		} else {
			c := d.matcher.Classify(ctx, w)
			w.Scope = c.Scope
			w.Project = c.Project
			w.IsPWA = c.IsPWA
			w.PWAType = c.PWAType
			w.PWAID = c.PWAID
			if w.Scope == state.ScopeScoped && w.Project == "" {
				w.Scope = state.ScopeGlobal
			}
		}
		if err := d.store.UpsertWindow(w); err != nil {
			log.ErrorErr(log.CatState, "tree refresh upsert failed", err, "window", n.ID)
		}
	})

	// Drop store windows the compositor no longer has.
	for id := range d.store.ValidWindowIDs() {
		if _, ok := valid[id]; !ok {
			d.store.RemoveWindow(id)
		}
	}
	d.badges.SweepOrphans(valid)
	d.scratch.Cleanup()
	return nil
}

func (d *Daemon) refreshWorkspaces(ctx context.Context) {
	wss, err := d.client.GetWorkspaces(ctx)
	if err != nil {
		log.ErrorErr(log.CatIPC, "workspace refresh failed", err)
		return
	}
	models := make([]state.Workspace, 0, len(wss))
	for _, ws := range wss {
		if ws.Num < state.MinWorkspace || ws.Num > state.MaxWorkspace {
			continue
		}
		models = append(models, state.Workspace{
			Num:     ws.Num,
			Name:    ws.Name,
			Output:  ws.Output,
			Focused: ws.Focused,
			Visible: ws.Visible,
		})
	}
	d.store.SetWorkspaces(models)
}

// windowFromNode builds the store model for a tree node.
func windowFromNode(n *ipc.Node, workspaceNum int) *state.Window {
	w := &state.Window{
		WindowID:     n.ID,
		PID:          n.PID,
		AppID:        n.AppID,
		Title:        n.Name,
		WorkspaceNum: workspaceNum,
		OutputName:   n.Output,
		Marks:        append([]string(nil), n.Marks...),
		IsFloating:   n.Type == "floating_con",
		Scope:        state.ScopeGlobal,
		Focused:      n.Focused,
		Visible:      n.Visible,
		CreatedAt:    time.Now(),
	}
	if n.WindowProperties != nil {
		w.Class = n.WindowProperties.Class
		w.Instance = n.WindowProperties.Instance
	}
	return w
}

// workspaceOf finds the workspace number containing the node, via a tree
// query.
func (d *Daemon) workspaceOf(ctx context.Context, node *ipc.Node) int {
	tree, err := d.client.GetTree(ctx)
	if err != nil {
		return 0
	}
	return d.workspaceOfTree(tree, node)
}

// workspaceOfTree walks the tree to find the workspace holding the node.
func (d *Daemon) workspaceOfTree(tree *ipc.Node, node *ipc.Node) int {
	var find func(n *ipc.Node, ws int) int
	find = func(n *ipc.Node, ws int) int {
		if n.Type == "workspace" {
			ws = n.Num
		}
		if n.ID == node.ID {
			return ws
		}
		for _, c := range n.Nodes {
			if found := find(c, ws); found != 0 {
				return found
			}
		}
		for _, c := range n.FloatingNodes {
			if found := find(c, ws); found != 0 {
				return found
			}
		}
		return 0
	}
	return find(tree, 0)
}
