package state

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
)

// Store owns the canonical maps. One mutex guards all mutation; readers
// take a read lock and must tolerate just-missed updates (the daemon
// reconciles with a tree refresh at natural checkpoints).
type Store struct {
	mu sync.RWMutex

	windows       map[int64]*Window
	workspaces    map[int]*Workspace
	outputs       map[string]*Output
	projects      map[string]*Project
	activeProject string

	focus *FocusState
	usage map[string]int // project -> switch count

	initialized bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		windows:    make(map[int64]*Window),
		workspaces: make(map[int]*Workspace),
		outputs:    make(map[string]*Output),
		projects:   make(map[string]*Project),
		focus:      NewFocusState(),
		usage:      make(map[string]int),
	}
}

// MarkInitialized flags the store as ready to serve queries.
func (s *Store) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the first tree refresh completed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// validateWindow enforces the mutation invariants. Violations are state
// errors: logged critical by callers, operation aborted.
func validateWindow(w *Window) error {
	if w.WindowID <= 0 {
		return errdefs.State(errdefs.CodeInvariantBroken, "window id must be positive, got %d", w.WindowID)
	}
	if w.WorkspaceNum != 0 && (w.WorkspaceNum < MinWorkspace || w.WorkspaceNum > MaxWorkspace) {
		return errdefs.State(errdefs.CodeInvariantBroken,
			"window %d workspace %d out of range [%d,%d]", w.WindowID, w.WorkspaceNum, MinWorkspace, MaxWorkspace)
	}
	if !w.Scope.Valid() {
		return errdefs.State(errdefs.CodeInvariantBroken, "window %d has invalid scope %q", w.WindowID, w.Scope)
	}
	if w.Scope == ScopeGlobal && w.Project != "" {
		return errdefs.State(errdefs.CodeInvariantBroken, "global window %d carries project %q", w.WindowID, w.Project)
	}
	if w.Scope == ScopeScoped && w.Project == "" {
		return errdefs.State(errdefs.CodeInvariantBroken, "scoped window %d has no project", w.WindowID)
	}
	if w.IsPWA && w.PWAType != PWAFirefox && w.PWAType != PWAChrome {
		return errdefs.State(errdefs.CodeInvariantBroken, "PWA window %d has invalid pwa_type %q", w.WindowID, w.PWAType)
	}
	// A mark of form scoped:<p>:<id> implies project = p and window_id = id.
	// A missing mark on a scoped window is permitted transiently: marks
	// are applied asynchronously after classification and repaired on the
	// next switch or reconcile pass.
	if p, id, ok := FindScopedMark(w.Marks); ok {
		if w.Scope != ScopeScoped || w.Project != p || w.WindowID != id {
			return errdefs.State(errdefs.CodeInvariantBroken,
				"window %d mark %s disagrees with scope=%s project=%q", w.WindowID, ScopedMark(p, id), w.Scope, w.Project)
		}
	}
	return nil
}

// UpsertWindow inserts or replaces a window.
func (s *Store) UpsertWindow(w *Window) error {
	if err := validateWindow(w); err != nil {
		log.Error(log.CatState, "upsert rejected", "window", w.WindowID, "error", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.CreatedAt.IsZero() {
		if prev, ok := s.windows[w.WindowID]; ok {
			w.CreatedAt = prev.CreatedAt
		} else {
			w.CreatedAt = time.Now()
		}
	}
	s.windows[w.WindowID] = w
	return nil
}

// RemoveWindow deletes a window and its focus-state references.
func (s *Store) RemoveWindow(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, id)
	for ws, wid := range s.focus.WorkspaceFocusedWindow {
		if wid == id {
			delete(s.focus.WorkspaceFocusedWindow, ws)
		}
	}
}

// Window returns a copy of the window with the given id.
func (s *Store) Window(id int64) (Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[id]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Windows returns copies of all windows, ordered by id.
func (s *Store) Windows() []Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Window, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowID < out[j].WindowID })
	return out
}

// WindowsOfProject returns copies of all scoped windows of a project.
func (s *Store) WindowsOfProject(project string) []Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Window
	for _, w := range s.windows {
		if w.Scope == ScopeScoped && w.Project == project {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowID < out[j].WindowID })
	return out
}

// WindowsOnWorkspace returns copies of all windows on a workspace.
func (s *Store) WindowsOnWorkspace(num int) []Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Window
	for _, w := range s.windows {
		if w.WorkspaceNum == num {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowID < out[j].WindowID })
	return out
}

// ValidWindowIDs returns the set of live window ids.
func (s *Store) ValidWindowIDs() map[int64]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]struct{}, len(s.windows))
	for id := range s.windows {
		ids[id] = struct{}{}
	}
	return ids
}

// SetFocus marks one window focused and clears focus on the rest. A zero
// id clears focus entirely.
func (s *Store) SetFocus(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.windows {
		w.Focused = w.WindowID == id
	}
}

// SetWorkspaces replaces the workspace map.
func (s *Store) SetWorkspaces(wss []Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = make(map[int]*Workspace, len(wss))
	for i := range wss {
		ws := wss[i]
		s.workspaces[ws.Num] = &ws
	}
}

// Workspaces returns copies of all workspaces ordered by number.
func (s *Store) Workspaces() []Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		out = append(out, *ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// SetOutputs replaces the output map.
func (s *Store) SetOutputs(outs []Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = make(map[string]*Output, len(outs))
	for i := range outs {
		o := outs[i]
		s.outputs[o.Name] = &o
	}
}

// Outputs returns copies of all outputs ordered by name.
func (s *Store) Outputs() []Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Output, 0, len(s.outputs))
	for _, o := range s.outputs {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetProjects replaces the project map.
func (s *Store) SetProjects(projects []Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[string]*Project, len(projects))
	for i := range projects {
		p := projects[i]
		s.projects[p.Name] = &p
	}
	// Active project must remain a key of the projects map.
	if s.activeProject != "" {
		if _, ok := s.projects[s.activeProject]; !ok {
			log.Warn(log.CatState, "active project vanished from config", "project", s.activeProject)
			s.activeProject = ""
		}
	}
}

// Project returns a copy of the named project.
func (s *Store) Project(name string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[name]
	if !ok {
		return Project{}, false
	}
	return *p, true
}

// Projects returns copies of all projects ordered by name.
func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetActiveProject switches the active project. Empty string deactivates.
func (s *Store) SetActiveProject(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, ok := s.projects[name]; !ok {
			return errdefs.Configuration(errdefs.CodeUnknownProject, "unknown project %q", name).
				WithSuggestion("run 'i3pm project list' to see configured projects")
		}
		s.usage[name]++
	}
	s.activeProject = name
	return nil
}

// ActiveProject returns the active project name, empty when none.
func (s *Store) ActiveProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeProject
}

// SetFocusedWorkspace records the focused workspace for a project.
func (s *Store) SetFocusedWorkspace(project string, wsNum int) error {
	if wsNum < MinWorkspace || wsNum > MaxWorkspace {
		return errdefs.Validation(errdefs.CodeOutOfRange, "workspace %d out of range [%d,%d]", wsNum, MinWorkspace, MaxWorkspace)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus.ProjectFocusedWorkspace[project] = wsNum
	return nil
}

// SetFocusedWindow records the focused window for a workspace.
func (s *Store) SetFocusedWindow(wsNum int, windowID int64) error {
	if wsNum < MinWorkspace || wsNum > MaxWorkspace {
		return errdefs.Validation(errdefs.CodeOutOfRange, "workspace %d out of range [%d,%d]", wsNum, MinWorkspace, MaxWorkspace)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus.WorkspaceFocusedWindow[wsNum] = windowID
	return nil
}

// FocusSnapshot returns a deep copy of the focus state.
func (s *Store) FocusSnapshot() *FocusState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs := NewFocusState()
	for k, v := range s.focus.ProjectFocusedWorkspace {
		fs.ProjectFocusedWorkspace[k] = v
	}
	for k, v := range s.focus.WorkspaceFocusedWindow {
		fs.WorkspaceFocusedWindow[k] = v
	}
	return fs
}

// RestoreFocusState replaces the focus state (used at startup).
func (s *Store) RestoreFocusState(fs *FocusState) {
	if fs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = fs
	if s.focus.ProjectFocusedWorkspace == nil {
		s.focus.ProjectFocusedWorkspace = make(map[string]int)
	}
	if s.focus.WorkspaceFocusedWindow == nil {
		s.focus.WorkspaceFocusedWindow = make(map[int]int64)
	}
}

// Usage returns a copy of the project usage counters.
func (s *Store) Usage() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out
}

// RestoreUsage replaces the usage counters (used at startup).
func (s *Store) RestoreUsage(usage map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usage == nil {
		usage = make(map[string]int)
	}
	s.usage = usage
}

// EnsureMark records the unified mark on a window's in-memory model.
// The compositor-side mark is applied by the orchestrator.
func (s *Store) EnsureMark(windowID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[windowID]
	if !ok {
		return "", errdefs.State(errdefs.CodeInvariantBroken, "window %d not in store", windowID)
	}
	if w.Scope != ScopeScoped || w.Project == "" {
		return "", errdefs.State(errdefs.CodeInvariantBroken, "window %d is not scoped", windowID)
	}
	mark := ScopedMark(w.Project, w.WindowID)
	if !slices.Contains(w.Marks, mark) {
		// Replace any stale unified mark before adding the current one.
		w.Marks = slices.DeleteFunc(w.Marks, func(m string) bool {
			_, _, ok := ParseScopedMark(m)
			return ok
		})
		w.Marks = append(w.Marks, mark)
	}
	return mark, nil
}

// Summary returns coarse counts for get_status.
func (s *Store) Summary() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scoped, global := 0, 0
	for _, w := range s.windows {
		if w.Scope == ScopeScoped {
			scoped++
		} else {
			global++
		}
	}
	return map[string]any{
		"windows":        len(s.windows),
		"scoped_windows": scoped,
		"global_windows": global,
		"workspaces":     len(s.workspaces),
		"outputs":        len(s.outputs),
		"projects":       len(s.projects),
		"active_project": s.activeProject,
		"initialized":    s.initialized,
	}
}

// String implements fmt.Stringer for debug logging.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Store{windows=%d workspaces=%d outputs=%d projects=%d active=%q}",
		len(s.windows), len(s.workspaces), len(s.outputs), len(s.projects), s.activeProject)
}
