package project

import (
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// FocusTracker records workspace and window focus into the store and
// persists the focus state. Duplicate focus reports within the debounce
// interval are dropped to avoid write storms from rapid event bursts.
type FocusTracker struct {
	store   *state.Store
	persist *state.FocusPersistence

	mu           sync.Mutex
	lastWS       int
	lastWindow   int64
	lastRecorded time.Time
	debounce     time.Duration
	now          func() time.Time
}

// NewFocusTracker creates a tracker with a 100 ms duplicate debounce.
func NewFocusTracker(store *state.Store, persist *state.FocusPersistence) *FocusTracker {
	return &FocusTracker{
		store:    store,
		persist:  persist,
		debounce: 100 * time.Millisecond,
		now:      time.Now,
	}
}

// WorkspaceFocused records the focused workspace for the active project.
func (t *FocusTracker) WorkspaceFocused(wsNum int) {
	project := t.store.ActiveProject()
	if project == "" {
		return
	}

	t.mu.Lock()
	now := t.now()
	if wsNum == t.lastWS && now.Sub(t.lastRecorded) < t.debounce {
		t.mu.Unlock()
		return
	}
	t.lastWS = wsNum
	t.lastRecorded = now
	t.mu.Unlock()

	if err := t.store.SetFocusedWorkspace(project, wsNum); err != nil {
		log.ErrorErr(log.CatState, "recording focused workspace failed", err, "workspace", wsNum)
		return
	}
	t.save()
}

// WindowFocused records the focused window for its workspace.
func (t *FocusTracker) WindowFocused(windowID int64, wsNum int) {
	if wsNum < state.MinWorkspace || wsNum > state.MaxWorkspace {
		return
	}

	t.mu.Lock()
	now := t.now()
	if windowID == t.lastWindow && now.Sub(t.lastRecorded) < t.debounce {
		t.mu.Unlock()
		return
	}
	t.lastWindow = windowID
	t.lastRecorded = now
	t.mu.Unlock()

	t.store.SetFocus(windowID)
	if err := t.store.SetFocusedWindow(wsNum, windowID); err != nil {
		log.ErrorErr(log.CatState, "recording focused window failed", err, "window", windowID)
		return
	}
	t.save()
}

func (t *FocusTracker) save() {
	if err := t.persist.Save(t.store.FocusSnapshot()); err != nil {
		log.ErrorErr(log.CatState, "persisting focus state failed", err)
	}
}
