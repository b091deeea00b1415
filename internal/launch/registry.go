// Package launch correlates compositor window::new events with the launch
// intents that produced them. The registry holds short-lived pending
// launches pre-notified by the launcher wrapper; the matcher runs the
// three identity tiers.
package launch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// Expiry bounds a pending launch's lifetime.
const Expiry = 5 * time.Second

// CorrelationWindow is the default per-launch correlation window.
const CorrelationWindow = 2 * time.Second

// PendingLaunch records one notified launch awaiting its window.
type PendingLaunch struct {
	LaunchID      string    `json:"launch_id"`
	AppName       string    `json:"app_name"`
	ProjectName   string    `json:"project_name,omitempty"`
	ProjectDir    string    `json:"project_dir,omitempty"`
	LauncherPID   int       `json:"launcher_pid"`
	ExpectedClass string    `json:"expected_class"`
	WorkspaceNum  int       `json:"workspace_num,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Matched       bool      `json:"matched"`
}

// Age returns the launch age at the given instant.
func (p *PendingLaunch) Age(now time.Time) time.Duration { return now.Sub(p.Timestamp) }

// Stats counts registry activity for get_launch_stats.
type Stats struct {
	TotalNotified int `json:"total_notified"`
	TotalMatched  int `json:"total_matched"`
	TotalExpired  int `json:"total_expired"`
	Pending       int `json:"pending"`
}

// Registry owns the pending launches and is safe for concurrent use.
// Pending and Stats return snapshots.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*PendingLaunch
	stats   Stats
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]*PendingLaunch),
		now:     time.Now,
	}
}

// NotifyLaunch registers a pending launch and returns its id. Cleanup of
// expired entries runs on every add.
func (r *Registry) NotifyLaunch(appName, projectName, projectDir string, launcherPID, workspaceNum int, expectedClass string, timestamp time.Time) (string, error) {
	if appName == "" {
		return "", errdefs.Validation(errdefs.CodeMissingParam, "app_name is required")
	}
	if expectedClass == "" {
		return "", errdefs.Validation(errdefs.CodeMissingParam, "expected_class is required")
	}
	if workspaceNum != 0 && (workspaceNum < state.MinWorkspace || workspaceNum > state.MaxWorkspace) {
		return "", errdefs.Validation(errdefs.CodeOutOfRange,
			"workspace_num %d out of range [%d,%d]", workspaceNum, state.MinWorkspace, state.MaxWorkspace)
	}
	if timestamp.IsZero() {
		timestamp = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	launch := &PendingLaunch{
		LaunchID:      uuid.NewString(),
		AppName:       appName,
		ProjectName:   projectName,
		ProjectDir:    projectDir,
		LauncherPID:   launcherPID,
		ExpectedClass: expectedClass,
		WorkspaceNum:  workspaceNum,
		Timestamp:     timestamp,
	}
	r.pending[launch.LaunchID] = launch
	r.stats.TotalNotified++

	log.Info(log.CatLaunch, "launch notified",
		"launch_id", launch.LaunchID, "app", appName, "project", projectName,
		"class", expectedClass, "ws", workspaceNum)
	return launch.LaunchID, nil
}

// expireLocked removes entries older than Expiry. Caller holds the lock.
func (r *Registry) expireLocked() {
	now := r.now()
	for id, p := range r.pending {
		if p.Age(now) > Expiry {
			delete(r.pending, id)
			if !p.Matched {
				r.stats.TotalExpired++
				log.Debug(log.CatLaunch, "launch expired", "launch_id", id, "app", p.AppName)
			}
		}
	}
}

// candidates returns unmatched, unexpired launches.
func (r *Registry) candidates() []*PendingLaunch {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	out := make([]*PendingLaunch, 0, len(r.pending))
	for _, p := range r.pending {
		if !p.Matched {
			out = append(out, p)
		}
	}
	return out
}

// consume marks a launch matched. Returns false when already consumed —
// each launch is consumed exactly once.
func (r *Registry) consume(launchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[launchID]
	if !ok || p.Matched {
		return false
	}
	p.Matched = true
	r.stats.TotalMatched++
	return true
}

// Pending returns a snapshot of current pending launches.
func (r *Registry) Pending() []PendingLaunch {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	out := make([]PendingLaunch, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, *p)
	}
	return out
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Pending = len(r.pending)
	return s
}
