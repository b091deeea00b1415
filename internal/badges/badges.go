// Package badges implements notification-agnostic per-window badges:
// create-or-increment counters exported to the runtime directory for
// status-bar consumers.
package badges

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// State is the badge's visual state: "working" shows a spinner, "stopped"
// a bell.
type State string

const (
	StateWorking State = "working"
	StateStopped State = "stopped"
)

// MaxCount caps the stored notification count.
const MaxCount = 9999

// Badge is one window's notification badge.
type Badge struct {
	WindowID       int64     `json:"window_id"`
	Source         string    `json:"source"`
	State          State     `json:"state"`
	Count          int       `json:"count"`
	Timestamp      time.Time `json:"timestamp"`
	NeedsAttention bool      `json:"needs_attention"`
}

// DisplayCount renders the count: "1".."9", then "9+".
func (b *Badge) DisplayCount() string {
	if b.Count > 9 {
		return "9+"
	}
	return strconv.Itoa(b.Count)
}

// Export is the on-disk and snapshot representation of one badge.
type Export struct {
	Count          string `json:"count"`
	Timestamp      int64  `json:"timestamp"`
	Source         string `json:"source"`
	State          State  `json:"state"`
	Project        string `json:"project,omitempty"`
	NeedsAttention bool   `json:"needs_attention"`
}

// Service owns the badge map: at most one badge per window id.
type Service struct {
	mu     sync.Mutex
	badges map[int64]*Badge

	// runtimeDir receives per-window JSON files; empty disables export.
	runtimeDir string
	// minClearAge gates clearing on focus so a badge created on the
	// focused window is not immediately self-cleared.
	minClearAge time.Duration
	now         func() time.Time
}

// NewService creates a badge service exporting to runtimeDir.
func NewService(runtimeDir string, minClearAge time.Duration) *Service {
	return &Service{
		badges:      make(map[int64]*Badge),
		runtimeDir:  runtimeDir,
		minClearAge: minClearAge,
		now:         time.Now,
	}
}

// CreateOrIncrement creates a badge or updates an existing one. The count
// increments only on a transition to (or repeat of) the stopped state.
func (s *Service) CreateOrIncrement(windowID int64, source string, badgeState State, project string) (*Badge, error) {
	if windowID <= 0 {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "window_id must be positive")
	}
	if source == "" {
		source = "generic"
	}
	if badgeState != StateWorking && badgeState != StateStopped {
		return nil, errdefs.Validation(errdefs.CodeUnknownEnum, "unknown badge state %q", badgeState)
	}

	s.mu.Lock()
	b, ok := s.badges[windowID]
	if ok {
		b.State = badgeState
		b.Timestamp = s.now()
		if badgeState == StateStopped && b.Count < MaxCount {
			b.Count++
		}
	} else {
		b = &Badge{
			WindowID:       windowID,
			Source:         source,
			State:          badgeState,
			Count:          1,
			Timestamp:      s.now(),
			NeedsAttention: badgeState == StateStopped,
		}
		s.badges[windowID] = b
	}
	b.NeedsAttention = b.State == StateStopped
	snapshot := *b
	s.mu.Unlock()

	s.export(&snapshot, project)
	log.Debug(log.CatBadge, "badge upserted", "window", windowID, "source", source, "state", badgeState, "count", snapshot.Count)
	return &snapshot, nil
}

// ClearOnFocus removes a window's badge when it is old enough. Returns
// whether a badge was cleared.
func (s *Service) ClearOnFocus(windowID int64) bool {
	s.mu.Lock()
	b, ok := s.badges[windowID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if s.now().Sub(b.Timestamp) < s.minClearAge {
		s.mu.Unlock()
		return false
	}
	delete(s.badges, windowID)
	s.mu.Unlock()

	s.removeExport(windowID)
	log.Debug(log.CatBadge, "badge cleared on focus", "window", windowID)
	return true
}

// Clear removes a badge unconditionally (explicit RPC or user action).
func (s *Service) Clear(windowID int64) bool {
	s.mu.Lock()
	_, ok := s.badges[windowID]
	delete(s.badges, windowID)
	s.mu.Unlock()
	if ok {
		s.removeExport(windowID)
	}
	return ok
}

// SweepOrphans removes badges whose window is no longer alive.
func (s *Service) SweepOrphans(valid map[int64]struct{}) int {
	s.mu.Lock()
	var orphans []int64
	for id := range s.badges {
		if _, ok := valid[id]; !ok {
			orphans = append(orphans, id)
			delete(s.badges, id)
		}
	}
	s.mu.Unlock()

	for _, id := range orphans {
		s.removeExport(id)
	}
	if len(orphans) > 0 {
		log.Info(log.CatBadge, "orphan badges swept", "count", len(orphans))
	}
	return len(orphans)
}

// Snapshot maps stringified window ids to their export form.
func (s *Service) Snapshot() map[string]Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Export, len(s.badges))
	for id, b := range s.badges {
		out[strconv.FormatInt(id, 10)] = Export{
			Count:          b.DisplayCount(),
			Timestamp:      b.Timestamp.Unix(),
			Source:         b.Source,
			State:          b.State,
			NeedsAttention: b.NeedsAttention,
		}
	}
	return out
}

// export writes the per-window badge file watched by UI consumers.
func (s *Service) export(b *Badge, project string) {
	if s.runtimeDir == "" {
		return
	}
	exp := Export{
		Count:          b.DisplayCount(),
		Timestamp:      b.Timestamp.Unix(),
		Source:         b.Source,
		State:          b.State,
		Project:        project,
		NeedsAttention: b.NeedsAttention,
	}
	data, err := json.Marshal(exp)
	if err != nil {
		log.ErrorErr(log.CatBadge, "badge export encode failed", err, "window", b.WindowID)
		return
	}
	path := filepath.Join(s.runtimeDir, fmt.Sprintf("%d.json", b.WindowID))
	if err := state.WriteAtomic(path, data); err != nil {
		log.ErrorErr(log.CatBadge, "badge export write failed", err, "window", b.WindowID)
	}
}

func (s *Service) removeExport(windowID int64) {
	if s.runtimeDir == "" {
		return
	}
	path := filepath.Join(s.runtimeDir, fmt.Sprintf("%d.json", windowID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.ErrorErr(log.CatBadge, "badge export remove failed", err, "window", windowID)
	}
}
