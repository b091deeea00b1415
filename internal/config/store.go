package config

import (
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// Store aggregates every loaded registry file and supports atomic reload.
// Readers get immutable snapshots; Reload swaps the whole set at once so a
// half-read config directory is never observed.
type Store struct {
	mu sync.RWMutex

	dir      string
	apps     *ApplicationRegistry
	pwas     *PWARegistry
	wsConfig []WorkspaceEntry
	rules    []WindowRule
	rawRules []byte
	classes  *AppClasses
	projects []state.Project
}

// NewStore creates a config store rooted at the i3 config dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		apps:    &ApplicationRegistry{},
		pwas:    &PWARegistry{},
		classes: &AppClasses{},
	}
}

// Dir returns the config directory.
func (s *Store) Dir() string { return s.dir }

// Reload re-reads every registry file. On any error the previous snapshot
// is kept in full.
func (s *Store) Reload() error {
	apps, err := LoadApplicationRegistry(s.dir)
	if err != nil {
		return err
	}
	pwas, err := LoadPWARegistry(s.dir)
	if err != nil {
		return err
	}
	wsConfig, err := LoadWorkspaceConfig(s.dir)
	if err != nil {
		return err
	}
	rules, err := LoadWindowRules(s.dir)
	if err != nil {
		return err
	}
	rawRules, err := RawWindowRules(s.dir)
	if err != nil {
		return err
	}
	classes, err := LoadAppClasses(s.dir)
	if err != nil {
		return err
	}
	projects, err := LoadProjects(s.dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prevRaw := s.rawRules
	s.apps = apps
	s.pwas = pwas
	s.wsConfig = wsConfig
	s.rules = rules
	s.rawRules = rawRules
	s.classes = classes
	s.projects = projects
	s.mu.Unlock()

	logRulesDiff(prevRaw, rawRules)
	log.Info(log.CatConfig, "config reloaded",
		"apps", len(apps.Applications), "pwas", len(pwas.PWAs),
		"rules", len(rules), "projects", len(projects))
	return nil
}

// logRulesDiff logs a compact diff of window-rules.json changes.
func logRulesDiff(prev, next []byte) {
	if prev == nil || string(prev) == string(next) {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(prev), string(next), false)
	changed := 0
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed += len(d.Text)
		}
	}
	log.Info(log.CatConfig, "window rules changed",
		"delta_bytes", changed, "diff", dmp.DiffPrettyText(diffs))
}

// Applications returns the application registry snapshot.
func (s *Store) Applications() *ApplicationRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apps
}

// PWAs returns the PWA registry snapshot.
func (s *Store) PWAs() *PWARegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pwas
}

// WorkspaceConfig returns the workspace config entries.
func (s *Store) WorkspaceConfig() []WorkspaceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wsConfig
}

// Rules returns the compiled window rules.
func (s *Store) Rules() []WindowRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Projects returns the loaded project definitions.
func (s *Store) Projects() []state.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects
}

// Resolver returns a scope resolver over the current rules snapshot.
func (s *Store) Resolver() *ScopeResolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &ScopeResolver{Rules: s.rules, AppClasses: s.classes}
}
