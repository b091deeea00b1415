package launch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"
)

// fakeEnv is a canned proc.Environment with a parent table.
type fakeEnv struct {
	byPID   map[int]proc.Result
	parents map[int]int
}

func (f *fakeEnv) Read(_ context.Context, pid int) proc.Result {
	if r, ok := f.byPID[pid]; ok {
		return r
	}
	return proc.Result{Failure: proc.FailureNoVariables}
}
func (f *fakeEnv) Available() bool          { return true }
func (f *fakeEnv) Stats() proc.LatencyStats { return proc.LatencyStats{} }
func (f *fakeEnv) IsParentOf(ancestor, pid int) bool {
	for cur := pid; cur > 1; {
		parent, ok := f.parents[cur]
		if !ok {
			return false
		}
		if parent == ancestor {
			return true
		}
		cur = parent
	}
	return false
}

func writeConfig(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func testConfigStore(t *testing.T) *config.Store {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, "application-registry.json", map[string]any{
		"version": 1,
		"applications": []map[string]any{
			{"name": "vscode", "command": "code", "expected_class": "Code", "scope": "scoped", "preferred_workspace": 2},
			{"name": "btop", "command": "btop", "expected_class": "btop", "scope": "scoped", "preferred_workspace": 3},
			{"name": "pavucontrol", "command": "pavucontrol", "expected_class": "pavucontrol", "scope": "global"},
		},
	})
	writeConfig(t, dir, "pwa-registry.json", map[string]any{
		"version": 1,
		"pwas": []map[string]any{
			{"name": "claude", "url": "https://claude.ai", "ulid": "01JCYF8Z2M7R4N6QW9XKPHVTB5", "preferred_workspace": 10},
			{"name": "youtube", "url": "https://youtube.com", "instance": "youtube-pwa", "preferred_workspace": 11},
		},
	})
	cs := config.NewStore(dir)
	require.NoError(t, cs.Reload())
	return cs
}

func newTestMatcher(t *testing.T, env proc.Environment) (*Matcher, *Registry) {
	t.Helper()
	reg := NewRegistry()
	if env == nil {
		env = &fakeEnv{}
	}
	return NewMatcher(reg, env, testConfigStore(t)), reg
}

// Tier 0: a launch notified 0.5s before the window appears, with class,
// workspace, and parent chain agreement, matches with high confidence and
// consumes the pending launch exactly once.
func TestMatcher_Tier0_LauncherToVSCode(t *testing.T) {
	env := &fakeEnv{parents: map[int]int{12346: 12345}}
	m, reg := newTestMatcher(t, env)

	t0 := time.Now().Add(-500 * time.Millisecond)
	_, err := reg.NotifyLaunch("vscode", "nixos", "/etc/nixos", 12345, 2, "Code", t0)
	require.NoError(t, err)

	w := &state.Window{WindowID: 100, Class: "Code", PID: 12346, WorkspaceNum: 2, Scope: state.ScopeGlobal}
	c := m.Classify(context.Background(), w)

	assert.Equal(t, TierRegistry, c.Tier)
	assert.GreaterOrEqual(t, c.Confidence, ConfidenceHigh)
	assert.Equal(t, "vscode", c.AppName)
	assert.Equal(t, "nixos", c.Project)
	assert.Equal(t, state.ScopeScoped, c.Scope)
	assert.Equal(t, 2, c.TargetWS)

	// Consumed exactly once: a second identical window falls to tier 2.
	w2 := &state.Window{WindowID: 101, Class: "Code", PID: 999, WorkspaceNum: 2, Scope: state.ScopeGlobal}
	c2 := m.Classify(context.Background(), w2)
	assert.Equal(t, TierHeuristic, c2.Tier)
}

func TestMatcher_Tier0_RequiresClassMatch(t *testing.T) {
	m, reg := newTestMatcher(t, nil)
	_, err := reg.NotifyLaunch("vscode", "nixos", "", 1, 2, "Code", time.Now())
	require.NoError(t, err)

	w := &state.Window{WindowID: 1, Class: "firefox", WorkspaceNum: 2, Scope: state.ScopeGlobal}
	c := m.Classify(context.Background(), w)
	assert.NotEqual(t, TierRegistry, c.Tier)
	// The pending launch survives for the right window.
	assert.Len(t, reg.Pending(), 1)
}

func TestMatcher_Tier0_CaseInsensitiveClass(t *testing.T) {
	m, reg := newTestMatcher(t, nil)
	_, err := reg.NotifyLaunch("vscode", "nixos", "", 1, 2, "code", time.Now())
	require.NoError(t, err)

	w := &state.Window{WindowID: 1, Class: "Code", WorkspaceNum: 2, Scope: state.ScopeGlobal}
	c := m.Classify(context.Background(), w)
	assert.Equal(t, TierRegistry, c.Tier)
	assert.GreaterOrEqual(t, c.Confidence, AcceptThreshold)
}

func TestMatcher_Tier0_StaleLaunchBelowThreshold(t *testing.T) {
	m, reg := newTestMatcher(t, nil)
	// 4.5s old, no workspace or pid agreement: below MEDIUM.
	_, err := reg.NotifyLaunch("vscode", "nixos", "", 0, 0, "code", time.Now().Add(-4500*time.Millisecond))
	require.NoError(t, err)

	w := &state.Window{WindowID: 1, Class: "Code", WorkspaceNum: 5, Scope: state.ScopeGlobal}
	c := m.Classify(context.Background(), w)
	assert.NotEqual(t, TierRegistry, c.Tier)
}

func TestMatcher_Tier1_EnvironAuthoritative(t *testing.T) {
	env := &fakeEnv{byPID: map[int]proc.Result{
		555: {Env: map[string]string{
			proc.EnvAppName:         "btop",
			proc.EnvScope:           "scoped",
			proc.EnvProjectName:     "nixos",
			proc.EnvTargetWorkspace: "3",
		}, SourcePID: 555},
	}}
	m, _ := newTestMatcher(t, env)

	w := &state.Window{WindowID: 1, Class: "btop", PID: 555, Scope: state.ScopeGlobal}
	c := m.Classify(context.Background(), w)

	assert.Equal(t, TierEnviron, c.Tier)
	assert.Equal(t, ConfidenceExact, c.Confidence)
	assert.Equal(t, "btop", c.AppName)
	assert.Equal(t, "nixos", c.Project)
	assert.Equal(t, 3, c.TargetWS)
}

func TestMatcher_Tier1_ScopedWithoutProjectFallsToGlobal(t *testing.T) {
	env := &fakeEnv{byPID: map[int]proc.Result{
		7: {Env: map[string]string{proc.EnvAppName: "x", proc.EnvScope: "scoped"}, SourcePID: 7},
	}}
	m, _ := newTestMatcher(t, env)
	c := m.Classify(context.Background(), &state.Window{WindowID: 1, Class: "x", PID: 7, Scope: state.ScopeGlobal})
	assert.Equal(t, state.ScopeGlobal, c.Scope)
}

// Tier 2: Firefox PWA identified uniquely by its FFPWA-<ULID> class;
// Chromium PWA by (Google-chrome, instance).
func TestMatcher_Tier2_PWAIdentification(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	ff := m.Classify(context.Background(), &state.Window{
		WindowID: 1, Class: "FFPWA-01JCYF8Z2M7R4N6QW9XKPHVTB5", Scope: state.ScopeGlobal,
	})
	assert.True(t, ff.IsPWA)
	assert.Equal(t, state.PWAFirefox, ff.PWAType)
	assert.Equal(t, "01JCYF8Z2M7R4N6QW9XKPHVTB5", ff.PWAID)
	assert.Equal(t, "claude", ff.AppName)
	assert.Equal(t, 10, ff.TargetWS)

	chrome := m.Classify(context.Background(), &state.Window{
		WindowID: 2, Class: "Google-chrome", Instance: "youtube-pwa", Scope: state.ScopeGlobal,
	})
	assert.True(t, chrome.IsPWA)
	assert.Equal(t, state.PWAChrome, chrome.PWAType)
	assert.Equal(t, "youtube-pwa", chrome.PWAID)
	assert.Equal(t, "youtube", chrome.AppName)
	assert.Equal(t, 11, chrome.TargetWS)

	// Plain Chrome without an instance is not a PWA.
	plain := m.Classify(context.Background(), &state.Window{
		WindowID: 3, Class: "Google-chrome", Scope: state.ScopeGlobal,
	})
	assert.False(t, plain.IsPWA)
}

func TestMatcher_Tier2_AppRegistryLookup(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	c := m.Classify(context.Background(), &state.Window{WindowID: 1, Class: "btop", Scope: state.ScopeGlobal})
	assert.Equal(t, TierHeuristic, c.Tier)
	assert.Equal(t, "btop", c.AppName)
	assert.Equal(t, state.ScopeScoped, c.Scope)
	assert.Equal(t, 3, c.TargetWS)

	g := m.Classify(context.Background(), &state.Window{WindowID: 2, Class: "pavucontrol", Scope: state.ScopeGlobal})
	assert.Equal(t, state.ScopeGlobal, g.Scope)
}

func TestGuidanceFor(t *testing.T) {
	g, ok := GuidanceFor("FFPWA-01JCYF8Z2M7R4N6QW9XKPHVTB5", "")
	require.True(t, ok)
	assert.Equal(t, "FFPWA-01JCYF8Z2M7R4N6QW9XKPHVTB5", g.RecommendedExpectedClass)
	assert.Equal(t, MatchByClass, g.RecommendedMatchStrategy)
	assert.Equal(t, "01JCYF8Z2M7R4N6QW9XKPHVTB5", g.PWAID)

	g, ok = GuidanceFor("Google-chrome", "youtube-pwa")
	require.True(t, ok)
	assert.Equal(t, "youtube-pwa", g.RecommendedExpectedClass)
	assert.Equal(t, MatchByInstance, g.RecommendedMatchStrategy)

	_, ok = GuidanceFor("firefox", "")
	assert.False(t, ok)
}
