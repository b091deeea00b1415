package project

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/correlation"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/events"
	"github.com/vpittamp/i3pm/internal/layout"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"
	"github.com/vpittamp/i3pm/internal/testutil"
)

type noEnv struct{}

func (noEnv) Read(context.Context, int) proc.Result { return proc.Result{Failure: proc.FailureNoVariables} }
func (noEnv) Available() bool                        { return false }
func (noEnv) Stats() proc.LatencyStats               { return proc.LatencyStats{} }

type noLauncher struct{}

func (noLauncher) Launch(context.Context, config.Application, *state.Project, int) error { return nil }

type fixture struct {
	orch  *Orchestrator
	store *state.Store
	conn  *testutil.FakeConn
	rec   *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.NewStore()
	store.SetProjects([]state.Project{
		{Name: "nixos", Directory: "/etc/nixos", Scope: state.ScopeScoped},
		{Name: "test-project", Directory: "/tmp/test", Scope: state.ScopeScoped},
	})

	conn := testutil.NewFakeConn()
	corr := correlation.NewService()
	rec := events.NewRecorder(100, corr)
	t.Cleanup(rec.Close)

	cfgStore := config.NewStore(t.TempDir())
	require.NoError(t, cfgStore.Reload())

	layouts := layout.NewPersistence(t.TempDir())
	engine := layout.NewEngine(store, conn, noEnv{}, cfgStore, noLauncher{})

	orch := NewOrchestrator(Config{
		Store:    store,
		Conn:     conn,
		Engine:   engine,
		Layouts:  layouts,
		Recorder: rec,
		Corr:     corr,
		Focus:    state.NewFocusPersistence(t.TempDir()),
		CfgStore: cfgStore,
		Daemon:   config.Defaults(),
	})
	return &fixture{orch: orch, store: store, conn: conn, rec: rec}
}

func addWindow(t *testing.T, store *state.Store, w *state.Window) {
	t.Helper()
	require.NoError(t, store.UpsertWindow(w))
}

// S1: switching projects hides scoped windows of other projects and
// leaves global windows untouched.
func TestSwitch_HidesScopedPreservesGlobal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetActiveProject("nixos"))

	addWindow(t, f.store, &state.Window{
		WindowID: 1, Class: "btop", WorkspaceNum: 3, Scope: state.ScopeScoped, Project: "nixos",
		Marks: []string{state.ScopedMark("nixos", 1)},
	})
	addWindow(t, f.store, &state.Window{
		WindowID: 2, Class: "pavucontrol", WorkspaceNum: 3, Scope: state.ScopeGlobal,
	})

	require.NoError(t, f.orch.Switch(ctx, "test-project"))

	w1, _ := f.store.Window(1)
	assert.Equal(t, 0, w1.WorkspaceNum, "scoped window is in the scratchpad")
	assert.False(t, w1.Visible)

	w2, _ := f.store.Window(2)
	assert.Equal(t, 3, w2.WorkspaceNum, "global window stays put")

	log := strings.Join(f.conn.CommandLog(), "\n")
	assert.Contains(t, log, "[con_id=1] move scratchpad")
	assert.NotContains(t, log, "[con_id=2]")
}

// S2: switching back restores the hidden window onto its workspace.
func TestSwitch_ReturnRestoresHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetActiveProject("nixos"))
	require.NoError(t, f.store.SetFocusedWorkspace("nixos", 3))

	addWindow(t, f.store, &state.Window{
		WindowID: 1, Class: "btop", WorkspaceNum: 3, Scope: state.ScopeScoped, Project: "nixos",
		Marks: []string{state.ScopedMark("nixos", 1)},
	})
	addWindow(t, f.store, &state.Window{
		WindowID: 2, Class: "pavucontrol", WorkspaceNum: 3, Scope: state.ScopeGlobal,
	})

	require.NoError(t, f.orch.Switch(ctx, "test-project"))
	require.NoError(t, f.orch.Switch(ctx, "nixos"))

	w1, _ := f.store.Window(1)
	assert.Equal(t, 3, w1.WorkspaceNum, "hidden window restored to its workspace")
	assert.True(t, w1.Visible)

	w2, _ := f.store.Window(2)
	assert.Equal(t, 3, w2.WorkspaceNum)
}

// Floating scoped windows follow the same hiding rule as tiled ones.
func TestSwitch_FloatingScopedFollowsRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetActiveProject("nixos"))

	addWindow(t, f.store, &state.Window{
		WindowID: 5, Class: "galculator", WorkspaceNum: 2, IsFloating: true,
		Scope: state.ScopeScoped, Project: "nixos",
		Marks: []string{state.ScopedMark("nixos", 5)},
	})

	require.NoError(t, f.orch.Switch(ctx, "test-project"))
	w, _ := f.store.Window(5)
	assert.Equal(t, 0, w.WorkspaceNum)
}

// A window hidden before the switch whose project does not match the new
// project stays hidden.
func TestSwitch_ForeignHiddenWindowStaysHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetActiveProject("nixos"))

	addWindow(t, f.store, &state.Window{
		WindowID: 9, Class: "btop", WorkspaceNum: 0, Scope: state.ScopeScoped, Project: "nixos",
		Marks: []string{state.ScopedMark("nixos", 9)},
	})

	require.NoError(t, f.orch.Switch(ctx, "test-project"))
	w, _ := f.store.Window(9)
	assert.Equal(t, 0, w.WorkspaceNum)
	assert.Empty(t, f.conn.CommandLog(), "already-hidden windows need no commands")
}

func TestSwitch_UnknownProject(t *testing.T) {
	f := newFixture(t)
	err := f.orch.Switch(context.Background(), "nope")
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeUnknownProject, de.Code)
}

func TestSwitch_SameProjectNoOp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetActiveProject("nixos"))
	require.NoError(t, f.orch.Switch(context.Background(), "nixos"))
	assert.Empty(t, f.conn.CommandLog())
}

func TestSwitch_EmitsCorrelatedEvents(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Switch(context.Background(), "nixos"))

	records := f.rec.Ring().All()
	var switching, switched *events.Record
	for i := range records {
		switch records[i].EventType {
		case "project.switching":
			switching = &records[i]
		case "project.switched":
			switched = &records[i]
		}
	}
	require.NotNil(t, switching)
	require.NotNil(t, switched)
	assert.NotEmpty(t, switching.CorrelationID)
	assert.Equal(t, switching.CorrelationID, switched.CorrelationID,
		"both ends of the pipeline share one correlation chain")
}

func TestSwitch_RepairsMissingMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A window of the target project missing its unified mark.
	addWindow(t, f.store, &state.Window{
		WindowID: 7, Class: "btop", WorkspaceNum: 2, Scope: state.ScopeScoped, Project: "test-project",
	})

	require.NoError(t, f.orch.Switch(ctx, "test-project"))
	log := strings.Join(f.conn.CommandLog(), "\n")
	assert.Contains(t, log, "mark --add scoped:test-project:7")
	w, _ := f.store.Window(7)
	assert.Contains(t, w.Marks, "scoped:test-project:7")
}
