package wsmode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vpittamp/i3pm/internal/testutil"
)

type capturedEvents struct {
	events []Event
}

func (c *capturedEvents) emit(_ context.Context, ev Event) {
	c.events = append(c.events, ev)
}

func (c *capturedEvents) last() Event {
	return c.events[len(c.events)-1]
}

func newTestMachine(t *testing.T) (*Machine, *testutil.FakeConn, *capturedEvents) {
	t.Helper()
	conn := testutil.NewFakeConn()
	captured := &capturedEvents{}
	m := NewMachine(Config{
		Conn:            conn,
		Emit:            captured.emit,
		HistoryCapacity: 5,
		CurrentOutput:   func(context.Context) string { return "eDP-1" },
	})
	return m, conn, captured
}

func TestMachine_GotoExecute(t *testing.T) {
	m, conn, events := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.NoError(t, m.Digit(ctx, "2"))
	require.NoError(t, m.Digit(ctx, "3"))
	assert.Equal(t, "23", m.State().Accumulated)

	require.NoError(t, m.Execute(ctx))
	require.Equal(t, []string{"workspace number 23"}, conn.CommandLog())
	assert.False(t, m.State().Active)
	assert.Equal(t, "execute", events.last().EventType)
	assert.Equal(t, 23, events.last().Workspace)
}

func TestMachine_MoveExecute(t *testing.T) {
	m, conn, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, ModeMove, nil))
	require.NoError(t, m.Digit(ctx, "5"))
	require.NoError(t, m.Execute(ctx))
	require.Equal(t, []string{"move container to workspace number 5; workspace number 5"}, conn.CommandLog())
}

// Once ':' is typed, digits are project-filter input: execute must not
// jump to a workspace and instead emits a project_mode_filter effect.
func TestMachine_ColonSwitchesToProjectFilter(t *testing.T) {
	m, conn, events := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.NoError(t, m.Digit(ctx, "2"))
	assert.Equal(t, "2", m.State().Accumulated)
	assert.Equal(t, InputDigit, m.State().InputType)

	require.NoError(t, m.AddChar(ctx, ":"))
	assert.Equal(t, ":", m.State().Accumulated)
	assert.Equal(t, InputProject, m.State().InputType)

	require.NoError(t, m.Digit(ctx, "7"))
	assert.Equal(t, ":7", m.State().Accumulated)

	require.NoError(t, m.Execute(ctx))
	assert.Empty(t, conn.CommandLog(), "project filter must not run workspace commands")
	last := events.last()
	assert.Equal(t, "project_mode_filter", last.EventType)
	assert.Equal(t, ":7", last.Filter)
	assert.Equal(t, "7", ParseFilter(last.Filter))
	assert.False(t, m.State().Active)
}

func TestMachine_ExecuteOutOfRange(t *testing.T) {
	m, conn, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.NoError(t, m.Digit(ctx, "7"))
	require.NoError(t, m.Digit(ctx, "1"))
	require.Error(t, m.Execute(ctx)) // 71 > 70
	assert.Empty(t, conn.CommandLog())
	assert.False(t, m.State().Active)
}

func TestMachine_CancelResetsWithoutAction(t *testing.T) {
	m, conn, events := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.NoError(t, m.Digit(ctx, "4"))
	m.Cancel(ctx)
	assert.False(t, m.State().Active)
	assert.Empty(t, conn.CommandLog())
	assert.Equal(t, "cancel", events.last().EventType)
}

func TestMachine_NavAndDeleteRequireActiveMode(t *testing.T) {
	m, _, events := newTestMachine(t)
	ctx := context.Background()

	require.Error(t, m.Nav(ctx, "up"))
	require.Error(t, m.Delete(ctx))

	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.NoError(t, m.Nav(ctx, "down"))
	last := events.last()
	assert.Equal(t, "nav", last.EventType)
	assert.Equal(t, "down", last.Direction)
	// Nav must not mutate the accumulated input.
	assert.Equal(t, "", m.State().Accumulated)

	require.NoError(t, m.Delete(ctx))
	assert.Equal(t, "delete", events.last().EventType)

	require.Error(t, m.Nav(ctx, "sideways"))
}

func TestMachine_DigitValidation(t *testing.T) {
	m, _, _ := newTestMachine(t)
	ctx := context.Background()

	require.Error(t, m.Digit(ctx, "1")) // not active
	require.NoError(t, m.Enter(ctx, ModeGoto, nil))
	require.Error(t, m.Digit(ctx, "x"))
	require.Error(t, m.Digit(ctx, "12"))
}

func TestMachine_HistoryMostRecentFirst(t *testing.T) {
	m, _, _ := newTestMachine(t)
	ctx := context.Background()

	for _, ws := range []string{"1", "2", "3"} {
		require.NoError(t, m.Enter(ctx, ModeGoto, nil))
		require.NoError(t, m.Digit(ctx, ws))
		require.NoError(t, m.Execute(ctx))
	}

	history := m.History(10)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].WorkspaceNum)
	assert.Equal(t, 2, history[1].WorkspaceNum)
	assert.Equal(t, 1, history[2].WorkspaceNum)
	assert.Equal(t, "eDP-1", history[0].OutputName)
}

// The history ring is most-recent-first and never exceeds its capacity.
func TestHistoryRing_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		n := rapid.IntRange(0, 64).Draw(t, "pushes")

		r := newHistoryRing(capacity)
		for i := 0; i < n; i++ {
			r.push(Switch{WorkspaceNum: (i % 70) + 1, Timestamp: time.Unix(int64(i), 0)})
		}

		recent := r.recent(0)
		expectLen := n
		if expectLen > capacity {
			expectLen = capacity
		}
		assert.Len(t, recent, expectLen)
		for i := 0; i < len(recent); i++ {
			assert.Equal(t, int64(n-1-i), recent[i].Timestamp.Unix())
		}
	})
}

func TestMachine_EnterValidation(t *testing.T) {
	m, _, _ := newTestMachine(t)
	require.Error(t, m.Enter(context.Background(), "teleport", nil))
}
