package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vpittamp/i3pm/internal/ipc"
)

func TestActionDebounce(t *testing.T) {
	d := newActionDebounce(50 * time.Millisecond)

	assert.True(t, d.allow("window_close", 1))
	assert.False(t, d.allow("window_close", 1), "duplicate within interval suppressed")
	assert.True(t, d.allow("window_close", 2), "different target is independent")
	assert.True(t, d.allow("window_hide", 1), "different action is independent")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, d.allow("window_close", 1))
}

func TestSummarize(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := range durations {
		durations[i] = time.Duration(i+1) * time.Microsecond
	}
	s := summarize(durations)
	assert.InDelta(t, 50, float64(s.avg/time.Microsecond), 1)
	assert.InDelta(t, 96, float64(s.p95/time.Microsecond), 1)
	assert.Equal(t, durationSummary{}, summarize(nil))
}

func TestWindowFromNode(t *testing.T) {
	n := &ipc.Node{
		ID: 42, Type: "floating_con", Name: "Volume Control", PID: 900,
		Output: "eDP-1", Marks: []string{"scoped:nixos:42"},
		WindowProperties: &ipc.WindowProperties{Class: "Pavucontrol", Instance: "pavucontrol"},
	}
	w := windowFromNode(n, 3)
	assert.Equal(t, int64(42), w.WindowID)
	assert.Equal(t, "Pavucontrol", w.Class)
	assert.Equal(t, "pavucontrol", w.Instance)
	assert.True(t, w.IsFloating)
	assert.Equal(t, 3, w.WorkspaceNum)
	assert.Equal(t, "eDP-1", w.OutputName)
}

func TestWorkspaceOfTree(t *testing.T) {
	target := &ipc.Node{ID: 42, Type: "con", AppID: "code"}
	tree := &ipc.Node{
		ID: 1, Type: "root",
		Nodes: []*ipc.Node{
			{ID: 2, Type: "output", Nodes: []*ipc.Node{
				{ID: 3, Type: "workspace", Num: 5, Nodes: []*ipc.Node{target}},
			}},
		},
	}
	var d Daemon
	assert.Equal(t, 5, d.workspaceOfTree(tree, target))
	assert.Equal(t, 0, d.workspaceOfTree(tree, &ipc.Node{ID: 999}))
}
