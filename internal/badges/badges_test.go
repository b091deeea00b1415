package badges

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(t.TempDir(), 2*time.Second)
}

func TestCreateOrIncrement(t *testing.T) {
	s := newTestService(t)

	b, err := s.CreateOrIncrement(100, "claude-code", StateStopped, "nixos")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Count)
	assert.True(t, b.NeedsAttention)

	// Repeat while stopped increments.
	b, err = s.CreateOrIncrement(100, "claude-code", StateStopped, "nixos")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count)

	// Transition to working does not increment.
	b, err = s.CreateOrIncrement(100, "claude-code", StateWorking, "nixos")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count)
	assert.False(t, b.NeedsAttention)
}

func TestCreateOrIncrement_Validation(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateOrIncrement(0, "x", StateStopped, "")
	require.Error(t, err)
	_, err = s.CreateOrIncrement(1, "x", "sleeping", "")
	require.Error(t, err)
}

func TestDisplayCount(t *testing.T) {
	b := &Badge{Count: 9}
	assert.Equal(t, "9", b.DisplayCount())
	b.Count = 10
	assert.Equal(t, "9+", b.DisplayCount())
	b.Count = 9999
	assert.Equal(t, "9+", b.DisplayCount())
}

func TestCountCap(t *testing.T) {
	s := newTestService(t)
	for i := 0; i < MaxCount+50; i++ {
		_, err := s.CreateOrIncrement(1, "src", StateStopped, "")
		require.NoError(t, err)
	}
	snap := s.Snapshot()
	assert.Equal(t, "9+", snap["1"].Count)
}

// 1 <= count <= 9999 always holds, and display is "9+" iff count > 9.
func TestBadgeCount_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewService("", time.Second)
		n := rapid.IntRange(1, 200).Draw(t, "increments")
		var last *Badge
		for i := 0; i < n; i++ {
			b, err := s.CreateOrIncrement(7, "src", StateStopped, "")
			require.NoError(t, err)
			last = b
		}
		assert.GreaterOrEqual(t, last.Count, 1)
		assert.LessOrEqual(t, last.Count, MaxCount)
		if last.Count > 9 {
			assert.Equal(t, "9+", last.DisplayCount())
		} else {
			assert.NotEqual(t, "9+", last.DisplayCount())
		}
	})
}

func TestClearOnFocus_MinAgeGate(t *testing.T) {
	s := newTestService(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.CreateOrIncrement(5, "src", StateStopped, "")
	require.NoError(t, err)

	// Immediately on focus: too young, badge survives.
	assert.False(t, s.ClearOnFocus(5))
	assert.Len(t, s.Snapshot(), 1)

	// Old enough: cleared.
	now = now.Add(3 * time.Second)
	assert.True(t, s.ClearOnFocus(5))
	assert.Empty(t, s.Snapshot())

	// Clearing a missing badge reports false.
	assert.False(t, s.ClearOnFocus(5))
}

func TestClear_Unconditional(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateOrIncrement(5, "src", StateStopped, "")
	require.NoError(t, err)
	assert.True(t, s.Clear(5))
	assert.False(t, s.Clear(5))
}

func TestSweepOrphans(t *testing.T) {
	s := newTestService(t)
	for _, id := range []int64{1, 2, 3} {
		_, err := s.CreateOrIncrement(id, "src", StateStopped, "")
		require.NoError(t, err)
	}

	removed := s.SweepOrphans(map[int64]struct{}{2: {}})
	assert.Equal(t, 2, removed)
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	_, ok := snap["2"]
	assert.True(t, ok)
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, time.Second)

	_, err := s.CreateOrIncrement(42, "build", StateStopped, "nixos")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "42.json"))
	require.NoError(t, err)
	var exp Export
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, "1", exp.Count)
	assert.Equal(t, "build", exp.Source)
	assert.Equal(t, StateStopped, exp.State)
	assert.Equal(t, "nixos", exp.Project)

	// Clearing removes the file.
	s.Clear(42)
	_, err = os.Stat(filepath.Join(dir, "42.json"))
	assert.True(t, os.IsNotExist(err))
}
