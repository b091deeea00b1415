package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedMark(t *testing.T) {
	assert.Equal(t, "scoped:nixos:42", ScopedMark("nixos", 42))
	assert.Equal(t, "scoped:global:7", ScopedMark("global", 7))
}

func TestParseScopedMark(t *testing.T) {
	tests := []struct {
		name    string
		mark    string
		project string
		id      int64
		ok      bool
	}{
		{"simple", "scoped:nixos:42", "nixos", 42, true},
		{"global sentinel", "scoped:global:7", "global", 7, true},
		{"worktree qualified", "scoped:vpittamp/nixos:feature-1:99", "vpittamp/nixos:feature-1", 99, true},
		{"no prefix", "other:nixos:42", "", 0, false},
		{"missing id", "scoped:nixos:", "", 0, false},
		{"non-numeric id", "scoped:nixos:abc", "", 0, false},
		{"empty project", "scoped::42", "", 0, false},
		{"bare", "scoped:", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project, id, ok := ParseScopedMark(tt.mark)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.project, project)
				assert.Equal(t, tt.id, id)
			}
		})
	}
}

func TestParseScopedMark_RoundTrip(t *testing.T) {
	for _, project := range []string{"nixos", "a/b:c", "x_y-z", "global"} {
		mark := ScopedMark(project, 1234)
		got, id, ok := ParseScopedMark(mark)
		require.True(t, ok, "mark %q", mark)
		assert.Equal(t, project, got)
		assert.Equal(t, int64(1234), id)
	}
}

func TestFindScopedMark(t *testing.T) {
	project, id, ok := FindScopedMark([]string{"user-mark", "scoped:nixos:42"})
	require.True(t, ok)
	assert.Equal(t, "nixos", project)
	assert.Equal(t, int64(42), id)

	_, _, ok = FindScopedMark([]string{"user-mark"})
	assert.False(t, ok)
}

func TestValidProjectName(t *testing.T) {
	assert.True(t, ValidProjectName("nixos"))
	assert.True(t, ValidProjectName("vpittamp/repo:branch"))
	assert.False(t, ValidProjectName(""))
	assert.False(t, ValidProjectName("has space"))
	assert.False(t, ValidProjectName("semi;colon"))
}
