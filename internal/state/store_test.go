package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

func testProjects() []Project {
	return []Project{
		{Name: "nixos", Directory: "/etc/nixos", Scope: ScopeScoped},
		{Name: "test-project", Directory: "/tmp/test", Scope: ScopeScoped},
	}
}

func scopedWindow(id int64, project string, ws int) *Window {
	return &Window{
		WindowID:     id,
		Class:        "btop",
		WorkspaceNum: ws,
		OutputName:   "eDP-1",
		Scope:        ScopeScoped,
		Project:      project,
		Marks:        []string{ScopedMark(project, id)},
	}
}

func TestStore_UpsertWindow_Invariants(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())

	t.Run("valid scoped window", func(t *testing.T) {
		require.NoError(t, s.UpsertWindow(scopedWindow(1, "nixos", 3)))
		w, ok := s.Window(1)
		require.True(t, ok)
		assert.Equal(t, "nixos", w.Project)
	})

	t.Run("workspace out of range", func(t *testing.T) {
		w := scopedWindow(2, "nixos", 71)
		err := s.UpsertWindow(w)
		require.Error(t, err)
		assert.True(t, errdefs.IsKind(err, errdefs.KindState))
	})

	t.Run("global window with project", func(t *testing.T) {
		w := &Window{WindowID: 3, Scope: ScopeGlobal, Project: "nixos", WorkspaceNum: 1}
		require.Error(t, s.UpsertWindow(w))
	})

	t.Run("scoped window without project", func(t *testing.T) {
		w := &Window{WindowID: 4, Scope: ScopeScoped, WorkspaceNum: 1}
		require.Error(t, s.UpsertWindow(w))
	})

	t.Run("mark disagrees with project", func(t *testing.T) {
		w := scopedWindow(5, "nixos", 1)
		w.Marks = []string{ScopedMark("test-project", 5)}
		require.Error(t, s.UpsertWindow(w))
	})

	t.Run("mark disagrees with window id", func(t *testing.T) {
		w := scopedWindow(6, "nixos", 1)
		w.Marks = []string{ScopedMark("nixos", 99)}
		require.Error(t, s.UpsertWindow(w))
	})

	t.Run("pwa without type", func(t *testing.T) {
		w := &Window{WindowID: 7, Scope: ScopeGlobal, WorkspaceNum: 1, IsPWA: true}
		require.Error(t, s.UpsertWindow(w))
	})
}

func TestStore_SetActiveProject(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())

	require.NoError(t, s.SetActiveProject("nixos"))
	assert.Equal(t, "nixos", s.ActiveProject())

	err := s.SetActiveProject("nope")
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeUnknownProject, de.Code)
	// Failed switch leaves the active project untouched.
	assert.Equal(t, "nixos", s.ActiveProject())

	require.NoError(t, s.SetActiveProject(""))
	assert.Empty(t, s.ActiveProject())
}

func TestStore_ActiveProjectClearedWhenProjectVanishes(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())
	require.NoError(t, s.SetActiveProject("nixos"))

	s.SetProjects([]Project{{Name: "other", Directory: "/tmp", Scope: ScopeScoped}})
	assert.Empty(t, s.ActiveProject())
}

func TestStore_WindowsOfProject(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())
	require.NoError(t, s.UpsertWindow(scopedWindow(1, "nixos", 3)))
	require.NoError(t, s.UpsertWindow(scopedWindow(2, "test-project", 3)))
	require.NoError(t, s.UpsertWindow(&Window{WindowID: 3, Scope: ScopeGlobal, WorkspaceNum: 3, Class: "pavucontrol"}))

	nixos := s.WindowsOfProject("nixos")
	require.Len(t, nixos, 1)
	assert.Equal(t, int64(1), nixos[0].WindowID)

	onWS := s.WindowsOnWorkspace(3)
	assert.Len(t, onWS, 3)
}

func TestStore_RemoveWindow_ClearsFocusState(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())
	require.NoError(t, s.UpsertWindow(scopedWindow(1, "nixos", 3)))
	require.NoError(t, s.SetFocusedWindow(3, 1))

	s.RemoveWindow(1)
	_, ok := s.Window(1)
	assert.False(t, ok)
	fs := s.FocusSnapshot()
	_, ok = fs.WorkspaceFocusedWindow[3]
	assert.False(t, ok)
}

func TestStore_EnsureMark(t *testing.T) {
	s := NewStore()
	s.SetProjects(testProjects())
	w := scopedWindow(9, "nixos", 2)
	w.Marks = nil
	require.NoError(t, s.UpsertWindow(w))

	mark, err := s.EnsureMark(9)
	require.NoError(t, err)
	assert.Equal(t, "scoped:nixos:9", mark)

	// Idempotent: a second call keeps exactly one unified mark.
	_, err = s.EnsureMark(9)
	require.NoError(t, err)
	got, _ := s.Window(9)
	count := 0
	for _, m := range got.Marks {
		if _, _, ok := ParseScopedMark(m); ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStore_FocusStateValidation(t *testing.T) {
	s := NewStore()
	require.Error(t, s.SetFocusedWorkspace("p", 0))
	require.Error(t, s.SetFocusedWorkspace("p", 71))
	require.NoError(t, s.SetFocusedWorkspace("p", 70))
	require.Error(t, s.SetFocusedWindow(0, 1))
}
