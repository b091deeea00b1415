package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/state"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadApplicationRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application-registry.json", `{
		"version": 1,
		"applications": [
			{"name": "vscode", "command": "code", "expected_class": "Code", "scope": "scoped", "preferred_workspace": 2},
			{"name": "firefox", "command": "firefox", "expected_class": "firefox", "scope": "global"}
		]
	}`)

	reg, err := LoadApplicationRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg.Applications, 2)

	app, ok := reg.ByName("vscode")
	require.True(t, ok)
	assert.Equal(t, 2, app.PreferredWorkspace)

	app, ok = reg.ByClass("Code", "", "")
	require.True(t, ok)
	assert.Equal(t, "vscode", app.Name)

	_, ok = reg.ByName("nope")
	assert.False(t, ok)
}

func TestLoadApplicationRegistry_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application-registry.json", `{
		"version": 1,
		"applications": [
			{"name": "x", "command": "x", "expected_class": "X", "scope": "global"},
			{"name": "x", "command": "y", "expected_class": "Y", "scope": "global"}
		]
	}`)
	_, err := LoadApplicationRegistry(dir)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindConfiguration))
}

func TestLoadApplicationRegistry_WorkspaceOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application-registry.json", `{
		"version": 1,
		"applications": [{"name": "x", "command": "x", "expected_class": "X", "scope": "global", "preferred_workspace": 99}]
	}`)
	_, err := LoadApplicationRegistry(dir)
	require.Error(t, err)
}

func TestLoadPWARegistry_Lookups(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pwa-registry.json", `{
		"version": 1,
		"pwas": [
			{"name": "claude", "url": "https://claude.ai", "ulid": "01JCYF8Z2M7R4N6QW9XKPHVTB5"},
			{"name": "youtube", "url": "https://youtube.com", "instance": "youtube-pwa"}
		]
	}`)

	reg, err := LoadPWARegistry(dir)
	require.NoError(t, err)

	pwa, ok := reg.ByULID("01JCYF8Z2M7R4N6QW9XKPHVTB5")
	require.True(t, ok)
	assert.Equal(t, "claude", pwa.Name)

	pwa, ok = reg.ByInstance("youtube-pwa")
	require.True(t, ok)
	assert.Equal(t, "youtube", pwa.Name)
}

func TestLoadCorruptRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application-registry.json", `{not json`)
	_, err := LoadApplicationRegistry(dir)
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeConfigCorrupt, de.Code)
	assert.NotEmpty(t, de.Suggestion)
}

func TestStore_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application-registry.json", `{
		"version": 1,
		"applications": [{"name": "x", "command": "x", "expected_class": "X", "scope": "global"}]
	}`)

	store := NewStore(dir)
	require.NoError(t, store.Reload())
	require.Len(t, store.Applications().Applications, 1)

	// Corrupt the file: reload fails, previous snapshot stays.
	writeFile(t, dir, "application-registry.json", `{broken`)
	require.Error(t, store.Reload())
	assert.Len(t, store.Applications().Applications, 1)
}

func TestProjectSoftDelete(t *testing.T) {
	dir := t.TempDir()
	p := &state.Project{Name: "nixos", Directory: "/etc/nixos", Scope: state.ScopeScoped}
	require.NoError(t, SaveProject(dir, p))

	projects, err := LoadProjects(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	require.NoError(t, DeleteProject(dir, "nixos"))
	projects, err = LoadProjects(dir)
	require.NoError(t, err)
	assert.Empty(t, projects)

	// The file still exists with the .deleted suffix.
	_, err = os.Stat(filepath.Join(dir, "projects", "nixos.json.deleted"))
	require.NoError(t, err)

	// Deleting again fails: the live file is gone.
	require.Error(t, DeleteProject(dir, "nixos"))
}

func TestSaveProject_Validation(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, SaveProject(dir, &state.Project{Name: "bad name", Directory: "/x"}))
	require.Error(t, SaveProject(dir, &state.Project{Name: "ok", Directory: "relative/path"}))
}

func TestLoadProjects_WorktreeQualifiedNames(t *testing.T) {
	dir := t.TempDir()
	p := &state.Project{Name: "vpittamp/nixos:feature", Directory: "/tmp/wt", Scope: state.ScopeScoped}
	require.NoError(t, SaveProject(dir, p))

	projects, err := LoadProjects(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "vpittamp/nixos:feature", projects[0].Name)
	assert.Equal(t, state.SourceLocal, projects[0].SourceType)
}
