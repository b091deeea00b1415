package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

func snap(project, name string) *Snapshot {
	return &Snapshot{Version: 1, Project: project, Name: name, CapturedAt: time.Now()}
}

func TestPersistence_SaveLoad(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Save(snap("nixos", "my-layout")))
	loaded, err := p.Load("nixos", "my-layout")
	require.NoError(t, err)
	assert.Equal(t, "my-layout", loaded.Name)

	_, err = p.Load("nixos", "missing")
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeConfigMissing, de.Code)
}

func TestPersistence_LatestAutoSave(t *testing.T) {
	p := NewPersistence(t.TempDir())

	latest, err := p.LatestAutoSave("nixos")
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, p.Save(snap("nixos", "auto-20260801-090000")))
	require.NoError(t, p.Save(snap("nixos", "auto-20260801-110000")))
	require.NoError(t, p.Save(snap("nixos", "auto-20260801-100000")))
	require.NoError(t, p.Save(snap("nixos", "manual-layout")))

	latest, err = p.LatestAutoSave("nixos")
	require.NoError(t, err)
	assert.Equal(t, "auto-20260801-110000", latest)
}

func TestPersistence_PruneAutoSaves(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence(root)

	for _, name := range []string{
		"auto-20260801-090000", "auto-20260801-100000", "auto-20260801-110000",
		"auto-20260801-120000", "manual-keepme",
	} {
		require.NoError(t, p.Save(snap("nixos", name)))
	}

	p.PruneAutoSaves("nixos", 2)

	names, err := p.List("nixos")
	require.NoError(t, err)
	assert.Len(t, names, 3) // 2 newest autos + the manual layout

	_, err = os.Stat(filepath.Join(root, "nixos", "auto-20260801-120000.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "nixos", "auto-20260801-090000.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "nixos", "manual-keepme.json"))
	assert.NoError(t, err, "manual layouts are never pruned")
}

func TestPersistence_SaveValidation(t *testing.T) {
	p := NewPersistence(t.TempDir())
	require.Error(t, p.Save(&Snapshot{Project: "", Name: "x"}))
	require.Error(t, p.Save(&Snapshot{Project: "x", Name: ""}))
}
