package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// Persistence reads and writes layout snapshots under
// <root>/<project>/<name>.json.
type Persistence struct {
	root string
}

// NewPersistence creates a persistence layer rooted at the layouts dir.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: root}
}

func (p *Persistence) path(project, name string) string {
	return filepath.Join(p.root, project, name+".json")
}

// Save writes a snapshot atomically.
func (p *Persistence) Save(s *Snapshot) error {
	if s.Project == "" || s.Name == "" {
		return errdefs.Validation(errdefs.CodeMissingParam, "snapshot project and name are required")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errdefs.Configuration(errdefs.CodeConfigCorrupt, "encoding snapshot %q: %v", s.Name, err)
	}
	return state.WriteAtomic(p.path(s.Project, s.Name), data)
}

// Load reads one snapshot.
func (p *Persistence) Load(project, name string) (*Snapshot, error) {
	data, err := os.ReadFile(p.path(project, name))
	if os.IsNotExist(err) {
		return nil, errdefs.Configuration(errdefs.CodeConfigMissing, "layout %q not found for project %q", name, project).
			WithSuggestion("run 'i3pm layout save' or check the layouts directory")
	}
	if err != nil {
		return nil, errdefs.Filesystem(err, "reading layout %q", name)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt, "corrupt layout %q: %v", name, err)
	}
	return &s, nil
}

// List returns the snapshot names of a project, newest first by file
// modification time.
func (p *Persistence) List(project string) ([]string, error) {
	dir := filepath.Join(p.root, project)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errdefs.Filesystem(err, "reading layouts dir for %q", project)
	}

	type named struct {
		name string
		mod  int64
	}
	var files []named
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, named{strings.TrimSuffix(e.Name(), ".json"), info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// LatestAutoSave returns the newest auto-* snapshot name, empty when none.
func (p *Persistence) LatestAutoSave(project string) (string, error) {
	names, err := p.List(project)
	if err != nil {
		return "", err
	}
	// Auto-save names embed the timestamp, so the lexicographically
	// greatest name is the newest regardless of file mtimes.
	latest := ""
	for _, name := range names {
		if strings.HasPrefix(name, AutoSavePrefix) && name > latest {
			latest = name
		}
	}
	return latest, nil
}

// PruneAutoSaves keeps the newest keep auto-* snapshots and deletes the
// rest. Errors are logged, not fatal.
func (p *Persistence) PruneAutoSaves(project string, keep int) {
	if keep < 1 {
		keep = 1
	}
	names, err := p.List(project)
	if err != nil {
		log.ErrorErr(log.CatLayout, "prune: listing auto-saves failed", err, "project", project)
		return
	}
	var autos []string
	for _, name := range names {
		if strings.HasPrefix(name, AutoSavePrefix) {
			autos = append(autos, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(autos)))

	for _, name := range autos[min(keep, len(autos)):] {
		if err := os.Remove(p.path(project, name)); err != nil {
			log.ErrorErr(log.CatLayout, "prune: removing auto-save failed", err, "name", name)
		} else {
			log.Debug(log.CatLayout, "auto-save pruned", "project", project, "name", name)
		}
	}
}
