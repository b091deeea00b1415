package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
)

// FocusPersistence writes the focus state files under the i3 config
// directory. Each write replaces the whole file atomically (temp + rename)
// under a coarse lock.
type FocusPersistence struct {
	mu  sync.Mutex
	dir string
}

// NewFocusPersistence creates a persistence layer rooted at dir
// (normally paths.ConfigDir()).
func NewFocusPersistence(dir string) *FocusPersistence {
	return &FocusPersistence{dir: dir}
}

const (
	projectFocusFile   = "project-focus-state.json"
	workspaceFocusFile = "workspace-focus-state.json"
	activeProjectFile  = "active-project.json"
)

// WriteAtomic writes data to path via a temp file in the same directory.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errdefs.Filesystem(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errdefs.Filesystem(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errdefs.Filesystem(err, "writing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errdefs.Filesystem(err, "closing %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &errdefs.DaemonError{
			Kind:    errdefs.KindFilesystem,
			Code:    errdefs.CodeAtomicWriteFailed,
			Message: fmt.Sprintf("renaming %s to %s", tmpName, path),
		}
	}
	return nil
}

// Save writes both focus files.
func (p *FocusPersistence) Save(fs *FocusState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	projData, err := json.MarshalIndent(fs.ProjectFocusedWorkspace, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project focus state: %w", err)
	}
	if err := WriteAtomic(filepath.Join(p.dir, projectFocusFile), projData); err != nil {
		return err
	}

	// Workspace keys are stringified on disk.
	wsMap := make(map[string]int64, len(fs.WorkspaceFocusedWindow))
	for num, id := range fs.WorkspaceFocusedWindow {
		wsMap[strconv.Itoa(num)] = id
	}
	wsData, err := json.MarshalIndent(wsMap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workspace focus state: %w", err)
	}
	return WriteAtomic(filepath.Join(p.dir, workspaceFocusFile), wsData)
}

// Load reads both focus files. Missing files yield an empty state.
func (p *FocusPersistence) Load() (*FocusState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fs := NewFocusState()

	if data, err := os.ReadFile(filepath.Join(p.dir, projectFocusFile)); err == nil {
		if err := json.Unmarshal(data, &fs.ProjectFocusedWorkspace); err != nil {
			return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt, "corrupt %s: %v", projectFocusFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errdefs.Filesystem(err, "reading %s", projectFocusFile)
	}

	if data, err := os.ReadFile(filepath.Join(p.dir, workspaceFocusFile)); err == nil {
		wsMap := make(map[string]int64)
		if err := json.Unmarshal(data, &wsMap); err != nil {
			return nil, errdefs.Configuration(errdefs.CodeConfigCorrupt, "corrupt %s: %v", workspaceFocusFile, err)
		}
		for key, id := range wsMap {
			num, err := strconv.Atoi(key)
			if err != nil || num < MinWorkspace || num > MaxWorkspace {
				log.Warn(log.CatState, "skipping invalid workspace key", "key", key)
				continue
			}
			fs.WorkspaceFocusedWindow[num] = id
		}
	} else if !os.IsNotExist(err) {
		return nil, errdefs.Filesystem(err, "reading %s", workspaceFocusFile)
	}

	return fs, nil
}

// SaveActiveProject writes active-project.json.
func (p *FocusPersistence) SaveActiveProject(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := json.Marshal(map[string]string{"project_name": name})
	if err != nil {
		return fmt.Errorf("encoding active project: %w", err)
	}
	return WriteAtomic(filepath.Join(p.dir, activeProjectFile), data)
}

// LoadActiveProject reads active-project.json; empty when absent.
func (p *FocusPersistence) LoadActiveProject() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(p.dir, activeProjectFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errdefs.Filesystem(err, "reading %s", activeProjectFile)
	}
	var v struct {
		ProjectName string `json:"project_name"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", errdefs.Configuration(errdefs.CodeConfigCorrupt, "corrupt %s: %v", activeProjectFile, err)
	}
	return v.ProjectName, nil
}
