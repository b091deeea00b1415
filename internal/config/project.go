package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// deletedSuffix marks soft-deleted project files.
const deletedSuffix = ".deleted"

// projectFileName maps a project name to its file name. Worktree-qualified
// names (account/repo:branch) contain path separators, which are flattened.
func projectFileName(name string) string {
	safe := strings.NewReplacer("/", "%2F", ":", "%3A").Replace(name)
	return safe + ".json"
}

// LoadProjects reads every projects/<name>.json under dir, skipping
// soft-deleted files.
func LoadProjects(dir string) ([]state.Project, error) {
	projectsDir := filepath.Join(dir, "projects")
	entries, err := os.ReadDir(projectsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errdefs.Filesystem(err, "reading projects dir")
	}

	var projects []state.Project
	seen := make(map[string]struct{})
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, deletedSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(projectsDir, name))
		if err != nil {
			log.ErrorErr(log.CatConfig, "skipping unreadable project file", err, "file", name)
			continue
		}
		var p state.Project
		if err := json.Unmarshal(data, &p); err != nil {
			log.ErrorErr(log.CatConfig, "skipping corrupt project file", err, "file", name)
			continue
		}
		if p.Name == "" || !state.ValidProjectName(p.Name) {
			log.Warn(log.CatConfig, "skipping project with invalid name", "file", name, "name", p.Name)
			continue
		}
		if _, dup := seen[p.Name]; dup {
			return nil, errdefs.Configuration(errdefs.CodeDuplicateProject, "duplicate project %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Scope == "" {
			p.Scope = state.ScopeScoped
		}
		if p.SourceType == "" {
			p.SourceType = state.SourceLocal
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// SaveProject writes projects/<name>.json atomically.
func SaveProject(dir string, p *state.Project) error {
	if !state.ValidProjectName(p.Name) {
		return errdefs.Validation(errdefs.CodeValidationFailed, "invalid project name %q", p.Name).
			WithSuggestion("project names may contain letters, digits, _ - / :")
	}
	if !filepath.IsAbs(p.Directory) {
		return errdefs.Validation(errdefs.CodeValidationFailed, "project directory must be absolute, got %q", p.Directory)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errdefs.Configuration(errdefs.CodeConfigCorrupt, "encoding project %q: %v", p.Name, err)
	}
	path := filepath.Join(dir, "projects", projectFileName(p.Name))
	return state.WriteAtomic(path, data)
}

// DeleteProject soft-deletes a project by renaming its file to
// <name>.json.deleted.
func DeleteProject(dir, name string) error {
	path := filepath.Join(dir, "projects", projectFileName(name))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errdefs.Configuration(errdefs.CodeUnknownProject, "project %q does not exist", name)
	}
	if err := os.Rename(path, path+deletedSuffix); err != nil {
		return errdefs.Filesystem(err, "soft-deleting project %q", name)
	}
	log.Info(log.CatConfig, "project soft-deleted", "project", name)
	return nil
}
