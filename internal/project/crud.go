package project

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/git"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// Manager handles project CRUD over the config directory.
type Manager struct {
	cfg   *config.Store
	store *state.Store
	git   git.Executor
}

// NewManager creates a project manager.
func NewManager(cfg *config.Store, store *state.Store, gitExec git.Executor) *Manager {
	return &Manager{cfg: cfg, store: store, git: gitExec}
}

// CreateOptions parameterise project creation.
type CreateOptions struct {
	Name        string
	DisplayName string
	Directory   string
	Icon        string
	Remote      string
	AutoSave    bool
	AutoRestore bool
}

// Create writes a new project file and reloads the config. Duplicate
// names are configuration errors.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*state.Project, error) {
	if opts.Name == "" {
		return nil, errdefs.Validation(errdefs.CodeMissingParam, "project name is required")
	}
	if !state.ValidProjectName(opts.Name) {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "invalid project name %q", opts.Name).
			WithSuggestion("project names may contain letters, digits, _ - / :")
	}
	if _, exists := m.store.Project(opts.Name); exists {
		return nil, errdefs.Configuration(errdefs.CodeDuplicateProject, "project %q already exists", opts.Name)
	}
	if !filepath.IsAbs(opts.Directory) {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "directory must be absolute, got %q", opts.Directory)
	}

	p := &state.Project{
		Name:        opts.Name,
		DisplayName: opts.DisplayName,
		Directory:   opts.Directory,
		Icon:        opts.Icon,
		Scope:       state.ScopeScoped,
		Remote:      opts.Remote,
		AutoSave:    opts.AutoSave,
		AutoRestore: opts.AutoRestore,
		SourceType:  sourceType(opts),
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}

	// Git metadata is best-effort; a plain directory is fine.
	if p.SourceType != state.SourceRemote && m.git != nil {
		if md, err := m.git.Metadata(ctx, p.Directory); err == nil {
			p.GitMetadata = md
		} else {
			log.Debug(log.CatProject, "no git metadata", "project", p.Name, "error", err)
		}
	}

	if err := config.SaveProject(m.cfg.Dir(), p); err != nil {
		return nil, err
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	log.Info(log.CatProject, "project created", "project", p.Name, "source", p.SourceType)
	return p, nil
}

func sourceType(opts CreateOptions) state.SourceType {
	switch {
	case opts.Remote != "":
		return state.SourceRemote
	case strings.Contains(opts.Name, ":"):
		return state.SourceWorktree
	default:
		return state.SourceLocal
	}
}

// Edit applies changes to an existing project.
func (m *Manager) Edit(ctx context.Context, name string, mutate func(*state.Project) error) (*state.Project, error) {
	p, ok := m.store.Project(name)
	if !ok {
		return nil, errdefs.Configuration(errdefs.CodeUnknownProject, "unknown project %q", name)
	}
	if err := mutate(&p); err != nil {
		return nil, err
	}
	if p.Name != name {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "project rename is not supported").
			WithSuggestion("create a new project and delete the old one")
	}
	if err := config.SaveProject(m.cfg.Dir(), &p); err != nil {
		return nil, err
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete soft-deletes a project. The active project cannot be deleted.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if m.store.ActiveProject() == name {
		return errdefs.Validation(errdefs.CodeValidationFailed, "cannot delete the active project").
			WithSuggestion("switch to another project first")
	}
	if err := config.DeleteProject(m.cfg.Dir(), name); err != nil {
		return err
	}
	return m.reload()
}

// reload refreshes config and pushes projects into the store.
func (m *Manager) reload() error {
	if err := m.cfg.Reload(); err != nil {
		return err
	}
	m.store.SetProjects(m.cfg.Projects())
	return nil
}
