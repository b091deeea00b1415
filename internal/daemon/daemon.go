// Package daemon wires the control plane together: the compositor event
// loop, the state store, the matcher, the orchestrator, and the RPC
// server. All shared services hang off the Daemon value; there are no
// global singletons.
package daemon

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/vpittamp/i3pm/internal/badges"
	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/correlation"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/events"
	"github.com/vpittamp/i3pm/internal/git"
	sqliteinfra "github.com/vpittamp/i3pm/internal/infrastructure/sqlite"
	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/launch"
	"github.com/vpittamp/i3pm/internal/layout"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/paths"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/project"
	"github.com/vpittamp/i3pm/internal/rpc"
	"github.com/vpittamp/i3pm/internal/scratchpad"
	"github.com/vpittamp/i3pm/internal/state"
	"github.com/vpittamp/i3pm/internal/watcher"
	"github.com/vpittamp/i3pm/internal/wsmode"
)

// Daemon is the assembled control plane.
type Daemon struct {
	cfg      config.Config
	cfgStore *config.Store

	store    *state.Store
	client   *ipc.Client
	env      proc.Environment
	registry *launch.Registry
	matcher  *launch.Matcher
	recorder *events.Recorder
	corr     *correlation.Service
	tracer   *correlation.Provider
	focus    *state.FocusPersistence
	tracker  *project.FocusTracker
	orch     *project.Orchestrator
	projects *project.Manager
	machine  *wsmode.Machine
	engine   *layout.Engine
	layouts  *layout.Persistence
	badges   *badges.Service
	scratch  *scratchpad.Manager
	server   *rpc.Server
	watch    *watcher.Watcher

	db      *sql.DB
	history *sqliteinfra.HistoryRepository
	usage   *sqliteinfra.UsageRepository

	startedAt time.Time
}

// Options parameterise daemon construction.
type Options struct {
	Config     config.Config
	ConfigDir  string // defaults to paths.ConfigDir()
	SocketPath string // defaults to paths.DaemonSocket()
	DBPath     string // defaults to <data dir>/history.db
}

// New assembles the daemon. Nothing is started yet.
func New(opts Options) (*Daemon, error) {
	if opts.ConfigDir == "" {
		opts.ConfigDir = paths.ConfigDir()
	}
	if opts.SocketPath == "" {
		opts.SocketPath = paths.DaemonSocket()
	}
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(paths.DataDir(), "history.db")
	}

	compositorSocket, err := paths.CompositorSocket()
	if err != nil {
		return nil, errdefs.CompositorUnavailable(err, "locating compositor socket")
	}

	db, err := sqliteinfra.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}

	tracer, err := correlation.NewProvider(correlation.TracerConfig{
		Enabled:      opts.Config.Tracing.Enabled,
		Exporter:     opts.Config.Tracing.Exporter,
		FilePath:     opts.Config.Tracing.FilePath,
		OTLPEndpoint: opts.Config.Tracing.OTLPEndpoint,
		SampleRate:   opts.Config.Tracing.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      opts.Config,
		cfgStore: config.NewStore(opts.ConfigDir),
		store:    state.NewStore(),
		env:      proc.NewEnvironment(),
		registry: launch.NewRegistry(),
		corr:     correlation.NewService(),
		tracer:   tracer,
		focus:    state.NewFocusPersistence(opts.ConfigDir),
		db:       db,
		history:  sqliteinfra.NewHistoryRepository(db),
		usage:    sqliteinfra.NewUsageRepository(db),
	}

	d.recorder = events.NewRecorder(opts.Config.EventRingCapacity, d.corr)
	d.matcher = launch.NewMatcher(d.registry, d.env, d.cfgStore)
	d.badges = badges.NewService(paths.BadgeDir(), opts.Config.BadgeMinClearAge)

	d.client = ipc.NewClient(ipc.Config{
		SocketPath:  compositorSocket,
		OnReconnect: d.onReconnect,
	})
	d.scratch = scratchpad.NewManager(d.client, opts.Config.Terminal)
	d.layouts = layout.NewPersistence(filepath.Join(opts.ConfigDir, "layouts"))
	d.engine = layout.NewEngine(d.store, d.client, d.env, d.cfgStore, &launcher{d: d})
	d.orch = project.NewOrchestrator(project.Config{
		Store:    d.store,
		Conn:     d.client,
		Engine:   d.engine,
		Layouts:  d.layouts,
		Recorder: d.recorder,
		Corr:     d.corr,
		Focus:    d.focus,
		CfgStore: d.cfgStore,
		Daemon:   opts.Config,
		Usage:    d.usage,
	})
	d.projects = project.NewManager(d.cfgStore, d.store, git.NewRealExecutor())
	d.tracker = project.NewFocusTracker(d.store, d.focus)
	d.machine = wsmode.NewMachine(wsmode.Config{
		Conn: d.client,
		Emit: func(ctx context.Context, ev wsmode.Event) {
			d.recorder.Emit(ctx, "workspace_mode", ev, nil)
			d.server.Broadcast("workspace_mode", ev)
		},
		Sink:            d.history,
		HistoryCapacity: opts.Config.HistoryCapacity,
		CurrentOutput:   d.focusedOutput,
	})
	d.server = rpc.NewServer(opts.SocketPath, rpc.NewPeerCredAuthenticator())
	d.registerHandlers()

	return d, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startedAt = time.Now()

	if err := d.cfgStore.Reload(); err != nil {
		return err
	}
	d.store.SetProjects(d.cfgStore.Projects())

	// Restore persisted state.
	if fs, err := d.focus.Load(); err == nil {
		d.store.RestoreFocusState(fs)
	} else {
		log.ErrorErr(log.CatState, "focus state load failed", err)
	}
	if usage, err := d.usage.All(); err == nil {
		d.store.RestoreUsage(usage)
	}
	if active, err := d.focus.LoadActiveProject(); err == nil && active != "" {
		if _, ok := d.store.Project(active); ok {
			if err := d.store.SetActiveProject(active); err != nil {
				log.ErrorErr(log.CatState, "restoring active project failed", err)
			}
		}
	}

	// Compositor connection and initial state derivation.
	if err := d.client.Connect(ctx); err != nil {
		return err
	}
	d.client.SetHandler(d.handleEvent)
	d.onReconnect(ctx)
	d.store.MarkInitialized()

	// Config directory watcher with debounce.
	w, err := watcher.New(watcher.DefaultConfig(d.cfgStore.Dir()))
	if err != nil {
		return err
	}
	d.watch = w
	changes, err := w.Start()
	if err != nil {
		return err
	}
	go d.configReloadLoop(ctx, changes)

	if err := d.server.Start(ctx); err != nil {
		return err
	}

	d.recorder.Emit(ctx, "daemon.started", map[string]any{
		"socket": paths.DaemonSocket(),
	}, nil)

	d.client.Run(ctx) // blocks until ctx cancelled or Close
	return nil
}

func (d *Daemon) configReloadLoop(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := d.cfgStore.Reload(); err != nil {
				log.ErrorErr(log.CatConfig, "config reload failed", err)
				continue
			}
			d.store.SetProjects(d.cfgStore.Projects())
			d.recorder.Emit(ctx, "config.reloaded", nil, nil)
		}
	}
}

// onReconnect re-derives the state store from a full tree refresh. Also
// runs at startup and re-adopts windows from surviving scoped:* marks.
func (d *Daemon) onReconnect(ctx context.Context) {
	if err := d.refreshTree(ctx); err != nil {
		log.ErrorErr(log.CatIPC, "tree refresh failed", err)
		return
	}
	if err := d.orch.ReconcileOutputs(ctx); err != nil {
		log.ErrorErr(log.CatOutputs, "output reconcile failed", err)
	}
}

// Shutdown stops everything in reverse dependency order.
func (d *Daemon) Shutdown(ctx context.Context) {
	d.server.Stop()
	if d.watch != nil {
		d.watch.Stop()
	}
	d.client.Close()
	d.recorder.Close()
	if err := d.focus.Save(d.store.FocusSnapshot()); err != nil {
		log.ErrorErr(log.CatState, "final focus save failed", err)
	}
	if err := d.tracer.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
	}
	if err := d.db.Close(); err != nil {
		log.ErrorErr(log.CatHistory, "db close failed", err)
	}
	log.Info(log.CatIPC, "daemon stopped")
}

// focusedOutput resolves the currently focused output for history records.
func (d *Daemon) focusedOutput(ctx context.Context) string {
	for _, ws := range d.store.Workspaces() {
		if ws.Focused {
			return ws.Output
		}
	}
	return ""
}

// launcher implements layout.Launcher over the daemon's registry and
// process spawning.
type launcher struct {
	d *Daemon
}

var _ layout.Launcher = (*launcher)(nil)

// Launch follows the launcher contract: notify the registry first so the
// resulting window::new correlates, then spawn the command with I3PM_*
// variables exported.
func (l *launcher) Launch(ctx context.Context, app config.Application, proj *state.Project, workspaceNum int) error {
	projectName, projectDir := "", ""
	if proj != nil {
		projectName = proj.Name
		projectDir = proj.Directory
	}
	if _, err := l.d.registry.NotifyLaunch(
		app.Name, projectName, projectDir, 0, workspaceNum, app.ExpectedClass, time.Time{},
	); err != nil {
		return err
	}
	return spawnApp(ctx, app, projectName, projectDir, workspaceNum)
}
