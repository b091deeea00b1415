package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"

	"github.com/google/uuid"
)

// spawnApp starts an application with the I3PM_* launch variables
// exported, matching the launcher wrapper's contract so Tier 1 can
// identify the resulting windows.
func spawnApp(ctx context.Context, app config.Application, projectName, projectDir string, workspaceNum int) error {
	if app.Command == "" {
		return errdefs.Configuration(errdefs.CodeUnknownApp, "application %q has no command", app.Name)
	}

	cmd := exec.CommandContext(ctx, app.Command, app.Parameters...)
	scope := state.ScopeGlobal
	if projectName != "" {
		scope = state.ScopeScoped
	}

	env := append(os.Environ(),
		proc.EnvAppID+"="+uuid.NewString(),
		proc.EnvAppName+"="+app.Name,
		proc.EnvScope+"="+string(scope),
		proc.EnvExpectedClass+"="+app.ExpectedClass,
	)
	if projectName != "" {
		env = append(env, proc.EnvProjectName+"="+projectName)
	}
	if projectDir != "" {
		env = append(env,
			proc.EnvProjectDir+"="+projectDir,
			proc.EnvWorkingDir+"="+projectDir,
		)
		cmd.Dir = projectDir
	}
	if workspaceNum != 0 {
		env = append(env, proc.EnvTargetWorkspace+"="+strconv.Itoa(workspaceNum))
	}
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return errdefs.Filesystem(err, "spawning %q", app.Command)
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()

	log.Info(log.CatLaunch, "app spawned",
		"app", app.Name, "pid", pid, "project", projectName,
		"ws", fmt.Sprintf("%d", workspaceNum))
	return nil
}
