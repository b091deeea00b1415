// Package git retrieves best-effort repository metadata for projects.
// Failures are VCS errors: logged, never fatal — a project without git
// metadata is still fully operable.
package git

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/state"
)

// commandTimeout bounds every git invocation.
const commandTimeout = 3 * time.Second

// Executor runs git commands in a repository directory.
type Executor interface {
	Metadata(ctx context.Context, dir string) (*state.GitMetadata, error)
}

// RealExecutor shells out to the git binary.
type RealExecutor struct{}

// NewRealExecutor returns an executor using the system git.
func NewRealExecutor() *RealExecutor { return &RealExecutor{} }

var _ Executor = (*RealExecutor)(nil)

func (e *RealExecutor) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return "", errdefs.VCS(err, "git %s in %s", strings.Join(args, " "), dir)
	}
	return strings.TrimSpace(out.String()), nil
}

// Metadata collects branch, remote, divergence, and dirtiness.
func (e *RealExecutor) Metadata(ctx context.Context, dir string) (*state.GitMetadata, error) {
	branch, err := e.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}
	md := &state.GitMetadata{Branch: branch}

	if remote, err := e.run(ctx, dir, "remote", "get-url", "origin"); err == nil {
		md.Remote = remote
	}

	if counts, err := e.run(ctx, dir, "rev-list", "--left-right", "--count", "@{upstream}...HEAD"); err == nil {
		fields := strings.Fields(counts)
		if len(fields) == 2 {
			md.CommitsBehind, _ = strconv.Atoi(fields[0])
			md.CommitsAhead, _ = strconv.Atoi(fields[1])
		}
	}

	if status, err := e.run(ctx, dir, "status", "--porcelain"); err == nil {
		md.Dirty = status != ""
	}

	return md, nil
}
