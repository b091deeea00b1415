// Package proc reads I3PM_* launch variables from /proc/<pid>/environ,
// traversing parent processes for shared-runtime applications whose window
// pid does not carry the launcher environment. It is the Tier-1 source of
// window identity.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/vpittamp/i3pm/internal/cachemanager"
	"github.com/vpittamp/i3pm/internal/log"
)

// Launch environment variables injected by the launcher wrapper.
const (
	EnvAppID           = "I3PM_APP_ID"
	EnvAppName         = "I3PM_APP_NAME"
	EnvScope           = "I3PM_SCOPE"
	EnvProjectName     = "I3PM_PROJECT_NAME"
	EnvProjectDir      = "I3PM_PROJECT_DIR"
	EnvTargetWorkspace = "I3PM_TARGET_WORKSPACE"
	EnvExpectedClass   = "I3PM_EXPECTED_CLASS"
	EnvScratchpad      = "I3PM_SCRATCHPAD"
	EnvWorkingDir      = "I3PM_WORKING_DIR"
)

// launchKeys are the variables whose presence makes a read authoritative.
var launchKeys = []string{
	EnvAppName, EnvAppID, EnvProjectName, EnvScope, EnvTargetWorkspace, EnvExpectedClass,
}

// MaxParentDepth bounds the parent-chain traversal for both environment
// reads and Tier-0 pid linking.
const MaxParentDepth = 5

// FailureMode classifies an unsuccessful read. All modes are recoverable:
// the matcher skips to the next tier.
type FailureMode string

const (
	FailureNone             FailureMode = ""
	FailureNoPID            FailureMode = "no_pid"
	FailurePermissionDenied FailureMode = "permission_denied"
	FailureProcessExited    FailureMode = "process_exited"
	FailureNoVariables      FailureMode = "no_variables"
)

// Result is the outcome of an environment read.
type Result struct {
	// Env holds the I3PM_* variables found, keyed without the prefix
	// stripped (full names).
	Env map[string]string
	// SourcePID is the process that actually carried the variables; it
	// differs from the window pid when a parent was consulted.
	SourcePID int
	// Depth is how many parent hops were needed (0 = the window pid).
	Depth   int
	Failure FailureMode
}

// HasLaunchVars reports whether the result carries launcher variables.
func (r Result) HasLaunchVars() bool {
	return r.Failure == FailureNone && len(r.Env) > 0
}

// Environment is the process-environment port. The Linux implementation
// reads /proc; other platforms get a disabled implementation so Tier 1 is
// skipped and the coverage probe passes trivially.
type Environment interface {
	// Read returns the I3PM_* variables for pid, traversing up to
	// MaxParentDepth parents until one carries them.
	Read(ctx context.Context, pid int) Result
	// Available reports whether Tier-1 reads can work on this platform.
	Available() bool
	// Stats returns the latency statistics accumulated so far.
	Stats() LatencyStats
}

// NewEnvironment returns the platform implementation.
func NewEnvironment() Environment {
	if runtime.GOOS == "linux" {
		return NewProcEnvironment("/proc")
	}
	return disabledEnvironment{}
}

type disabledEnvironment struct{}

func (disabledEnvironment) Read(context.Context, int) Result {
	return Result{Failure: FailureNoVariables}
}
func (disabledEnvironment) Available() bool     { return false }
func (disabledEnvironment) Stats() LatencyStats { return LatencyStats{} }

// ProcEnvironment reads a procfs tree. The root is configurable so tests
// can point it at a fixture directory.
type ProcEnvironment struct {
	root    string
	sampler *latencySampler
	cache   *cachemanager.InMemoryCacheManager[string, Result]
}

// NewProcEnvironment creates a reader rooted at the given procfs path.
func NewProcEnvironment(root string) *ProcEnvironment {
	return &ProcEnvironment{
		root:    root,
		sampler: newLatencySampler(1024),
		cache: cachemanager.NewInMemoryCacheManager[string, Result](
			"proc-environ", 2*time.Second, 30*time.Second),
	}
}

// Available implements Environment.
func (p *ProcEnvironment) Available() bool { return true }

// Stats implements Environment.
func (p *ProcEnvironment) Stats() LatencyStats { return p.sampler.Snapshot() }

// Read implements Environment.
func (p *ProcEnvironment) Read(ctx context.Context, pid int) Result {
	if pid <= 0 {
		return Result{Failure: FailureNoPID}
	}

	key := strconv.Itoa(pid)
	if cached, ok := p.cache.Get(ctx, key); ok {
		return cached
	}

	start := time.Now()
	res := p.readChain(pid)
	p.sampler.Record(time.Since(start))

	// Negative results are cached too: a pid without launch vars will not
	// grow them later.
	p.cache.Set(ctx, key, res, 0)
	return res
}

// ReadUncached bypasses the cache for benchmarking the raw filesystem
// cost of a read.
func (p *ProcEnvironment) ReadUncached(ctx context.Context, pid int) Result {
	_ = ctx
	start := time.Now()
	res := p.readChain(pid)
	p.sampler.Record(time.Since(start))
	return res
}

func (p *ProcEnvironment) readChain(pid int) Result {
	current := pid
	for depth := 0; depth <= MaxParentDepth; depth++ {
		env, failure := p.readEnviron(current)
		if failure == FailureProcessExited && depth == 0 {
			return Result{Failure: FailureProcessExited}
		}
		if failure == FailurePermissionDenied && depth == 0 {
			return Result{Failure: FailurePermissionDenied}
		}
		if len(env) > 0 {
			return Result{Env: env, SourcePID: current, Depth: depth}
		}

		parent, err := p.parentPID(current)
		if err != nil || parent <= 1 {
			break
		}
		current = parent
	}
	return Result{Failure: FailureNoVariables}
}

// readEnviron parses /proc/<pid>/environ and keeps only I3PM_* entries.
func (p *ProcEnvironment) readEnviron(pid int) (map[string]string, FailureMode) {
	data, err := os.ReadFile(filepath.Join(p.root, strconv.Itoa(pid), "environ"))
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, FailureProcessExited
		case os.IsPermission(err):
			return nil, FailurePermissionDenied
		default:
			log.Debug(log.CatProc, "environ read failed", "pid", pid, "error", err)
			return nil, FailureProcessExited
		}
	}

	env := make(map[string]string)
	for _, entry := range bytes.Split(data, []byte{0}) {
		if len(entry) == 0 || !bytes.HasPrefix(entry, []byte("I3PM_")) {
			continue
		}
		k, v, found := strings.Cut(string(entry), "=")
		if !found {
			continue
		}
		env[k] = v
	}
	if len(env) == 0 {
		return nil, FailureNoVariables
	}
	return env, FailureNone
}

// parentPID reads the ppid from /proc/<pid>/stat. The comm field may
// contain spaces and parentheses, so parsing starts after the last ')'.
func (p *ProcEnvironment) parentPID(pid int) (int, error) {
	data, err := os.ReadFile(filepath.Join(p.root, strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, err
	}
	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(string(data[idx+2:]))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	// fields[0] is state, fields[1] is ppid.
	return strconv.Atoi(fields[1])
}

// IsParentOf reports whether ancestorPID appears in pid's parent chain
// within MaxParentDepth hops. Used by Tier-0 scoring to link a window's
// process back to the launcher.
func (p *ProcEnvironment) IsParentOf(ancestorPID, pid int) bool {
	if ancestorPID <= 0 || pid <= 0 {
		return false
	}
	current := pid
	for depth := 0; depth < MaxParentDepth; depth++ {
		parent, err := p.parentPID(current)
		if err != nil || parent <= 1 {
			return false
		}
		if parent == ancestorPID {
			return true
		}
		current = parent
	}
	return false
}

// ParentLinker is implemented by environments that can walk parent chains.
type ParentLinker interface {
	IsParentOf(ancestorPID, pid int) bool
}
