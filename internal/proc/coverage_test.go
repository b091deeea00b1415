package proc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/state"
)

type cannedEnv struct {
	byPID     map[int]Result
	available bool
}

func (c cannedEnv) Read(_ context.Context, pid int) Result {
	if r, ok := c.byPID[pid]; ok {
		return r
	}
	return Result{Failure: FailureNoVariables}
}
func (c cannedEnv) Available() bool     { return c.available }
func (c cannedEnv) Stats() LatencyStats { return LatencyStats{} }

func TestCoverage_AllCovered(t *testing.T) {
	env := cannedEnv{available: true, byPID: map[int]Result{
		10: {Env: map[string]string{EnvAppName: "a"}},
		20: {Env: map[string]string{EnvAppName: "b"}},
	}}
	windows := []state.Window{
		{WindowID: 1, PID: 10, Scope: state.ScopeGlobal},
		{WindowID: 2, PID: 20, Scope: state.ScopeGlobal},
	}

	report := ValidateEnvironmentCoverage(context.Background(), env, windows)
	assert.Equal(t, CoveragePass, report.Status)
	assert.Equal(t, 2, report.WindowsWithEnv)
	assert.Equal(t, 100.0, report.CoveragePercentage)
	assert.Empty(t, report.MissingWindows)
}

func TestCoverage_MissingWindowsFail(t *testing.T) {
	env := cannedEnv{available: true, byPID: map[int]Result{
		10: {Env: map[string]string{EnvAppName: "a"}},
	}}
	windows := []state.Window{
		{WindowID: 1, PID: 10, Scope: state.ScopeGlobal},
		{WindowID: 2, PID: 0, Class: "legacy", Title: "Legacy App", Scope: state.ScopeGlobal},
	}

	report := ValidateEnvironmentCoverage(context.Background(), env, windows)
	assert.Equal(t, CoverageFail, report.Status)
	assert.Equal(t, 1, report.WindowsWithoutEnv)
	assert.InDelta(t, 50.0, report.CoveragePercentage, 0.01)
	require.Len(t, report.MissingWindows, 1)
	assert.Equal(t, int64(2), report.MissingWindows[0].WindowID)
	assert.Equal(t, "legacy", report.MissingWindows[0].Class)
}

// When Tier 1 is unavailable the probe passes trivially.
func TestCoverage_UnavailablePassesTrivially(t *testing.T) {
	env := cannedEnv{available: false}
	windows := []state.Window{{WindowID: 1, PID: 10, Scope: state.ScopeGlobal}}

	report := ValidateEnvironmentCoverage(context.Background(), env, windows)
	assert.Equal(t, CoveragePass, report.Status)
	assert.False(t, report.Tier1Available)
	assert.Equal(t, 100.0, report.CoveragePercentage)
}

func TestCoverage_NoWindows(t *testing.T) {
	env := cannedEnv{available: true}
	report := ValidateEnvironmentCoverage(context.Background(), env, nil)
	assert.Equal(t, CoveragePass, report.Status)
	assert.Equal(t, 100.0, report.CoveragePercentage)
}
