// Package testutil provides shared test fakes.
package testutil

import (
	"context"
	"sync"

	"github.com/vpittamp/i3pm/internal/ipc"
)

// FakeConn is an in-memory ipc.Conn recording every command. Queries
// return the configured fixtures.
type FakeConn struct {
	mu       sync.Mutex
	Commands []string

	Tree       *ipc.Node
	Workspaces []ipc.Workspace
	Outputs    []ipc.Output
	Marks      []string

	// FailCommands makes RunCommand return the given error.
	FailCommands error
}

var _ ipc.Conn = (*FakeConn)(nil)

// NewFakeConn returns an empty fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{Tree: &ipc.Node{Type: "root"}}
}

func (f *FakeConn) RunCommand(ctx context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCommands != nil {
		return f.FailCommands
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

func (f *FakeConn) GetTree(ctx context.Context) (*ipc.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Tree, nil
}

func (f *FakeConn) GetWorkspaces(ctx context.Context) ([]ipc.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Workspaces, nil
}

func (f *FakeConn) GetOutputs(ctx context.Context) ([]ipc.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Outputs, nil
}

func (f *FakeConn) GetMarks(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Marks, nil
}

func (f *FakeConn) SendTick(ctx context.Context, payload string) error {
	return nil
}

// CommandLog returns a copy of the recorded commands.
func (f *FakeConn) CommandLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Commands...)
}
