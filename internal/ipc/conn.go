package ipc

import "context"

// Conn is the command surface consumed by the daemon's services. *Client
// implements it; tests substitute fakes.
type Conn interface {
	RunCommand(ctx context.Context, cmd string) error
	GetTree(ctx context.Context) (*Node, error)
	GetWorkspaces(ctx context.Context) ([]Workspace, error)
	GetOutputs(ctx context.Context) ([]Output, error)
	GetMarks(ctx context.Context) ([]string, error)
	SendTick(ctx context.Context, payload string) error
}

var _ Conn = (*Client)(nil)
