package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
)

// Handler receives decoded compositor events in emission order. Handlers
// must not block the pump; long work is dispatched to a worker goroutine.
type Handler func(ctx context.Context, ev Event)

// Config holds client configuration options.
type Config struct {
	// SocketPath is the compositor control socket. Required.
	SocketPath string

	// Subscriptions lists the event classes to subscribe to.
	Subscriptions []string

	// MaxReconnectInterval caps the reconnect backoff.
	MaxReconnectInterval time.Duration

	// OnReconnect is invoked after every successful (re)connect, before
	// events flow. Used to re-derive the state store from a tree refresh.
	OnReconnect func(ctx context.Context)
}

// DefaultSubscriptions covers everything the daemon consumes.
var DefaultSubscriptions = []string{"window", "workspace", "output", "tick", "shutdown"}

// Client maintains the connection pair to the compositor: one socket for
// request/reply commands, one carrying the subscribed event stream.
type Client struct {
	cfg Config

	mu      sync.Mutex // guards cmdConn request/reply cycles
	cmdConn net.Conn

	evtMu   sync.Mutex
	evtConn net.Conn

	handler   Handler
	handlerMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a client. Connect establishes the sockets.
func NewClient(cfg Config) *Client {
	if len(cfg.Subscriptions) == 0 {
		cfg.Subscriptions = DefaultSubscriptions
	}
	if cfg.MaxReconnectInterval == 0 {
		cfg.MaxReconnectInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, done: make(chan struct{})}
}

// SetHandler installs the event handler. Must be called before Run.
func (c *Client) SetHandler(h Handler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// Connect dials the command and event sockets and issues the subscription.
func (c *Client) Connect(ctx context.Context) error {
	cmd, err := dial(ctx, c.cfg.SocketPath)
	if err != nil {
		return errdefs.CompositorUnavailable(err, "connecting command socket")
	}

	evt, err := dial(ctx, c.cfg.SocketPath)
	if err != nil {
		_ = cmd.Close()
		return errdefs.CompositorUnavailable(err, "connecting event socket")
	}

	if err := subscribe(evt, c.cfg.Subscriptions); err != nil {
		_ = cmd.Close()
		_ = evt.Close()
		return errdefs.CompositorUnavailable(err, "subscribing to events")
	}

	c.mu.Lock()
	c.cmdConn = cmd
	c.mu.Unlock()
	c.evtMu.Lock()
	c.evtConn = evt
	c.evtMu.Unlock()

	log.Info(log.CatIPC, "connected to compositor", "socket", c.cfg.SocketPath, "subscriptions", strings.Join(c.cfg.Subscriptions, ","))
	return nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

func subscribe(conn net.Conn, classes []string) error {
	payload, err := json.Marshal(classes)
	if err != nil {
		return err
	}
	if err := writeMessage(conn, MsgSubscribe, payload); err != nil {
		return err
	}
	f, err := readFrame(conn)
	if err != nil {
		return err
	}
	var reply struct {
		Success bool `json:"success"`
	}
	if err := decodeReply(f.Payload, &reply); err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("compositor rejected subscription")
	}
	return nil
}

// Run pumps events until ctx is cancelled, reconnecting with bounded
// backoff on socket loss. Events are delivered in compositor-emitted
// order; the next event is not pulled until the handler returns.
func (c *Client) Run(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if err := c.pump(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.ErrorErr(log.CatIPC, "event stream lost, reconnecting", err)
			if !c.reconnect(ctx) {
				return
			}
		}
	}
}

func (c *Client) pump(ctx context.Context) error {
	c.evtMu.Lock()
	conn := c.evtConn
	c.evtMu.Unlock()
	if conn == nil {
		return fmt.Errorf("event socket not connected")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		f, err := readFrame(conn)
		if err != nil {
			return err
		}
		if !f.IsEvent {
			// Stray reply frame on the event socket; skip.
			continue
		}

		ev, err := decodeEvent(EventType(f.Type), f.Payload)
		if err != nil {
			log.ErrorErr(log.CatIPC, "dropping undecodable event", err, "type", EventType(f.Type))
			continue
		}

		if ev.Type == EventShutdown {
			return fmt.Errorf("compositor shutdown: %s", ev.Change)
		}

		c.handlerMu.RLock()
		h := c.handler
		c.handlerMu.RUnlock()
		if h != nil {
			h(ctx, ev)
		}
	}
}

func decodeEvent(t EventType, payload []byte) (Event, error) {
	ev := Event{Type: t, Raw: payload}
	switch t {
	case EventWindow:
		var we WindowEvent
		if err := decodeReply(payload, &we); err != nil {
			return ev, err
		}
		ev.Window = &we
		ev.Change = we.Change
	case EventWorkspace:
		var we WorkspaceEvent
		if err := decodeReply(payload, &we); err != nil {
			return ev, err
		}
		ev.WS = &we
		ev.Change = we.Change
	case EventOutput:
		var oe OutputEvent
		if err := decodeReply(payload, &oe); err != nil {
			return ev, err
		}
		ev.Output = &oe
		ev.Change = oe.Change
	case EventTick:
		var te TickEvent
		if err := decodeReply(payload, &te); err != nil {
			return ev, err
		}
		ev.Tick = &te
	case EventShutdown:
		var se struct {
			Change string `json:"change"`
		}
		if err := decodeReply(payload, &se); err != nil {
			return ev, err
		}
		ev.Change = se.Change
	}
	return ev, nil
}

// reconnect re-establishes both sockets with exponential backoff.
// Returns false when ctx was cancelled before a connection succeeded.
func (c *Client) reconnect(ctx context.Context) bool {
	c.closeConns()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = c.cfg.MaxReconnectInterval
	bo.MaxElapsedTime = 0 // retry until cancelled

	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return c.Connect(ctx)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return false
	}

	if c.cfg.OnReconnect != nil {
		c.cfg.OnReconnect(ctx)
	}
	return true
}

func (c *Client) closeConns() {
	c.mu.Lock()
	if c.cmdConn != nil {
		_ = c.cmdConn.Close()
		c.cmdConn = nil
	}
	c.mu.Unlock()
	c.evtMu.Lock()
	if c.evtConn != nil {
		_ = c.evtConn.Close()
		c.evtConn = nil
	}
	c.evtMu.Unlock()
}

// Close shuts the client down and waits for the pump to exit.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.closeConns()
	c.wg.Wait()
}

// roundTrip performs one request/reply cycle on the command socket.
func (c *Client) roundTrip(t MessageType, payload []byte, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmdConn == nil {
		return errdefs.CompositorUnavailable(nil, "command socket not connected")
	}
	if err := writeMessage(c.cmdConn, t, payload); err != nil {
		return errdefs.CompositorUnavailable(err, "writing ipc request")
	}
	f, err := readFrame(c.cmdConn)
	if err != nil {
		return errdefs.CompositorUnavailable(err, "reading ipc reply")
	}
	if v != nil {
		if err := decodeReply(f.Payload, v); err != nil {
			return errdefs.CompositorUnavailable(err, "decoding ipc reply")
		}
	}
	return nil
}

// RunCommand submits a compositor command string and verifies every
// sub-command succeeded.
func (c *Client) RunCommand(ctx context.Context, cmd string) error {
	_ = ctx
	var results []CommandResult
	if err := c.roundTrip(MsgRunCommand, []byte(cmd), &results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			log.Error(log.CatIPC, "command rejected", "cmd", cmd, "reason", r.Error)
			return errdefs.CommandRejected("command %q rejected: %s", cmd, r.Error)
		}
	}
	log.Debug(log.CatIPC, "command ok", "cmd", cmd)
	return nil
}

// GetTree returns the full layout tree.
func (c *Client) GetTree(ctx context.Context) (*Node, error) {
	_ = ctx
	var root Node
	if err := c.roundTrip(MsgGetTree, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// GetWorkspaces returns the workspace list.
func (c *Client) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	_ = ctx
	var ws []Workspace
	if err := c.roundTrip(MsgGetWorkspaces, nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// GetOutputs returns the output list.
func (c *Client) GetOutputs(ctx context.Context) ([]Output, error) {
	_ = ctx
	var outs []Output
	if err := c.roundTrip(MsgGetOutputs, nil, &outs); err != nil {
		return nil, err
	}
	return outs, nil
}

// GetMarks returns all marks known to the compositor.
func (c *Client) GetMarks(ctx context.Context) ([]string, error) {
	_ = ctx
	var marks []string
	if err := c.roundTrip(MsgGetMarks, nil, &marks); err != nil {
		return nil, err
	}
	return marks, nil
}

// SendTick emits a tick event visible to all subscribers.
func (c *Client) SendTick(ctx context.Context, payload string) error {
	_ = ctx
	var reply struct {
		Success bool `json:"success"`
	}
	if err := c.roundTrip(MsgSendTick, []byte(payload), &reply); err != nil {
		return err
	}
	if !reply.Success {
		return errdefs.CommandRejected("tick rejected")
	}
	return nil
}
