package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

// Client is the CLI's connection to the daemon.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	nextID atomic.Int64
}

// Dial connects to the daemon socket.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errdefs.CompositorUnavailable(err, "daemon not reachable at %s", socketPath).
			WithSuggestion("start it with 'i3pm daemon'")
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Call performs one request/response cycle. result may be nil.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	rawID := json.RawMessage(fmt.Sprintf("%d", id))

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding params: %w", err)
		}
		rawParams = data
	}

	frame, err := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rawParams,
		ID:      &rawID,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	if _, err := c.conn.Write(append(frame, '\n')); err != nil {
		return errdefs.CompositorUnavailable(err, "writing rpc request")
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return errdefs.CompositorUnavailable(err, "reading rpc response")
	}

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *ErrorObject    `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("decoding rpc response: %w", err)
	}
	if resp.Error != nil {
		de := &errdefs.DaemonError{
			Kind:    errdefs.KindValidation,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
		if resp.Error.Data != nil {
			de.Suggestion = resp.Error.Data.Suggestion
			de.Context = resp.Error.Data.Context
		}
		return de
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decoding rpc result: %w", err)
		}
	}
	return nil
}

// Subscribe upgrades the connection to the event stream and returns a
// channel of raw notifications. The connection is dedicated to streaming
// afterwards.
func (c *Client) Subscribe(ctx context.Context) (<-chan json.RawMessage, error) {
	if err := c.Call(ctx, "subscribe_events", nil, nil); err != nil {
		return nil, err
	}
	_ = c.conn.SetDeadline(time.Time{})

	ch := make(chan json.RawMessage, 64)
	go func() {
		defer close(ch)
		for {
			line, err := c.reader.ReadBytes('\n')
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ch <- json.RawMessage(line):
			}
		}
	}()
	return ch, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
