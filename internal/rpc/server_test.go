package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

// allowAll accepts every peer; denyAll refuses every peer.
type allowAll struct{}

func (allowAll) Authenticate(net.Conn) (PeerCredentials, error) {
	return PeerCredentials{UID: 1000}, nil
}

type denyAll struct{}

func (denyAll) Authenticate(net.Conn) (PeerCredentials, error) {
	return PeerCredentials{UID: 1001}, errdefs.Auth(errdefs.CodeAuthUIDMismatch, "peer uid 1001 does not match daemon uid 1000")
}

func startServer(t *testing.T, auth Authenticator) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	s := NewServer(socketPath, auth)
	s.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var v map[string]any
		_ = json.Unmarshal(params, &v)
		return v, nil
	})
	s.Register("boom", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, errdefs.Validation(errdefs.CodeValidationFailed, "terminal already exists").
			WithSuggestion("close the existing terminal first")
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s, socketPath
}

func call(t *testing.T, conn net.Conn, frame string) map[string]any {
	t.Helper()
	_, err := conn.Write([]byte(frame + "\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestServer_EchoDispatch(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := call(t, conn, `{"jsonrpc":"2.0","method":"echo","params":{"x":1},"id":1}`)
	result := resp["result"].(map[string]any)
	assert.Equal(t, float64(1), result["x"])
}

func TestServer_MethodNotFound(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := call(t, conn, `{"jsonrpc":"2.0","method":"nope","id":2}`)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
}

func TestServer_StructuredErrorWithSuggestion(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := call(t, conn, `{"jsonrpc":"2.0","method":"boom","id":3}`)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(errdefs.CodeValidationFailed), errObj["code"])
	assert.Equal(t, "terminal already exists", errObj["message"])
	data := errObj["data"].(map[string]any)
	assert.Equal(t, "close the existing terminal first", data["suggestion"])
}

// Notifications (no id) are accepted silently; the next request on the
// same connection still gets its own response.
func TestServer_NotificationSilent(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"jsonrpc":"2.0","method":"echo","params":{"fire":"forget"}}` + "\n"))
	require.NoError(t, err)

	resp := call(t, conn, `{"jsonrpc":"2.0","method":"echo","params":{"x":2},"id":4}`)
	rawID, _ := json.Marshal(resp["id"])
	assert.Equal(t, "4", string(rawID))
}

func TestServer_ParseError(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := call(t, conn, `{definitely not json`)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeParseError), errObj["code"])
}

// A connection failing peer-credential auth is closed without any
// response body being written.
func TestServer_AuthRefusal(t *testing.T) {
	_, socketPath := startServer(t, denyAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, _ = conn.Write([]byte(`{"jsonrpc":"2.0","method":"echo","id":1}` + "\n"))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	assert.Error(t, err, "expected EOF, got %q", buf[:n])
	assert.Zero(t, n)
}

func TestServer_SocketMode(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})
	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	require.NoError(t, VerifySocketMode(socketPath))
}

func TestServer_BroadcastToSubscriber(t *testing.T) {
	s, socketPath := startServer(t, allowAll{})
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	_, err = conn.Write([]byte(`{"jsonrpc":"2.0","method":"subscribe_events","id":1}` + "\n"))
	require.NoError(t, err)
	ack, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	assert.Contains(t, string(ack), "subscribed")

	// The subscriber registry updates asynchronously with the upgrade.
	require.Eventually(t, func() bool { return s.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	s.Broadcast("project.switched", map[string]string{"to": "nixos"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var notif Notification
	require.NoError(t, json.Unmarshal(line, &notif))
	assert.Equal(t, "project.switched", notif.Method)
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "stale.sock")
	require.NoError(t, os.WriteFile(socketPath, nil, 0600))

	s := NewServer(socketPath, allowAll{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	conn.Close()
}
