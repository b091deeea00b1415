package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

func TestClient_CallRoundTrip(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})

	client, err := Dial(context.Background(), socketPath)
	require.NoError(t, err)
	defer client.Close()

	var result map[string]any
	require.NoError(t, client.Call(context.Background(), "echo", map[string]any{"x": 1}, &result))
	assert.Equal(t, float64(1), result["x"])
}

func TestClient_ErrorSurface(t *testing.T) {
	_, socketPath := startServer(t, allowAll{})

	client, err := Dial(context.Background(), socketPath)
	require.NoError(t, err)
	defer client.Close()

	err = client.Call(context.Background(), "boom", nil, nil)
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeValidationFailed, de.Code)
	assert.Equal(t, "close the existing terminal first", de.Suggestion)
}

func TestClient_DialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "/nonexistent/daemon.sock")
	require.Error(t, err)
	de, ok := errdefs.AsDaemonError(err)
	require.True(t, ok)
	assert.NotEmpty(t, de.Suggestion)
}

func TestClient_Subscribe(t *testing.T) {
	s, socketPath := startServer(t, allowAll{})

	client, err := Dial(context.Background(), socketPath)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := client.Subscribe(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	s.Broadcast("window::new", map[string]any{"window_id": 7})

	select {
	case raw := <-ch:
		var notif Notification
		require.NoError(t, json.Unmarshal(raw, &notif))
		assert.Equal(t, "window::new", notif.Method)
	case <-ctx.Done():
		t.Fatal("no broadcast received")
	}
}
