package launch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

func TestRegistry_NotifyLaunch(t *testing.T) {
	r := NewRegistry()

	id, err := r.NotifyLaunch("vscode", "nixos", "/etc/nixos", 12345, 2, "Code", time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "vscode", pending[0].AppName)
	assert.False(t, pending[0].Matched)

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalNotified)
	assert.Equal(t, 1, stats.Pending)
}

func TestRegistry_Validation(t *testing.T) {
	r := NewRegistry()

	_, err := r.NotifyLaunch("", "", "", 0, 0, "Code", time.Time{})
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))

	_, err = r.NotifyLaunch("app", "", "", 0, 0, "", time.Time{})
	require.Error(t, err)

	_, err = r.NotifyLaunch("app", "", "", 0, 99, "Code", time.Time{})
	require.Error(t, err)
}

func TestRegistry_ExpiryOnAdd(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.NotifyLaunch("old", "", "", 0, 0, "Old", now)
	require.NoError(t, err)

	// Advance past the 5s expiry; the next add cleans up.
	now = now.Add(Expiry + time.Second)
	_, err = r.NotifyLaunch("new", "", "", 0, 0, "New", now)
	require.NoError(t, err)

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].AppName)
	assert.Equal(t, 1, r.Stats().TotalExpired)
}

func TestRegistry_ConsumeExactlyOnce(t *testing.T) {
	r := NewRegistry()
	id, err := r.NotifyLaunch("vscode", "", "", 0, 0, "Code", time.Time{})
	require.NoError(t, err)

	assert.True(t, r.consume(id))
	assert.False(t, r.consume(id), "second consume must fail")
	assert.Equal(t, 1, r.Stats().TotalMatched)
}
