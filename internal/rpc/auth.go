package rpc

import (
	"net"
	"os"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

// PeerCredentials identifies the process on the other end of a Unix
// socket connection.
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

// Authenticator verifies connecting peers. The Linux implementation uses
// SO_PEERCRED; there is no network fallback by design, and platforms
// without an equivalent mechanism refuse every connection.
type Authenticator interface {
	Authenticate(conn net.Conn) (PeerCredentials, error)
}

// VerifySocketMode checks that the socket file is owner-only rw (0600).
func VerifySocketMode(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errdefs.Filesystem(err, "stat socket %s", path)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		return errdefs.Auth(errdefs.CodeAuthSocketMode,
			"socket %s has mode %04o, want 0600", path, perm)
	}
	return nil
}
