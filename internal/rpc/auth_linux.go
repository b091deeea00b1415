//go:build linux

package rpc

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

// PeerCredAuthenticator enforces UID equality with the daemon via
// SO_PEERCRED.
type PeerCredAuthenticator struct {
	daemonUID uint32
}

// NewPeerCredAuthenticator returns an authenticator bound to the current
// process UID.
func NewPeerCredAuthenticator() *PeerCredAuthenticator {
	return &PeerCredAuthenticator{daemonUID: uint32(os.Getuid())}
}

var _ Authenticator = (*PeerCredAuthenticator)(nil)

// Authenticate retrieves the peer's kernel-verified credentials and
// rejects UID mismatches. Auth failures close the connection without a
// response body.
func (a *PeerCredAuthenticator) Authenticate(conn net.Conn) (PeerCredentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return PeerCredentials{}, errdefs.Auth(errdefs.CodeAuthPeerCredential, "connection is not a unix socket")
	}

	raw, err := unixConn.SyscallConn()
	if err != nil {
		return PeerCredentials{}, errdefs.Auth(errdefs.CodeAuthPeerCredential, "accessing raw connection: %v", err)
	}

	var ucred *unix.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		ucred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return PeerCredentials{}, errdefs.Auth(errdefs.CodeAuthPeerCredential, "SO_PEERCRED control: %v", ctrlErr)
	}
	if sockErr != nil {
		return PeerCredentials{}, errdefs.Auth(errdefs.CodeAuthPeerCredential, "SO_PEERCRED: %v", sockErr)
	}

	creds := PeerCredentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}
	if creds.UID != a.daemonUID {
		return creds, errdefs.Auth(errdefs.CodeAuthUIDMismatch,
			"peer uid %d does not match daemon uid %d", creds.UID, a.daemonUID)
	}
	return creds, nil
}
