//go:build !linux

package rpc

import (
	"net"

	"github.com/vpittamp/i3pm/internal/errdefs"
)

// PeerCredAuthenticator has no kernel peer-credential mechanism off
// Linux; every connection is refused.
type PeerCredAuthenticator struct{}

// NewPeerCredAuthenticator returns the refusing authenticator.
func NewPeerCredAuthenticator() *PeerCredAuthenticator {
	return &PeerCredAuthenticator{}
}

var _ Authenticator = (*PeerCredAuthenticator)(nil)

// Authenticate refuses: there is no SO_PEERCRED equivalent wired on this
// platform and no network fallback by design.
func (a *PeerCredAuthenticator) Authenticate(conn net.Conn) (PeerCredentials, error) {
	return PeerCredentials{}, errdefs.Auth(errdefs.CodeAuthPeerCredential,
		"peer credentials unavailable on this platform")
}
