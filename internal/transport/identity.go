// Package transport implements wais.TransportAdapter over libp2p, grounded
// on pkg/p2pnet/network.go (host construction), pkg/p2pnet/service.go
// (per-protocol stream handling), and pkg/p2pnet/mdns.go (zeroconf-based
// LAN announce/discovery).
package transport

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/akitasoftware/wais/pkg/wais"
)

// peerIdentity adapts a libp2p peer.ID to wais.Identity. Hex is named for
// spec fidelity ("opaque hex identity string"); the actual content is
// peer.ID's base58btc string form, which is what every other libp2p API in
// this package expects back.
type peerIdentity struct {
	id peer.ID
}

func newPeerIdentity(id peer.ID) wais.Identity {
	return &peerIdentity{id: id}
}

func (p *peerIdentity) Hex() string { return p.id.String() }

// peerIDFromIdentity recovers the underlying peer.ID from a wais.Identity,
// validating that it is one this package produced.
func peerIDFromIdentity(identity wais.Identity) (peer.ID, error) {
	if pi, ok := identity.(*peerIdentity); ok {
		return pi.id, nil
	}
	id, err := peer.Decode(identity.Hex())
	if err != nil {
		return "", fmt.Errorf("decode peer identity %q: %w", identity.Hex(), err)
	}
	return id, nil
}
