package transport

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/akitasoftware/wais/pkg/wais"
)

// protocolPrefix namespaces every aspect's libp2p protocol ID so it can
// never collide with another application sharing the same host.
const protocolPrefix = "/wais/"

// Config configures a Transport.
type Config struct {
	// PrivKey is this node's persistent identity, typically loaded via
	// internal/identity.LoadOrCreateIdentity.
	PrivKey crypto.PrivKey

	// ListenAddrs overrides the default TCP/QUIC/WebSocket listen
	// multiaddrs. Optional.
	ListenAddrs []string
}

// Transport implements wais.TransportAdapter over a libp2p host, grounded
// on pkg/p2pnet/network.go (host construction) and pkg/p2pnet/service.go
// (per-protocol stream handling), with discovery realized over zeroconf
// per pkg/p2pnet/mdns.go.
type Transport struct {
	host host.Host
	self wais.Identity

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Transport bound to cfg.PrivKey's identity.
func New(cfg Config) (*Transport, error) {
	if cfg.PrivKey == nil {
		return nil, fmt.Errorf("transport: PrivKey is required")
	}

	h, err := newHost(cfg.PrivKey, cfg.ListenAddrs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		host:   h,
		self:   newPeerIdentity(h.ID()),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Self implements wais.TransportAdapter.
func (t *Transport) Self() wais.Identity { return t.self }

// Announce implements wais.TransportAdapter by publishing a short-lived
// zeroconf registration carrying appData (spec §4.2).
func (t *Transport) Announce(ctx context.Context, aspect string, appData []byte) error {
	return t.announce(ctx, aspect, appData)
}

// Listen implements wais.TransportAdapter by browsing for aspect's service
// type until ctx is cancelled (spec §4.1).
func (t *Transport) Listen(ctx context.Context, aspect string, cb func(wais.AnnounceEvent)) error {
	return t.listen(ctx, aspect, cb)
}

// Serve implements wais.TransportAdapter by registering a libp2p stream
// handler for aspect; each inbound stream becomes one Link handed to
// handler on its own goroutine, matching pkg/p2pnet/service.go's
// handleServiceStream shape.
func (t *Transport) Serve(aspect string, handler func(wais.Link)) error {
	pid := protocol.ID(protocolPrefix + aspect)
	t.host.SetStreamHandler(pid, func(s network.Stream) {
		l := newLink(t.ctx, s)
		go handler(l)
	})
	return nil
}

// Dial implements wais.TransportAdapter by opening a libp2p stream to
// identity on aspect's protocol ID, blocking until the stream opens or ctx
// is done.
func (t *Transport) Dial(ctx context.Context, identity wais.Identity, aspect string) (wais.Link, error) {
	peerID, err := peerIDFromIdentity(identity)
	if err != nil {
		return nil, err
	}

	pid := protocol.ID(protocolPrefix + aspect)
	s, err := t.host.NewStream(ctx, peerID, pid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wais.ErrNotConnected, err)
	}

	return newLink(t.ctx, s), nil
}

// Close implements wais.TransportAdapter.
func (t *Transport) Close() error {
	t.cancel()
	return t.host.Close()
}
