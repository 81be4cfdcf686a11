package transport

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
)

// defaultListenAddrs binds an OS-assigned port on every local interface
// over TCP, QUIC, and WebSocket, mirroring pkg/p2pnet/network.go's
// transport set.
var defaultListenAddrs = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip4/0.0.0.0/udp/0/quic-v1",
	"/ip4/0.0.0.0/tcp/0/ws",
}

// newHost constructs a libp2p host carrying priv's identity, grounded on
// pkg/p2pnet/network.go's New: TCP + QUIC + WebSocket transports, with
// caller-supplied listen addresses overriding the defaults.
func newHost(priv crypto.PrivKey, listenAddrs []string) (host.Host, error) {
	if len(listenAddrs) == 0 {
		listenAddrs = defaultListenAddrs
	}

	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
		libp2p.ListenAddrStrings(listenAddrs...),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	return h, nil
}
