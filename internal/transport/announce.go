package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/akitasoftware/wais/pkg/wais"
)

// TXT record prefixes distinguishing our own app-data payload from the
// dnsaddr-style address records, mirroring pkg/p2pnet/mdns.go's
// dnsaddrPrefix convention.
const (
	appDataTXTPrefix = "data="
	dnsaddrTXTPrefix = "dnsaddr="
)

// announceBroadcastWindow is how long a one-shot zeroconf registration
// stays up to let its unsolicited announce packet go out before being
// withdrawn. Short because Announce is called periodically by
// wais.AnnounceEngine (default 60s) rather than left registered forever.
const announceBroadcastWindow = 500 * time.Millisecond

// serviceType derives a DNS-SD service type from an aspect string (spec
// concept table: "Aspect: A protocol.ID / mDNS service-name suffix
// namespacing string").
func serviceType(aspect string) string {
	return "_" + strings.ReplaceAll(aspect, ".", "-") + "._udp"
}

// buildTXT assembles the TXT record set for one announce: the app-data
// payload, and the node's own dialable multiaddrs so a discovering peer's
// Dial can find us without a separate address-resolution step.
func buildTXT(appData []byte, addrs []ma.Multiaddr) []string {
	txts := make([]string, 0, len(addrs)+1)
	txts = append(txts, appDataTXTPrefix+string(appData))
	for _, a := range addrs {
		txts = append(txts, dnsaddrTXTPrefix+a.String())
	}
	return txts
}

// parseTXT is buildTXT's inverse, tolerant of unknown entries (forward
// compatibility, spec §4.7).
func parseTXT(txts []string) (appData []byte, addrs []ma.Multiaddr) {
	for _, txt := range txts {
		switch {
		case strings.HasPrefix(txt, appDataTXTPrefix):
			appData = []byte(strings.TrimPrefix(txt, appDataTXTPrefix))
		case strings.HasPrefix(txt, dnsaddrTXTPrefix):
			addr, err := ma.NewMultiaddr(strings.TrimPrefix(txt, dnsaddrTXTPrefix))
			if err == nil {
				addrs = append(addrs, addr)
			}
		}
	}
	return appData, addrs
}

// announce registers a short-lived zeroconf service carrying appData and
// this host's own multiaddrs, waits out announceBroadcastWindow so the
// unsolicited mDNS response has time to go out, then withdraws the
// registration (spec §4.2: the server re-announces on its own timer, so
// each call is a fresh broadcast rather than a standing registration).
func (t *Transport) announce(ctx context.Context, aspect string, appData []byte) error {
	p2pAddrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{
		ID:    t.host.ID(),
		Addrs: t.host.Addrs(),
	})
	if err != nil {
		return fmt.Errorf("build announce addrs: %w", err)
	}

	txts := buildTXT(appData, p2pAddrs)
	instance := t.host.ID().String()

	server, err := zeroconf.RegisterProxy(
		instance,
		serviceType(aspect),
		"local.",
		4001, // nominal DNS-SD port; real dial addresses travel in TXT
		instance,
		[]string{"0.0.0.0"},
		txts,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register announce: %w", err)
	}
	defer server.Shutdown()

	select {
	case <-time.After(announceBroadcastWindow):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// listen browses for aspect's service type until ctx is cancelled,
// invoking cb for every entry, and opportunistically feeding discovered
// multiaddrs into the host's peerstore so a later Dial can find the peer
// (spec §4.1's "resolve announce's destination aspects" realized as TXT
// parsing rather than a separate destination-aspect query).
func (t *Transport) listen(ctx context.Context, aspect string, cb func(wais.AnnounceEvent)) error {
	entries := make(chan *zeroconf.ServiceEntry, 32)

	go func() {
		for entry := range entries {
			t.handleEntry(entry, aspect, cb)
		}
	}()

	err := zeroconf.Browse(ctx, serviceType(aspect), "local.", entries)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Transport) handleEntry(entry *zeroconf.ServiceEntry, aspect string, cb func(wais.AnnounceEvent)) {
	appData, addrs := parseTXT(entry.Text)
	if len(addrs) == 0 {
		return
	}

	infos, err := peer.AddrInfosFromP2pAddrs(addrs...)
	if err != nil || len(infos) == 0 {
		return
	}
	info := infos[0]
	if info.ID == t.host.ID() {
		return
	}
	t.host.Peerstore().AddAddrs(info.ID, info.Addrs, time.Hour)

	cb(wais.AnnounceEvent{
		Identity:   newPeerIdentity(info.ID),
		AppData:    appData,
		ServiceIDs: []string{wais.ServiceAspect},
	})
}
