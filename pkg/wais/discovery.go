package wais

import (
	"context"
	"encoding/json"
	"log/slog"
)

// ServiceAspect is the fixed aspect a DiscoveryListener requires an
// announcing destination to advertise before it is let into PeerCache
// (spec §4.1 rule 1).
const ServiceAspect = "akita.wais.service.v1"

// DiscoveryListener subscribes to announces on a fixed discovery aspect,
// filters by service aspect and self-identity, and feeds PeerCache
// (spec §4.1).
type DiscoveryListener struct {
	transport TransportAdapter
	aspect    string
	cache     *PeerCache
	now       func() int64
}

// NewDiscoveryListener creates a listener that upserts into cache. now
// supplies the monotonic wall-clock seconds used for lastSeenUnixSec;
// pass nil to use the real clock.
func NewDiscoveryListener(transport TransportAdapter, aspect string, cache *PeerCache, now func() int64) *DiscoveryListener {
	if now == nil {
		now = defaultClock
	}
	return &DiscoveryListener{transport: transport, aspect: aspect, cache: cache, now: now}
}

// Run subscribes and blocks until ctx is cancelled or the transport's
// Listen call returns.
func (d *DiscoveryListener) Run(ctx context.Context) error {
	return d.transport.Listen(ctx, d.aspect, d.handle)
}

func (d *DiscoveryListener) handle(ev AnnounceEvent) {
	// Rule 1: ignore announces whose destination doesn't advertise the
	// service aspect.
	if !containsString(ev.ServiceIDs, ServiceAspect) {
		return
	}

	// Rule 2 / P1: ignore self-announces.
	self := d.transport.Self()
	if self != nil && ev.Identity != nil && ev.Identity.Hex() == self.Hex() {
		return
	}

	// Rule 3: malformed payloads are logged and dropped, never fatal.
	var payload AnnouncePayload
	if err := json.Unmarshal(ev.AppData, &payload); err != nil {
		slog.Warn("dropping malformed announce payload", "error", err)
		return
	}

	// Rule 4: upsert, keyed by the identity's Hex() string exactly as the
	// transport gives it; the key is not lowercased.
	d.cache.Upsert(ev.Identity.Hex(), payload.Name, payload.Desc, payload.Caps, d.now())
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
