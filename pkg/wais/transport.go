package wais

import (
	"context"
	"io"
)

// Identity is an opaque, stable peer identity handle (spec §3: "opaque
// 128-bit (or larger) peer key provided by the transport").
type Identity interface {
	// Hex returns the string PeerCache keys records by. It is used as
	// given, without lowercasing; the libp2p transport returns the base58
	// peer ID here, not a hex encoding.
	Hex() string
}

// AnnounceEvent is delivered to a DiscoveryListener callback for every
// announce observed on the discovery aspect, regardless of which service
// aspects the announcing destination advertises (spec §4.1 rule 1 filters
// by service aspect after this event arrives).
type AnnounceEvent struct {
	Identity   Identity
	AppData    []byte
	ServiceIDs []string // destination aspects advertised by the announcer
}

// LinkEvent is enqueued by the transport as a link transitions through its
// state machine or receives a frame (spec §9 design notes: "re-architect
// as an explicit state machine per link... transport's callbacks enqueue
// typed events"). For LinkEventRequest and LinkEventResponse, Data carries
// the raw JSON payload exactly as read off the wire; decoding (and
// producing the "Invalid JSON request" error response on failure, per spec
// §4.3) is the RequestDispatcher/LinkClient's responsibility, not the
// transport's.
type LinkEvent struct {
	Kind LinkEventKind
	Data []byte // raw JSON payload, valid for LinkEventRequest/LinkEventResponse
}

// LinkEventKind enumerates the events a Link can deliver.
type LinkEventKind int

const (
	LinkEventRequest LinkEventKind = iota
	LinkEventResponse
	LinkEventData
	LinkEventClosed
)

// Link is a single bidirectional, session-oriented channel to one remote
// peer (spec's Link / Destination vocabulary realized as a libp2p stream
// by internal/transport).
type Link interface {
	io.Closer

	// RemoteIdentity returns the peer identity at the other end.
	RemoteIdentity() Identity

	// Send writes a frame of the given kind to the link.
	Send(kind byte, payload []byte) error

	// Events returns a channel of LinkEvent delivered in arrival order.
	// The channel is closed once the link is closed and all buffered
	// events have been delivered.
	Events() <-chan LinkEvent
}

// TransportAdapter abstracts the mesh overlay transport: identities,
// destinations, announces, links, and raw sends (spec §1's "out of scope"
// collaborator, §6's external contract). internal/transport implements
// this over libp2p + mDNS.
type TransportAdapter interface {
	// Self returns this node's own identity.
	Self() Identity

	// Announce broadcasts appData on aspect. Implementations MUST NOT
	// block past the given context's deadline.
	Announce(ctx context.Context, aspect string, appData []byte) error

	// Listen subscribes to announces on aspect, invoking cb for each one
	// until ctx is cancelled.
	Listen(ctx context.Context, aspect string, cb func(AnnounceEvent)) error

	// Serve registers a handler invoked once per inbound link on aspect.
	// The handler owns the link until it returns or the link closes.
	Serve(aspect string, handler func(Link)) error

	// Dial establishes an outbound link to identity on aspect, blocking
	// until the link is Active or ctx is done.
	Dial(ctx context.Context, identity Identity, aspect string) (Link, error)

	// Close releases all transport resources.
	Close() error
}
