package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"

	"github.com/akitasoftware/wais/pkg/wais"
)

// link wraps one libp2p stream as a wais.Link, speaking the frame envelope
// defined in pkg/wais/protocol.go. Grounded on pkg/p2pnet/service.go's
// serviceStream wrapper, generalized from a raw byte proxy to a framed,
// event-driven channel.
type link struct {
	stream network.Stream
	remote wais.Identity

	sendMu sync.Mutex

	events chan wais.LinkEvent

	closeOnce sync.Once
}

// newLink wraps stream and starts its background read pump. ctx bounds how
// long the pump keeps running once the stream's owner asks it to stop
// (closing the stream unblocks the pump's blocking Read immediately, so ctx
// cancellation is a belt-and-suspenders guard, not the primary mechanism).
func newLink(ctx context.Context, stream network.Stream) *link {
	l := &link{
		stream: stream,
		remote: newPeerIdentity(stream.Conn().RemotePeer()),
		events: make(chan wais.LinkEvent, 32),
	}
	go l.readLoop(ctx)
	return l
}

func (l *link) RemoteIdentity() wais.Identity { return l.remote }

// Send writes one frame to the stream. Concurrent callers (the dispatcher
// replying while FileSender streams data on the same link) are serialized
// by sendMu since network.Stream does not guarantee safe concurrent writes.
func (l *link) Send(kind byte, payload []byte) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return wais.WriteFrame(l.stream, kind, payload)
}

func (l *link) Events() <-chan wais.LinkEvent { return l.events }

func (l *link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.stream.Close()
	})
	return err
}

// readLoop decodes frames off the stream until it closes or errors,
// translating each into a LinkEvent. It always finishes by emitting
// LinkEventClosed and closing the events channel, satisfying the Link
// interface's "closed once the link is closed" contract.
func (l *link) readLoop(ctx context.Context) {
	defer close(l.events)
	defer l.emit(wais.LinkEvent{Kind: wais.LinkEventClosed})

	for {
		kind, payload, err := wais.ReadFrame(l.stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("link read loop stopped", "error", err)
			}
			return
		}

		var evKind wais.LinkEventKind
		switch kind {
		case wais.FrameRequest:
			evKind = wais.LinkEventRequest
		case wais.FrameResponse:
			evKind = wais.LinkEventResponse
		case wais.FrameData:
			evKind = wais.LinkEventData
		default:
			slog.Warn("dropping frame with unknown kind", "kind", kind)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		l.emit(wais.LinkEvent{Kind: evKind, Data: payload})
	}
}

// emit is only ever called from readLoop, the events channel's sole writer
// and closer, so there is no close-then-send race to guard against.
func (l *link) emit(ev wais.LinkEvent) {
	l.events <- ev
}
