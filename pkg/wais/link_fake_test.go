package wais

import "sync"

// fakeLink is a test double for Link: Send records every frame sent (so
// server-side tests can inspect what went out on the wire) and Events
// delivers whatever the test pushes onto it (so client-side tests can
// drive a LinkClient/FileReceiver through a scripted sequence).
type fakeLink struct {
	remote Identity

	mu     sync.Mutex
	sent   []sentFrame
	closed bool

	events chan LinkEvent
}

type sentFrame struct {
	kind    byte
	payload []byte
}

func newFakeLink(remote Identity) *fakeLink {
	return &fakeLink{
		remote: remote,
		events: make(chan LinkEvent, 64),
	}
}

func (l *fakeLink) RemoteIdentity() Identity { return l.remote }

func (l *fakeLink) Send(kind byte, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	l.sent = append(l.sent, sentFrame{kind: kind, payload: cp})
	return nil
}

func (l *fakeLink) Events() <-chan LinkEvent { return l.events }

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.events)
	}
	return nil
}

func (l *fakeLink) push(ev LinkEvent) {
	l.events <- ev
}

func (l *fakeLink) sentFrames() []sentFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sentFrame, len(l.sent))
	copy(out, l.sent)
	return out
}
