package wais

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LinkClient drives a single client-side link: establishing it, pumping
// its events into the correlated LinkSession, and exposing a blocking
// request/response call (spec §4.5), grounded on pkg/p2pnet/ping.go's
// stream-per-request-with-timeout pattern and internal/daemon/client.go's
// blocking-request-over-channel idiom.
type LinkClient struct {
	transport TransportAdapter
	aspect    string
	timeout   time.Duration
	receiver  *FileReceiver
	metrics   *Metrics
}

// NewLinkClient creates a client that dials aspect on transport, bounding
// link establishment and every request by timeout, and feeding completed
// transfers through receiver.
func NewLinkClient(transport TransportAdapter, aspect string, timeout time.Duration, receiver *FileReceiver, metrics *Metrics) *LinkClient {
	return &LinkClient{
		transport: transport,
		aspect:    aspect,
		timeout:   timeout,
		receiver:  receiver,
		metrics:   metrics,
	}
}

// Establish creates a single-destination link to peer's service aspect and
// activates a LinkSession for it, bounded by c.timeout (spec §4.5:
// "establish... waits... bounded by request_timeout_sec. Returns true only
// if Active"). The returned Link and LinkSession are the caller's to use
// with Request and must eventually be released via Close.
func (c *LinkClient) Establish(ctx context.Context, peer Identity) (*LinkSession, Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	link, err := c.transport.Dial(dialCtx, peer, c.aspect)
	if err != nil {
		return nil, nil, fmt.Errorf("establish link: %w", err)
	}

	session := NewLinkSession(peer)
	session.Activate()
	go c.pump(session, link)

	return session, link, nil
}

// pump forwards every event the transport delivers for link into session:
// file_meta responses start a receive, data frames feed the active
// transfer, terminal responses are routed to their waiter, and link
// closure discards any unfinished transfer and tears the session down
// (spec §4.6: "On link close mid-transfer: delete the TransferState
// without committing").
func (c *LinkClient) pump(session *LinkSession, link Link) {
	for ev := range link.Events() {
		switch ev.Kind {
		case LinkEventResponse:
			var resp Response
			if err := json.Unmarshal(ev.Data, &resp); err != nil {
				slog.Warn("discarding malformed response frame", "error", err)
				continue
			}
			if resp.Status == StatusFileMeta {
				if _, err := c.receiver.OnFileMeta(session, resp); err != nil {
					slog.Warn("rejecting file_meta", "request_id", resp.RequestID, "error", err)
					session.Deliver(Response{RequestID: resp.RequestID, Status: StatusError, Message: err.Error()})
				}
				continue
			}
			session.Deliver(resp)
		case LinkEventData:
			if terminal, done := c.receiver.OnData(session, ev.Data); done {
				session.Deliver(terminal)
			}
		case LinkEventClosed:
			c.receiver.OnLinkClosed(session)
			session.Close()
			return
		}
	}
	c.receiver.OnLinkClosed(session)
	session.Close()
}

// Request serializes req, assigns a request_id if none was given, and
// blocks until a terminal response arrives or c.timeout elapses (spec
// §4.5). On timeout, any in-flight TransferState correlated with this
// request is discarded without committing.
func (c *LinkClient) Request(ctx context.Context, session *LinkSession, link Link, req Request) (Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	waiter, err := session.Register(req.RequestID)
	if err != nil {
		return Response{}, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		session.Cancel(req.RequestID)
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if err := link.Send(FrameRequest, data); err != nil {
		session.Cancel(req.RequestID)
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-waiter:
		if !ok {
			return Response{}, ErrLinkClosed
		}
		c.metrics.observeRequest(req.Action, resp.Status)
		return resp, nil
	case <-timer.C:
		session.Cancel(req.RequestID)
		c.discardTransfer(session, req.RequestID)
		c.metrics.observeRequest(req.Action, StatusError)
		return Response{RequestID: req.RequestID, Status: StatusError, Message: "Timeout"}, ErrTimeout
	case <-ctx.Done():
		session.Cancel(req.RequestID)
		c.discardTransfer(session, req.RequestID)
		return Response{}, ctx.Err()
	}
}

// discardTransfer releases the session's current TransferState if it
// belongs to requestID, satisfying spec §4.5's timeout cleanup rule
// ("buffer released; no partial file is committed").
func (c *LinkClient) discardTransfer(session *LinkSession, requestID string) {
	if t := session.CurrentTransfer(); t != nil && t.RequestID == requestID {
		t.cleanupTemp()
		session.FinalizeTransfer()
	}
}

// Close tears down session and its underlying link.
func (c *LinkClient) Close(session *LinkSession, link Link) error {
	session.Close()
	return link.Close()
}
