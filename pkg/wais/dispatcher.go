package wais

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// RequestDispatcher routes inbound requests on one link to the list/get/
// search/peer_list handlers (spec §4.3), grounded on
// internal/daemon/handlers.go's route-table dispatch and
// pkg/p2pnet/service.go's per-stream handler goroutine shape.
type RequestDispatcher struct {
	catalog   *ServerCatalog
	peerCache *PeerCache
	sender    *FileSender
	metrics   *Metrics
	selfHex   string
}

// NewRequestDispatcher creates a dispatcher serving catalog and peerCache,
// using sender to stream get responses. selfHex excludes the node's own
// identity from peer_list snapshots (spec §4.1 rule 2).
func NewRequestDispatcher(catalog *ServerCatalog, peerCache *PeerCache, sender *FileSender, metrics *Metrics, selfHex string) *RequestDispatcher {
	return &RequestDispatcher{
		catalog:   catalog,
		peerCache: peerCache,
		sender:    sender,
		metrics:   metrics,
		selfHex:   selfHex,
	}
}

// Serve drives one link's request stream until the link closes or ctx is
// cancelled. Each get request is handed to a dedicated errgroup worker
// (spec §5: "get handlers run on a dedicated worker... so that slow file
// reads do not block other requests on the same link"); list/search/
// peer_list are handled inline since they never block on disk for
// meaningfully long.
func (d *RequestDispatcher) Serve(ctx context.Context, link Link) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)
	remoteHex := link.RemoteIdentity().Hex()

	for {
		select {
		case <-ctx.Done():
			group.Wait()
			return
		case ev, ok := <-link.Events():
			if !ok {
				cancel()
				group.Wait()
				return
			}
			switch ev.Kind {
			case LinkEventRequest:
				d.handleRequest(groupCtx, group, link, remoteHex, ev.Data)
			case LinkEventClosed:
				cancel()
				group.Wait()
				return
			}
		}
	}
}

func (d *RequestDispatcher) handleRequest(ctx context.Context, group *errgroup.Group, link Link, remoteHex string, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		// RequestID is necessarily empty here: it lives inside the body we
		// just failed to parse. LinkClient correlates a response to its
		// waiter by exact RequestID match (see LinkSession.Deliver), so this
		// response can't reach any particular waiter and the caller's
		// request simply times out rather than surfacing "Invalid JSON
		// request" directly. Spec §4.3 says responses use "the same
		// requestId" as the request they answer; an unparseable request has
		// no requestId to echo, so this is the narrowest case that
		// interpretation doesn't cover. Still emitted, in case a future
		// client inspects raw link traffic rather than only its own waiters.
		d.respond(link, Response{Status: StatusError, Message: "Invalid JSON request"})
		return
	}

	switch req.Action {
	case ActionList:
		d.handleList(link, req.RequestID)
	case ActionSearch:
		d.handleSearch(link, req.RequestID, req.Query)
	case ActionPeerList:
		d.handlePeerList(link, req.RequestID)
	case ActionGet:
		// Dedicated worker per get (spec §4.3/§5): a slow read on this
		// request must never stall list/search/peer_list on the same link.
		group.Go(func() error {
			defer d.recoverInternalError(link, req.RequestID)
			caps := d.peerCache.Get(remoteHex)
			var capList []string
			if caps != nil {
				capList = caps.Capabilities
			}
			d.sender.Send(ctx, link, req.RequestID, req.Filename, capList)
			return nil
		})
	default:
		d.respond(link, Response{RequestID: req.RequestID, Status: StatusError, Message: "Unknown action"})
		d.metrics.observeRequest(req.Action, StatusError)
	}
}

func (d *RequestDispatcher) handleList(link Link, requestID string) {
	defer d.recoverInternalError(link, requestID)
	files, err := d.catalog.List()
	if err != nil {
		d.respond(link, Response{RequestID: requestID, Status: StatusError, Message: "Internal error"})
		d.metrics.observeRequest(ActionList, StatusError)
		return
	}
	d.respond(link, Response{RequestID: requestID, Status: StatusOK, Files: files})
	d.metrics.observeRequest(ActionList, StatusOK)
}

func (d *RequestDispatcher) handleSearch(link Link, requestID, query string) {
	defer d.recoverInternalError(link, requestID)
	results, err := d.catalog.Search(query)
	if err != nil {
		d.respond(link, Response{RequestID: requestID, Status: StatusError, Message: "Internal error"})
		d.metrics.observeRequest(ActionSearch, StatusError)
		return
	}
	d.respond(link, Response{RequestID: requestID, Status: StatusOK, Results: results})
	d.metrics.observeRequest(ActionSearch, StatusOK)
}

func (d *RequestDispatcher) handlePeerList(link Link, requestID string) {
	defer d.recoverInternalError(link, requestID)
	records := d.peerCache.Snapshot(d.selfHex)
	peers := make([]Peer, 0, len(records))
	for _, r := range records {
		peers = append(peers, Peer{
			Name:            r.Name,
			Description:     r.Description,
			Hash:            r.IdentityHex,
			LastSeenUnixSec: r.LastSeenUnixSec,
			Capabilities:    r.Capabilities,
		})
	}
	d.respond(link, Response{RequestID: requestID, Status: StatusOK, Peers: peers})
	d.metrics.observeRequest(ActionPeerList, StatusOK)
}

// recoverInternalError turns any panic raised while handling a request into
// the single {status:"error", message:"Internal error"} response spec §4.3
// requires, without closing the link or propagating the panic.
func (d *RequestDispatcher) recoverInternalError(link Link, requestID string) {
	if r := recover(); r != nil {
		slog.Error("request handler panicked", "request_id", requestID, "panic", r)
		d.respond(link, Response{RequestID: requestID, Status: StatusError, Message: "Internal error"})
	}
}

func (d *RequestDispatcher) respond(link Link, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	if err := link.Send(FrameResponse, data); err != nil {
		slog.Warn("failed to send response", "error", err)
	}
}
