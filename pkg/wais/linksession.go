package wais

import "sync"

// LinkStatus is the monotonic lifecycle of a LinkSession (spec §3: Pending
// -> Active -> Closed or Pending -> Closed).
type LinkStatus int

const (
	LinkPending LinkStatus = iota
	LinkActive
	LinkClosed
)

// LinkSession tracks a single link's lifecycle and in-flight correlated
// requests (spec §3's LinkSession type), grounded on
// pkg/p2pnet/peermanager.go's mutex-guarded-map-of-state shape.
type LinkSession struct {
	mu              sync.Mutex
	peerIdentity    Identity
	status          LinkStatus
	pendingRequests map[string]chan Response
	transfer        *TransferState
}

// NewLinkSession creates a session in the Pending state.
func NewLinkSession(peerIdentity Identity) *LinkSession {
	return &LinkSession{
		peerIdentity:    peerIdentity,
		status:          LinkPending,
		pendingRequests: make(map[string]chan Response),
	}
}

// Status returns the current status.
func (s *LinkSession) Status() LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Activate transitions Pending -> Active. No-op if already Active or
// Closed (transitions are monotonic per spec §3).
func (s *LinkSession) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == LinkPending {
		s.status = LinkActive
	}
}

// Close transitions to Closed and fails every pending waiter by delivering
// an error Response with Message "link closed", and discards any non-finalized TransferState without
// committing it (spec §4.6: "On link close mid-transfer: delete the
// TransferState without committing").
func (s *LinkSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == LinkClosed {
		return
	}
	s.status = LinkClosed
	for id, ch := range s.pendingRequests {
		ch <- Response{RequestID: id, Status: StatusError, Message: "link closed"}
		close(ch)
	}
	s.pendingRequests = make(map[string]chan Response)
	s.transfer = nil
}

// Register adds a waiter channel for requestID. Returns ErrLinkNotActive
// if the link is not Active (only Active links accept new requests,
// spec §3).
func (s *LinkSession) Register(requestID string) (chan Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != LinkActive {
		return nil, ErrLinkNotActive
	}
	ch := make(chan Response, 1)
	s.pendingRequests[requestID] = ch
	return ch, nil
}

// Deliver routes a terminal response to its correlated waiter, removing
// it from the pending table. Returns false if no waiter was registered
// for the response's requestID (e.g. it already timed out).
func (s *LinkSession) Deliver(resp Response) bool {
	s.mu.Lock()
	ch, ok := s.pendingRequests[resp.RequestID]
	if ok {
		delete(s.pendingRequests, resp.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	close(ch)
	return true
}

// Cancel removes requestID's waiter without delivering a response, used
// by the client on timeout (spec §4.5: "any in-flight TransferState for
// that requestId is cleaned up").
func (s *LinkSession) Cancel(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.pendingRequests[requestID]; ok {
		delete(s.pendingRequests, requestID)
		close(ch)
	}
}

// BeginTransfer installs t as the link's single in-flight TransferState.
// Returns ErrTransferInFlight if one is already pending, enforcing spec
// §3's invariant ("at most one non-finalized TransferState exists per
// link") and P7.
func (s *LinkSession) BeginTransfer(t *TransferState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transfer != nil && !s.transfer.Finalized {
		return ErrTransferInFlight
	}
	s.transfer = t
	return nil
}

// CurrentTransfer returns the link's non-finalized TransferState, or nil.
func (s *LinkSession) CurrentTransfer() *TransferState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transfer != nil && s.transfer.Finalized {
		return nil
	}
	return s.transfer
}

// FinalizeTransfer marks the current transfer finalized, freeing the slot
// for a subsequent get.
func (s *LinkSession) FinalizeTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transfer != nil {
		s.transfer.Finalized = true
	}
}
