package wais

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// ProtocolVersion is the protocol version advertised in announces and
// negotiated nowhere else; it is informational (caps is what gates
// behavior, per SPEC_FULL.md §9's capability-gated compression).
const ProtocolVersion = "1"

// Action values, the closed set a Request.Action may take.
const (
	ActionList     = "list"
	ActionGet      = "get"
	ActionSearch   = "search"
	ActionPeerList = "peer_list"
)

// Status values, the closed set a Response.Status may take.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusFileMeta = "file_meta"
)

// Capability strings a server may advertise in its announce payload.
const (
	CapZlib   = "zlib"
	CapSHA256 = "sha256"
)

// MaxAnnounceSize is the maximum serialized size, in bytes, of an announce
// app-data payload (spec §4.1, P10).
const MaxAnnounceSize = 128

// MaxTransferRAM is the largest file size FileSender/FileReceiver will
// buffer entirely in memory (spec §4.4 state 3). A var, not a const, so
// tests can shrink it to exercise the streaming code path without
// allocating a 20 MiB fixture.
var MaxTransferRAM int64 = 20 * 1024 * 1024

// MaxPayloadSize is the transport's effective per-frame byte limit. The
// underlying libp2p stream has no hard MTU the way a Reticulum link does,
// but FileSender still chunks writes to this size (spec §4.4 state 6:
// "raw data frames of size floor(MTU/2)") to bound per-write latency and
// give the fairness yield something to act between.
const MaxPayloadSize = 32 * 1024

// Frame kinds multiplexed over one link (spec SPEC_FULL.md §3).
const (
	FrameRequest  byte = 0x01
	FrameResponse byte = 0x02
	FrameData     byte = 0x03
)

// Request is the client-to-server control message. Only the fields
// required for Action are meaningful; extra fields are ignored by the
// dispatcher per spec §3's Request invariant.
type Request struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Filename  string `json:"filename,omitempty"`
	Query     string `json:"query,omitempty"`
}

// Response is the server-to-client control message. Only the fields
// relevant to Status are populated.
type Response struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`

	Files   []string `json:"files,omitempty"`
	Results []string `json:"results,omitempty"`
	Peers   []Peer   `json:"peers,omitempty"`

	// file_meta fields
	Filename     string `json:"filename,omitempty"`
	Size         int64  `json:"size,omitempty"`
	OriginalSize int64  `json:"original_size,omitempty"`
	Compressed   bool   `json:"compressed,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
}

// Peer is the wire representation of a PeerRecord in a peer_list response.
type Peer struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Hash            string   `json:"hash"`
	LastSeenUnixSec int64    `json:"last_seen_unix_sec"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

// AnnouncePayload is the JSON app-data blob carried by an announce
// (spec §4.2/§6). Fields are dropped in the order caps, desc, v when
// truncation to MaxAnnounceSize would otherwise make the blob unparseable.
type AnnouncePayload struct {
	Name string   `json:"name"`
	Desc string   `json:"desc,omitempty"`
	V    string   `json:"v,omitempty"`
	Caps []string `json:"caps,omitempty"`
}

// Encode serializes the payload, applying spec §4.2's truncation policy:
// drop caps, then desc, then v, in that order, until the result fits
// within MaxAnnounceSize. Name is never dropped or shortened; if the
// payload still does not fit once caps, desc and v are gone (a long
// enough name), Encode returns an error.
func (a AnnouncePayload) Encode() ([]byte, error) {
	candidates := []func(*AnnouncePayload){
		func(p *AnnouncePayload) {},
		func(p *AnnouncePayload) { p.Caps = nil },
		func(p *AnnouncePayload) { p.Caps = nil; p.Desc = "" },
		func(p *AnnouncePayload) { p.Caps = nil; p.Desc = ""; p.V = "" },
	}
	for _, trim := range candidates {
		p := a
		trim(&p)
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode announce payload: %w", err)
		}
		if len(data) <= MaxAnnounceSize {
			return data, nil
		}
	}
	return nil, fmt.Errorf("announce payload for %q exceeds %d bytes even fully trimmed", a.Name, MaxAnnounceSize)
}

// WriteFrame writes a single frame: 1 byte kind, 4 byte big-endian length,
// then payload.
func WriteFrame(w io.Writer, kind byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = kind
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a single frame written by WriteFrame.
func ReadFrame(r io.Reader) (kind byte, payload []byte, err error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	kind = header[0]
	length := binary.BigEndian.Uint32(header[1:])
	payload = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return kind, payload, nil
}

// WriteRequest JSON-encodes req and writes it as a FrameRequest.
func WriteRequest(w io.Writer, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return WriteFrame(w, FrameRequest, data)
}

// WriteResponse JSON-encodes resp and writes it as a FrameResponse.
func WriteResponse(w io.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return WriteFrame(w, FrameResponse, data)
}
