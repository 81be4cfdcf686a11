package wais

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"hello":"world"}`)
	if err := WriteFrame(&buf, FrameRequest, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	kind, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != FrameRequest {
		t.Errorf("kind = %x, want %x", kind, FrameRequest)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, FrameData, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	kind, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != FrameData {
		t.Errorf("kind = %x, want %x", kind, FrameData)
	}
	if len(got) != 0 {
		t.Errorf("payload = %v, want empty", got)
	}
}

func TestMultipleFramesSequential(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, FrameRequest, []byte("one"))
	WriteFrame(&buf, FrameData, []byte("two"))
	WriteFrame(&buf, FrameData, []byte("three"))

	var got []string
	for i := 0; i < 3; i++ {
		_, payload, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		got = append(got, string(payload))
	}
	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWriteRequestAndResponse(t *testing.T) {
	var buf bytes.Buffer
	req := Request{RequestID: "abc", Action: ActionList}
	if err := WriteRequest(&buf, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	kind, payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != FrameRequest {
		t.Errorf("kind = %x, want FrameRequest", kind)
	}
	var got Request
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != req {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestAnnouncePayloadEncodeFitsWithinLimit(t *testing.T) {
	p := AnnouncePayload{
		Name: "test-server",
		Desc: "a test akita wais server sharing some files",
		V:    ProtocolVersion,
		Caps: []string{CapZlib, CapSHA256},
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) > MaxAnnounceSize {
		t.Errorf("encoded size %d exceeds MaxAnnounceSize %d", len(data), MaxAnnounceSize)
	}
	var decoded AnnouncePayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != p.Name {
		t.Errorf("Name = %q, want %q", decoded.Name, p.Name)
	}
}

func TestAnnouncePayloadEncodeTruncatesLongDescription(t *testing.T) {
	p := AnnouncePayload{
		Name: "test-server",
		Desc: strings.Repeat("x", 200),
		V:    ProtocolVersion,
		Caps: []string{CapZlib, CapSHA256},
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) > MaxAnnounceSize {
		t.Errorf("encoded size %d exceeds MaxAnnounceSize %d", len(data), MaxAnnounceSize)
	}
	var decoded AnnouncePayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal of truncated payload failed: %v", err)
	}
	if decoded.Name != p.Name {
		t.Errorf("Name should survive truncation, got %q", decoded.Name)
	}
	if decoded.Desc != "" {
		t.Error("Desc should have been dropped before Caps/V alone would not fit")
	}
}

func TestAnnouncePayloadEncodeDropsCapsFirst(t *testing.T) {
	p := AnnouncePayload{
		Name: "n",
		Desc: strings.Repeat("d", 100),
		V:    ProtocolVersion,
		Caps: []string{CapZlib, CapSHA256},
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded AnnouncePayload
	json.Unmarshal(data, &decoded)
	if decoded.Caps != nil {
		t.Error("expected caps to be dropped before desc when over budget")
	}
}
