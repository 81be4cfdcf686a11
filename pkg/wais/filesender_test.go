package wais

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sha256simd "github.com/minio/sha256-simd"
)

func decodeResponses(t *testing.T, frames []sentFrame) []Response {
	t.Helper()
	var out []Response
	for _, f := range frames {
		if f.kind != FrameResponse {
			continue
		}
		var r Response
		if err := json.Unmarshal(f.payload, &r); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func concatData(frames []sentFrame) []byte {
	var out []byte
	for _, f := range frames {
		if f.kind == FrameData {
			out = append(out, f.payload...)
		}
	}
	return out
}

func TestFileSenderAccessDenied_P3(t *testing.T) {
	dir := t.TempDir()
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "../etc/passwd", nil)

	resps := decodeResponses(t, link.sentFrames())
	if len(resps) != 1 || resps[0].Status != StatusError || resps[0].Message != "Access denied" {
		t.Fatalf("unexpected responses: %+v", resps)
	}
	if len(concatData(link.sentFrames())) != 0 {
		t.Error("no data frames should be sent on access denied")
	}
}

func TestFileSenderFileNotFound(t *testing.T) {
	dir := t.TempDir()
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "missing.txt", nil)

	resps := decodeResponses(t, link.sentFrames())
	if len(resps) != 1 || resps[0].Status != StatusError || resps[0].Message != "File not found" {
		t.Fatalf("unexpected responses: %+v", resps)
	}
}

func TestFileSenderRoundTripUncompressed_P4(t *testing.T) {
	dir := t.TempDir()
	content := "hello"
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "a.txt", nil) // no zlib cap -> uncompressed

	resps := decodeResponses(t, link.sentFrames())
	if len(resps) != 1 || resps[0].Status != StatusFileMeta {
		t.Fatalf("expected single file_meta response, got %+v", resps)
	}
	meta := resps[0]
	if meta.Compressed {
		t.Error("expected uncompressed transfer without zlib capability")
	}
	if meta.OriginalSize != int64(len(content)) {
		t.Errorf("OriginalSize = %d, want %d", meta.OriginalSize, len(content))
	}
	wantDigest := sha256simd.Sum256([]byte(content))
	if meta.SHA256 != hex.EncodeToString(wantDigest[:]) {
		t.Errorf("SHA256 = %s, want %s", meta.SHA256, hex.EncodeToString(wantDigest[:]))
	}

	data := concatData(link.sentFrames())
	if string(data) != content {
		t.Errorf("data frames = %q, want %q", data, content)
	}
}

func TestFileSenderCompressionSkippedWhenNotSmaller_P6(t *testing.T) {
	dir := t.TempDir()
	// Random-looking short content that deflate cannot shrink below itself.
	content := "a"
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "a.txt", []string{CapZlib})

	resps := decodeResponses(t, link.sentFrames())
	meta := resps[0]
	if meta.Compressed {
		t.Error("expected compressed=false when deflate does not shrink payload")
	}
	data := concatData(link.sentFrames())
	if string(data) != content {
		t.Errorf("data = %q, want verbatim %q", data, content)
	}
}

func TestFileSenderCompressesWhenClientAdvertisesZlib(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("compress me please ", 200)
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "big.txt", []string{CapZlib})

	resps := decodeResponses(t, link.sentFrames())
	meta := resps[0]
	if !meta.Compressed {
		t.Error("expected compression for a highly repetitive payload with zlib capability advertised")
	}
	if meta.Size >= meta.OriginalSize {
		t.Errorf("compressed size %d should be smaller than original %d", meta.Size, meta.OriginalSize)
	}
}

func TestFileSenderSkipsCompressionWithoutCapability(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("compress me please ", 200)
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "big.txt", nil)

	resps := decodeResponses(t, link.sentFrames())
	meta := resps[0]
	if meta.Compressed {
		t.Error("compression must be skipped when requester never advertised zlib (SPEC_FULL.md §9)")
	}
}

func TestFileSenderNoTerminalFrameAfterData(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	sender.Send(context.Background(), link, "req-1", "a.txt", nil)

	frames := link.sentFrames()
	responseCount := 0
	for _, f := range frames {
		if f.kind == FrameResponse {
			responseCount++
		}
	}
	if responseCount != 1 {
		t.Errorf("expected exactly one response frame (file_meta only), got %d", responseCount)
	}
}

func TestFileSenderStreamsLargeFileUncompressed(t *testing.T) {
	// Shrink MaxTransferRAM for the duration of this test so a modest
	// fixture actually exercises sendStreamed instead of sendBuffered.
	old := MaxTransferRAM
	MaxTransferRAM = MaxPayloadSize * 2
	defer func() { MaxTransferRAM = old }()

	dir := t.TempDir()
	content := strings.Repeat("x", MaxPayloadSize*3+17)
	if err := os.WriteFile(filepath.Join(dir, "big.bin"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewServerCatalog(dir)
	sender := NewFileSender(catalog, nil)
	link := newFakeLink(&fakeIdentity{hex: "client"})

	done := make(chan struct{})
	go func() {
		sender.Send(context.Background(), link, "req-1", "big.bin", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not complete in time")
	}

	resps := decodeResponses(t, link.sentFrames())
	if len(resps) != 1 || resps[0].Status != StatusFileMeta {
		t.Fatalf("expected single file_meta response, got %+v", resps)
	}
	wantDigest := sha256simd.Sum256([]byte(content))
	if resps[0].SHA256 != hex.EncodeToString(wantDigest[:]) {
		t.Errorf("streamed SHA256 = %q, want %q (digest must not be left empty)", resps[0].SHA256, hex.EncodeToString(wantDigest[:]))
	}

	data := concatData(link.sentFrames())
	if string(data) != content {
		t.Errorf("reassembled data length = %d, want %d", len(data), len(content))
	}
}
