package wais

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/time/rate"
)

// deflateLevel is spec §4.4 state 3's fixed compression level.
const deflateLevel = 6

// chunkYieldLimiter bounds FileSender to roughly one chunk per tick with a
// short wait between frames, realizing spec §4.4 state 6's "yield briefly
// (<=10ms) to share the link fairly" as a token-bucket wait rather than a
// bare time.Sleep.
func newChunkYieldLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(10*time.Millisecond), 1)
}

// FileSender implements the server-side get state machine (spec §4.4).
type FileSender struct {
	catalog *ServerCatalog
	metrics *Metrics
}

// NewFileSender creates a sender serving files out of catalog.
func NewFileSender(catalog *ServerCatalog, metrics *Metrics) *FileSender {
	return &FileSender{catalog: catalog, metrics: metrics}
}

// Send executes the full FileSender state machine for one get request.
// requesterCaps is the requesting peer's last-known advertised capability
// set (from PeerCache), consulted before compressing per SPEC_FULL.md §9's
// capability-gated compression.
func (s *FileSender) Send(ctx context.Context, link Link, requestID, filename string, requesterCaps []string) {
	// State 1: Resolve.
	path, err := s.catalog.Resolve(filename)
	if err != nil {
		s.respondError(link, requestID, "Access denied")
		s.metrics.observeTransfer("error")
		return
	}

	// State 2: Stat.
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.respondError(link, requestID, "File not found")
		s.metrics.observeTransfer("error")
		return
	}

	if info.Size() <= MaxTransferRAM {
		s.sendBuffered(ctx, link, requestID, filename, path, info.Size(), requesterCaps)
	} else {
		s.sendStreamed(ctx, link, requestID, filename, path, info.Size())
	}
}

func (s *FileSender) sendBuffered(ctx context.Context, link Link, requestID, filename, path string, size int64, requesterCaps []string) {
	// State 3: Prepare.
	original, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("file read failed", "path", path, "error", err)
		s.metrics.observeTransfer("error")
		return
	}

	wire := original
	compressed := false
	if containsString(requesterCaps, CapZlib) {
		if deflated, ok := tryDeflate(original); ok {
			wire = deflated
			compressed = true
		}
	}

	// State 4: Digest over the original uncompressed bytes.
	digest := sha256simd.Sum256(original)

	// State 5: Emit metadata.
	meta := Response{
		RequestID:    requestID,
		Status:       StatusFileMeta,
		Filename:     filename,
		Size:         int64(len(wire)),
		OriginalSize: int64(len(original)),
		Compressed:   compressed,
		SHA256:       hex.EncodeToString(digest[:]),
		Message:      "File data follows",
	}
	if err := s.writeResponse(link, meta); err != nil {
		slog.Warn("failed to emit file_meta", "error", err)
		return
	}

	// State 6: Stream.
	s.streamChunks(ctx, link, bytes.NewReader(wire))

	// State 7: Done — no terminal control frame on success.
	s.metrics.observeTransfer("ok")
	s.metrics.observeBytes(int64(len(wire)))
}

func (s *FileSender) sendStreamed(ctx context.Context, link Link, requestID, filename, path string, size int64) {
	// State 4: digest computed by a streaming pre-pass, per spec §4.4: large
	// files (> MaxTransferRAM) forgo compression but still need a real
	// digest in file_meta, so the receiver can verify without trusting an
	// empty SHA256.
	digest, err := hashFile(path)
	if err != nil {
		slog.Warn("file hash failed", "path", path, "error", err)
		s.metrics.observeTransfer("error")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("file open failed", "path", path, "error", err)
		s.metrics.observeTransfer("error")
		return
	}
	defer f.Close()

	meta := Response{
		RequestID:    requestID,
		Status:       StatusFileMeta,
		Filename:     filename,
		Size:         size,
		OriginalSize: size,
		Compressed:   false,
		SHA256:       hex.EncodeToString(digest[:]),
		Message:      "File data follows",
	}
	if err := s.writeResponse(link, meta); err != nil {
		slog.Warn("failed to emit file_meta", "error", err)
		return
	}

	s.streamChunks(ctx, link, f)
	s.metrics.observeTransfer("ok")
	s.metrics.observeBytes(size)
}

// hashFile computes path's SHA-256 digest via a streaming read so
// sendStreamed's memory footprint stays independent of file size.
func hashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	defer f.Close()

	hasher := sha256simd.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return [sha256.Size]byte{}, err
	}
	var sum [sha256.Size]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

func (s *FileSender) streamChunks(ctx context.Context, link Link, r io.Reader) {
	limiter := newChunkYieldLimiter()
	buf := make([]byte, MaxPayloadSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := link.Send(FrameData, buf[:n]); sendErr != nil {
				// State 6: "If the link leaves Active mid-stream, abort
				// silently — the receiver's timeout surfaces the failure."
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			slog.Warn("file read error mid-stream", "error", err)
			return
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return
		}
	}
}

func (s *FileSender) writeResponse(link Link, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return link.Send(FrameResponse, data)
}

func (s *FileSender) respondError(link Link, requestID, message string) {
	_ = s.writeResponse(link, Response{RequestID: requestID, Status: StatusError, Message: message})
}

// tryDeflate compresses data at level 6 and reports ok only if the result
// is strictly smaller (spec §4.4 state 3, P6).
func tryDeflate(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, deflateLevel)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(data) {
		return nil, false
	}
	return buf.Bytes(), true
}
