package wais

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	sha256simd "github.com/minio/sha256-simd"
)

// TransferState is the client-side record of one in-flight get (spec §3).
// It is created when a file_meta response arrives, mutated only by the
// receive-data callback or the timeout/teardown cleaner, and destroyed
// after finalization or link closure.
//
// Transfers whose ExpectedSize exceeds MaxTransferRAM are streamed: data is
// written straight to a temp file and hashed incrementally instead of
// accumulating in Buffer, per spec §9's requirement to avoid unbounded
// memory for large gets.
type TransferState struct {
	RequestID    string
	Filename     string
	ExpectedSize int64
	ReceivedSize int64
	Buffer       []byte
	Meta         Response
	Finalized    bool

	streaming bool
	tempFile  *os.File
	tempPath  string
	hasher    hash.Hash
}

// FileReceiver consumes file_meta + data frames, buffers, decompresses,
// verifies digest, and commits to disk (spec §4.6).
type FileReceiver struct {
	destDir string
	metrics *Metrics
}

// NewFileReceiver creates a receiver that writes completed files into
// destDir.
func NewFileReceiver(destDir string, metrics *Metrics) *FileReceiver {
	return &FileReceiver{destDir: destDir, metrics: metrics}
}

// OnFileMeta allocates a TransferState for a just-arrived file_meta
// response and installs it on the session, enforcing the single
// in-flight-transfer invariant (P7).
func (r *FileReceiver) OnFileMeta(session *LinkSession, meta Response) (*TransferState, error) {
	t := &TransferState{
		RequestID:    meta.RequestID,
		Filename:     meta.Filename,
		ExpectedSize: meta.Size,
		Meta:         meta,
	}

	if meta.Size > MaxTransferRAM {
		if err := os.MkdirAll(r.destDir, 0755); err != nil {
			return nil, fmt.Errorf("create dest dir: %w", err)
		}
		tmp, err := os.CreateTemp(r.destDir, ".wais-transfer-*.part")
		if err != nil {
			return nil, fmt.Errorf("create streaming temp file: %w", err)
		}
		t.streaming = true
		t.tempFile = tmp
		t.tempPath = tmp.Name()
		t.hasher = sha256simd.New()
	}

	if err := session.BeginTransfer(t); err != nil {
		t.cleanupTemp()
		return nil, err
	}
	return t, nil
}

// OnData appends a data frame to the session's current TransferState and
// finalizes the transfer once ReceivedSize reaches ExpectedSize. Returns
// the terminal Response once finalized, or (Response{}, false) if more
// data is still expected. Streaming transfers write each chunk straight to
// a temp file and feed it to an incremental hasher rather than growing
// Buffer, so memory use stays flat regardless of file size.
func (r *FileReceiver) OnData(session *LinkSession, chunk []byte) (Response, bool) {
	t := session.CurrentTransfer()
	if t == nil {
		return Response{}, false
	}

	if t.streaming {
		if _, err := t.tempFile.Write(chunk); err != nil {
			t.cleanupTemp()
			session.FinalizeTransfer()
			r.metrics.observeTransfer("error")
			return Response{RequestID: t.RequestID, Status: StatusError, Message: fmt.Sprintf("Failed to save file: %v", err)}, true
		}
		t.hasher.Write(chunk)
	} else {
		t.Buffer = append(t.Buffer, chunk...)
	}
	t.ReceivedSize += int64(len(chunk))

	if t.ReceivedSize < t.ExpectedSize {
		return Response{}, false
	}

	resp := r.finalize(t)
	session.FinalizeTransfer()
	if r.metrics != nil {
		r.metrics.BytesReceivedTotal.Add(float64(t.ReceivedSize))
	}
	return resp, true
}

// OnLinkClosed discards a non-finalized transfer without committing
// (spec §4.6: "delete the TransferState without committing").
func (r *FileReceiver) OnLinkClosed(session *LinkSession) {
	if t := session.CurrentTransfer(); t != nil {
		t.cleanupTemp()
	}
	session.FinalizeTransfer()
}

func (r *FileReceiver) finalize(t *TransferState) Response {
	if t.streaming {
		return r.finalizeStreamed(t)
	}

	data := t.Buffer

	if t.Meta.Compressed {
		inflated, err := inflate(data)
		if err != nil {
			r.metrics.observeTransfer("error")
			return Response{RequestID: t.RequestID, Status: StatusError, Message: "Decompression failed"}
		}
		data = inflated
	}

	if t.Meta.SHA256 != "" {
		sum := sha256simd.Sum256(data)
		if hex.EncodeToString(sum[:]) != t.Meta.SHA256 {
			r.metrics.observeTransfer("error")
			return Response{RequestID: t.RequestID, Status: StatusError, Message: "Integrity mismatch"}
		}
	}

	if err := r.commit(t.Filename, data); err != nil {
		r.metrics.observeTransfer("error")
		return Response{RequestID: t.RequestID, Status: StatusError, Message: fmt.Sprintf("Failed to save file: %v", err)}
	}

	r.metrics.observeTransfer("ok")
	return Response{
		RequestID: t.RequestID,
		Status:    StatusOK,
		Message:   fmt.Sprintf("File '%s' received & verified.", t.Filename),
	}
}

// finalizeStreamed verifies a streamed transfer's incremental digest and
// commits its temp file by rename, without ever holding the full payload
// in memory. The sender never compresses a transfer in this size class
// (spec §4.4), so there is no inflate step here.
func (r *FileReceiver) finalizeStreamed(t *TransferState) Response {
	defer t.tempFile.Close()

	if t.Meta.SHA256 != "" {
		sum := t.hasher.Sum(nil)
		if hex.EncodeToString(sum) != t.Meta.SHA256 {
			os.Remove(t.tempPath)
			r.metrics.observeTransfer("error")
			return Response{RequestID: t.RequestID, Status: StatusError, Message: "Integrity mismatch"}
		}
	}

	target := filepath.Join(r.destDir, filepath.Base(t.Filename))
	if err := os.Rename(t.tempPath, target); err != nil {
		os.Remove(t.tempPath)
		r.metrics.observeTransfer("error")
		return Response{RequestID: t.RequestID, Status: StatusError, Message: fmt.Sprintf("Failed to save file: %v", err)}
	}

	r.metrics.observeTransfer("ok")
	return Response{
		RequestID: t.RequestID,
		Status:    StatusOK,
		Message:   fmt.Sprintf("File '%s' received & verified.", t.Filename),
	}
}

// cleanupTemp removes a streaming transfer's temp file on abort (link
// closed, write error) without committing it.
func (t *TransferState) cleanupTemp() {
	if t.tempFile != nil {
		t.tempFile.Close()
		os.Remove(t.tempPath)
	}
}

// commit writes data to filename under destDir atomically via temp file +
// rename (spec §4.6 step 3, RECOMMENDED).
func (r *FileReceiver) commit(filename string, data []byte) error {
	if err := os.MkdirAll(r.destDir, 0755); err != nil {
		return err
	}
	target := filepath.Join(r.destDir, filepath.Base(filename))
	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
