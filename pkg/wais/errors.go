package wais

import "errors"

var (
	// ErrLinkNotActive is returned when an operation requires an Active
	// link but the link is Pending or Closed.
	ErrLinkNotActive = errors.New("link is not active")

	// ErrLinkClosed is returned by LinkClient.Request when its waiter is
	// closed without a response. A request attempted on a Closed session
	// gets ErrLinkNotActive instead.
	ErrLinkClosed = errors.New("link is closed")

	// ErrTransferInFlight is returned when a get is requested on a link
	// that already has a non-finalized TransferState.
	ErrTransferInFlight = errors.New("a file transfer is already in flight on this link")

	// ErrTimeout is returned when a request does not receive a terminal
	// response within its configured timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrNotConnected is returned when establish fails to bring a link to
	// Active before the timeout.
	ErrNotConnected = errors.New("not connected")

	// ErrIntegrityMismatch names the case of a received file whose SHA-256
	// digest does not match file_meta. FileReceiver reports that case as an
	// "Integrity mismatch" error Response and does not return this value.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrDecompressionFailed names the case of a compressed get payload that
	// fails to inflate. FileReceiver reports that case as a "Decompression
	// failed" error Response and does not return this value.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrShortRead names the case of a link closing before a transfer's
	// receivedSize reaches its expectedSize. FileReceiver.OnLinkClosed
	// discards such a transfer; nothing returns this value.
	ErrShortRead = errors.New("short read: link closed before transfer completed")

	// ErrUnknownAction names a request whose action is not one of the four
	// recognized values. The dispatcher answers such a request with an
	// "Unknown action" error Response and does not return this value.
	ErrUnknownAction = errors.New("unknown action")
)
