package lib

import (
	"github.com/pkg/errors"
)

// Sentinel errors returned by connection operations. Every retryable
// condition is absorbed inside the owning loop; only these escape, and the
// caller decides whether to give up, redial, or report.
var (
	// ErrInvalidState means the operation is not legal in the connection's
	// current state (e.g. Connect on a used connection, Send before the
	// handshake completed).
	ErrInvalidState = errors.New("operation not legal in current connection state")

	// ErrHandshakeFailed means the handshake attempt budget was exhausted
	// without the expected reply.
	ErrHandshakeFailed = errors.New("handshake failed: attempt budget exhausted")

	// ErrTransmissionFailed means a data segment was retransmitted up to the
	// attempt budget without ever being acknowledged.
	ErrTransmissionFailed = errors.New("transmission failed: attempt budget exhausted")

	// ErrMalformedSegment means a received datagram is too short to contain a
	// segment header. Inside the engine loops such datagrams are silently
	// ignored; the error only surfaces from direct codec use.
	ErrMalformedSegment = errors.New("malformed segment: buffer shorter than header")

	// ErrUnexpectedSegmentType means the listener's very first inbound
	// segment was not a connection request.
	ErrUnexpectedSegmentType = errors.New("unexpected segment type")
)
