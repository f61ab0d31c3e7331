package lib

// Segment type constants
const (
	SegConn  uint8 = 0 // connection request / echo
	SegData  uint8 = 1 // payload-carrying segment
	SegAck   uint8 = 2 // acknowledgment
	SegClose uint8 = 3 // teardown request
)

// Wire format constants. The header is type (1 byte) followed by the
// sequence and acknowledgment numbers (4 bytes each, network byte order).
// There is no length field: one datagram carries exactly one segment.
const (
	HeaderSize     = 9
	MaxSegmentSize = 1400
	MaxDataSize    = MaxSegmentSize - HeaderSize
)

// Connection states
const (
	StateInit        = 0 // freshly created, no handshake yet
	StateEstablished = 1 // handshake completed, data may flow
	StateClosed      = 2 // terminal; never transitions back
)
