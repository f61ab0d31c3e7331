package lib

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Segment is the unit exchanged over the underlying datagram endpoint.
// Header integer fields always travel in network byte order; the payload, if
// any, immediately follows the fixed-size header. Only SegData segments carry
// a payload. Payload length is implied by the datagram length, so a segment
// must always be read with a single receive call.
type Segment struct {
	Type           uint8
	SequenceNumber uint32 // meaningful for SegConn and SegData
	AckNumber      uint32 // meaningful for SegAck: echoes the acknowledged sequence number
	Payload        []byte
}

// Marshal serializes the segment into buffer and returns the frame length.
// The buffer must hold at least HeaderSize+len(Payload) bytes.
func (s *Segment) Marshal(buffer []byte) (int, error) {
	frameLength := HeaderSize + len(s.Payload)
	if frameLength > len(buffer) {
		return 0, errors.Errorf("buffer size (%d) is too small to hold the segment (%d)", len(buffer), frameLength)
	}

	buffer[0] = s.Type
	binary.BigEndian.PutUint32(buffer[1:5], s.SequenceNumber)
	binary.BigEndian.PutUint32(buffer[5:9], s.AckNumber)
	copy(buffer[HeaderSize:], s.Payload)

	return frameLength, nil
}

// Unmarshal parses one received datagram. The payload field aliases data, so
// the caller must copy it out before reusing the receive buffer. Datagrams
// shorter than the header are rejected with ErrMalformedSegment; anything at
// least header-sized is trusted (the wire format carries no checksum).
func (s *Segment) Unmarshal(data []byte) error {
	if len(data) < HeaderSize {
		return errors.Wrapf(ErrMalformedSegment, "got %d bytes", len(data))
	}

	s.Type = data[0]
	s.SequenceNumber = binary.BigEndian.Uint32(data[1:5])
	s.AckNumber = binary.BigEndian.Uint32(data[5:9])
	if len(data) > HeaderSize {
		s.Payload = data[HeaderSize:]
	} else {
		s.Payload = nil
	}

	return nil
}
