package lib

import (
	"io"
	"log"
	"time"

	rp "github.com/Clouded-Sabre/ringpool/lib"
	"github.com/pkg/errors"
)

// ConnectionConfig gathers every retry budget and timing constant the
// handshake, delivery and teardown loops consume, so the policy can be
// audited and tested in isolation from the state machine.
type ConnectionConfig struct {
	MaxAttempts      int     // handshake and data retransmission budget
	CloseMaxAttempts int     // teardown retransmission budget
	InitialRTT       uint32  // starting RTT estimate, milliseconds
	InitialDevRTT    uint32  // starting RTT deviation, milliseconds (reserved)
	RTTCeiling       uint32  // cap applied when folding in a sample, milliseconds
	MaxTimeout       uint32  // hard cap on any derived wait window, milliseconds
	RTTGain          float64 // EWMA weight of a new sample
	BackoffFactor    float64 // estimate inflation per timeout
	TimeoutFactor    float64 // wait window as a multiple of the estimate
}

func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxAttempts:      10,
		CloseMaxAttempts: 5,
		InitialRTT:       100,
		InitialDevRTT:    10,
		RTTCeiling:       500,
		MaxTimeout:       500,
		RTTGain:          0.125,
		BackoffFactor:    1.2,
		TimeoutFactor:    1.5,
	}
}

type connectionParams struct {
	isInitiator bool
	ep          *endpoint
}

// Connection is one two-party reliable session over a datagram endpoint it
// exclusively owns. It is driven synchronously by a single caller: every
// operation runs to completion before the next one is issued, so there is no
// locking anywhere. Stop-and-wait: at most one data segment is outstanding.
//
// Sequence numbering invariant: sequence number 0 is a handshake artifact and
// never identifies deliverable data on the initiator side; the initiator's
// first data segment carries sequence number 1.
type Connection struct {
	params *connectionParams
	config *ConnectionConfig

	state       int
	localSeq    uint32 // next sequence number assigned to an outgoing data segment
	expectedSeq uint32 // next in-order sequence number expected from the peer
	rtt         *rttEstimator

	recvChunk *rp.Element // pooled buffer backing recvBuf
	sendChunk *rp.Element // pooled buffer backing sendBuf
	recvBuf   []byte      // scratch for inbound datagrams
	sendBuf   []byte      // scratch for the outgoing frame being retransmitted
	released  bool        // endpoint and chunks already returned
}

func newConnection(params *connectionParams, config *ConnectionConfig) (*Connection, error) {
	if Pool == nil {
		return nil, errors.New("payload pool not initialized; create an RdtCore first")
	}

	recvChunk := Pool.GetElement()
	sendChunk := Pool.GetElement()
	if recvChunk == nil || sendChunk == nil {
		if recvChunk != nil {
			Pool.ReturnElement(recvChunk)
		}
		if sendChunk != nil {
			Pool.ReturnElement(sendChunk)
		}
		return nil, errors.New("payload pool exhausted")
	}

	return &Connection{
		params:    params,
		config:    config,
		state:     StateInit,
		rtt:       newRttEstimator(config),
		recvChunk: recvChunk,
		sendChunk: sendChunk,
		recvBuf:   recvChunk.Data.(*Payload).Buffer(),
		sendBuf:   sendChunk.Data.(*Payload).Buffer(),
	}, nil
}

// State reports the current connection state.
func (c *Connection) State() int {
	return c.state
}

// GetEstimatedRTT reports the smoothed round-trip-time estimate in
// milliseconds, for diagnostics.
func (c *Connection) GetEstimatedRTT() uint32 {
	return c.rtt.estimatedRTT
}

// sendControl transmits one header-only segment.
func (c *Connection) sendControl(segType uint8, seq, ack uint32) error {
	var frame [HeaderSize]byte
	seg := Segment{Type: segType, SequenceNumber: seq, AckNumber: ack}
	n, err := seg.Marshal(frame[:])
	if err != nil {
		return err
	}
	return c.params.ep.send(frame[:n])
}

// Connect runs the initiator side of the handshake: send a connection
// request, wait for the listener's echo, confirm with a final acknowledgment.
// Each timed-out round inflates the RTT estimate before the retry. Exhausting
// the attempt budget releases the endpoint and reports ErrHandshakeFailed.
func (c *Connection) Connect() error {
	if c.state != StateInit {
		return errors.Wrap(ErrInvalidState, "connect on used connection")
	}

	request := Segment{Type: SegConn}
	frameLen, err := request.Marshal(c.sendBuf)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if err := c.params.ep.send(c.sendBuf[:frameLen]); err != nil {
			c.release()
			return errors.Wrap(err, "sending connection request")
		}

		deadline := time.Now().Add(c.rtt.timeout())
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			n, _, err := c.params.ep.recv(c.recvBuf, remaining)
			if err != nil {
				if isTimeout(err) {
					break
				}
				c.release()
				return errors.Wrap(err, "waiting for connection echo")
			}

			var reply Segment
			if reply.Unmarshal(c.recvBuf[:n]) != nil {
				continue // runt datagram
			}
			if reply.Type != SegConn {
				continue // not the echo; keep waiting out the window
			}

			c.state = StateEstablished
			c.localSeq = 1
			if err := c.sendControl(SegAck, 0, 0); err != nil {
				c.release()
				return errors.Wrap(err, "confirming connection")
			}
			log.Println("Connection ESTABLISHED")
			return nil
		}
		c.rtt.onTimeout()
	}

	c.release()
	return ErrHandshakeFailed
}

// Accept runs the listener side of the handshake. It blocks without bound for
// the first inbound segment (there is no peer to back off against yet), pins
// the peer address, and requires that segment to be a connection request. It
// then echoes the request until the initiator's acknowledgment arrives. The
// echo rounds reuse the current timeout without inflating the estimate, since
// no round trip has been measured against this peer.
func (c *Connection) Accept() error {
	if c.state != StateInit {
		return errors.Wrap(ErrInvalidState, "accept on used connection")
	}

	n, addr, err := c.params.ep.recv(c.recvBuf, 0)
	if err != nil {
		c.release()
		return errors.Wrap(err, "waiting for connection request")
	}
	c.params.ep.pinPeer(addr)

	var request Segment
	if request.Unmarshal(c.recvBuf[:n]) != nil {
		c.release()
		return errors.Wrap(ErrUnexpectedSegmentType, "first segment shorter than header")
	}
	if request.Type != SegConn {
		c.release()
		return errors.Wrapf(ErrUnexpectedSegmentType, "first segment has type %d, want connection request", request.Type)
	}

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if err := c.sendControl(SegConn, 0, 0); err != nil {
			c.release()
			return errors.Wrap(err, "echoing connection request")
		}

		deadline := time.Now().Add(c.rtt.timeout())
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			n, _, err := c.params.ep.recv(c.recvBuf, remaining)
			if err != nil {
				if isTimeout(err) {
					break
				}
				c.release()
				return errors.Wrap(err, "waiting for connection confirmation")
			}

			var reply Segment
			if reply.Unmarshal(c.recvBuf[:n]) != nil {
				continue
			}
			if reply.Type != SegAck {
				continue // duplicate requests and early data wait until the confirmation
			}

			c.state = StateEstablished
			c.expectedSeq = 1
			log.Println("Connection ESTABLISHED")
			return nil
		}
	}

	c.release()
	return ErrHandshakeFailed
}

// Send transmits one segment's worth of payload, stop-and-wait: the identical
// frame is retransmitted until the matching acknowledgment arrives or the
// attempt budget runs out. A matching acknowledgment feeds the measured round
// trip into the RTT estimator and advances the local sequence number by one.
func (c *Connection) Send(data []byte) (int, error) {
	if c.state != StateEstablished {
		return 0, errors.Wrap(ErrInvalidState, "send: connection not established")
	}
	if len(data) > len(c.sendBuf)-HeaderSize {
		return 0, errors.Errorf("payload length %d exceeds maximum data size %d", len(data), len(c.sendBuf)-HeaderSize)
	}

	seg := Segment{Type: SegData, SequenceNumber: c.localSeq, Payload: data}
	frameLen, err := seg.Marshal(c.sendBuf)
	if err != nil {
		return 0, err
	}

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		start := time.Now()
		if err := c.params.ep.send(c.sendBuf[:frameLen]); err != nil {
			return 0, errors.Wrap(err, "sending data segment")
		}

		deadline := start.Add(c.rtt.timeout())
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			n, _, err := c.params.ep.recv(c.recvBuf, remaining)
			if err != nil {
				if isTimeout(err) {
					break
				}
				return 0, errors.Wrap(err, "waiting for acknowledgment")
			}

			var reply Segment
			if reply.Unmarshal(c.recvBuf[:n]) != nil {
				continue
			}
			switch reply.Type {
			case SegAck:
				if reply.AckNumber != seg.SequenceNumber {
					continue // stale acknowledgment
				}
				c.rtt.onSample(time.Since(start))
				c.localSeq = SeqIncrement(c.localSeq)
				return len(data), nil
			case SegConn:
				// The peer never saw our final handshake acknowledgment and
				// is still echoing its connection reply. Re-acknowledge it
				// and keep waiting for the data acknowledgment.
				if err := c.sendControl(SegAck, 0, 0); err != nil {
					return 0, errors.Wrap(err, "re-confirming connection")
				}
			}
		}
		c.rtt.onTimeout()
	}

	return 0, ErrTransmissionFailed
}

// Receive blocks until one in-order data segment is delivered into buffer and
// returns its payload length, or returns (0, io.EOF) when the peer's close
// request is observed. Duplicates caused by lost acknowledgments are
// re-acknowledged with their own sequence number and never re-delivered.
func (c *Connection) Receive(buffer []byte) (int, error) {
	if c.state != StateEstablished {
		return 0, errors.Wrap(ErrInvalidState, "receive: connection not established")
	}

	for {
		n, _, err := c.params.ep.recv(c.recvBuf, 0)
		if err != nil {
			return 0, errors.Wrap(err, "receiving segment")
		}

		var seg Segment
		if seg.Unmarshal(c.recvBuf[:n]) != nil {
			continue // runt datagram, keep waiting
		}

		switch seg.Type {
		case SegData:
			if seg.SequenceNumber == c.expectedSeq {
				if err := c.sendControl(SegAck, 0, seg.SequenceNumber); err != nil {
					return 0, errors.Wrap(err, "acknowledging data segment")
				}
				copied := copy(buffer, seg.Payload)
				c.expectedSeq = SeqIncrement(c.expectedSeq)
				return copied, nil
			}
			// A retransmitted duplicate means our acknowledgment was lost;
			// re-acknowledge so the sender can advance. Sequence number 0 is
			// excluded: it is a handshake artifact, never deliverable data.
			if seg.SequenceNumber != 0 && isLess(seg.SequenceNumber, c.expectedSeq) {
				if err := c.sendControl(SegAck, 0, seg.SequenceNumber); err != nil {
					return 0, errors.Wrap(err, "re-acknowledging duplicate")
				}
			}
		case SegClose:
			// End of stream. State transition is owned by Close.
			return 0, io.EOF
		}
	}
}

// Close tears the connection down with a close/acknowledgment exchange and
// releases the endpoint on every path. Data stragglers the peer sent before
// seeing our close are acknowledged so its send loop can finish. If the peer
// never confirms within the budget, this side stops retrying and closes
// anyway; a half-open remote cannot hold local resources hostage.
func (c *Connection) Close() error {
	defer c.release()

	if c.state != StateEstablished {
		if c.state == StateClosed {
			return nil
		}
		return errors.Wrap(ErrInvalidState, "close on unestablished connection")
	}

	request := Segment{Type: SegClose}
	frameLen, err := request.Marshal(c.sendBuf)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < c.config.CloseMaxAttempts; attempt++ {
		if err := c.params.ep.send(c.sendBuf[:frameLen]); err != nil {
			return errors.Wrap(err, "sending close segment")
		}

		deadline := time.Now().Add(c.rtt.timeout())
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			n, _, err := c.params.ep.recv(c.recvBuf, remaining)
			if err != nil {
				if isTimeout(err) {
					break
				}
				return errors.Wrap(err, "waiting for close confirmation")
			}

			var reply Segment
			if reply.Unmarshal(c.recvBuf[:n]) != nil {
				continue
			}
			switch reply.Type {
			case SegAck:
				c.state = StateClosed
				log.Println("Connection CLOSED")
				return nil
			case SegClose:
				// Simultaneous close: confirm the peer's request and finish.
				if err := c.sendControl(SegAck, 0, 0); err != nil {
					log.Println("Error confirming simultaneous close:", err)
				}
				c.state = StateClosed
				log.Println("Connection CLOSED")
				return nil
			case SegData:
				// Straggler sent before the peer saw our close; acknowledge
				// it so the peer's send loop can complete, and keep waiting.
				if err := c.sendControl(SegAck, 0, reply.SequenceNumber); err != nil {
					log.Println("Error acknowledging straggler data segment:", err)
				}
			}
		}
		c.rtt.onTimeout()
	}

	c.state = StateClosed
	log.Println("Connection CLOSED (close confirmation never arrived)")
	return nil
}

// release returns the pooled buffers and closes the endpoint, exactly once.
func (c *Connection) release() {
	if c.released {
		return
	}
	c.released = true

	if c.recvChunk != nil {
		Pool.ReturnElement(c.recvChunk)
		c.recvChunk = nil
	}
	if c.sendChunk != nil {
		Pool.ReturnElement(c.sendChunk)
		c.sendChunk = nil
	}
	if err := c.params.ep.close(); err != nil {
		log.Println("Error releasing datagram endpoint:", err)
	}
}
