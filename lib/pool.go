package lib

import (
	"fmt"
	"log"

	rp "github.com/Clouded-Sabre/ringpool/lib"
)

// Pool hands out the fixed-size datagram buffers every connection borrows for
// its lifetime (one for receiving, one for framing outgoing segments). It is
// initialized once by NewRdtCore.
var Pool *rp.RingPool

// Payload represents one pooled datagram buffer.
type Payload struct {
	payloadBytes []byte
	length       int
}

// NewPayload creates a pool element. The single parameter is the buffer
// length, which must cover the maximum segment size.
func NewPayload(params ...interface{}) rp.DataInterface {
	if len(params) != 1 {
		log.Println("NewPayload: invalid number of parameters. Should be only one: buffer length")
		return nil
	}

	bufferLength, ok := params[0].(int)
	if !ok {
		log.Println("NewPayload: invalid data type of buffer length. Should be of type int")
		return nil
	}

	return &Payload{
		payloadBytes: make([]byte, bufferLength),
	}
}

// SetContent sets the content of the payload.
func (p *Payload) SetContent(s string) {
	p.payloadBytes = []byte(s)
	p.length = len(s)
}

// Reset resets the content of the payload.
func (p *Payload) Reset() {
	p.length = 0
}

// PrintContent prints the content of the payload.
func (p *Payload) PrintContent() {
	fmt.Println("Content:", string(p.payloadBytes[:p.length]))
}

func (p *Payload) Copy(src []byte) error {
	if len(src) > len(p.payloadBytes) {
		return fmt.Errorf("Payload Copy: source byte slice(%d) is longer than buffer length(%d)", len(src), len(p.payloadBytes))
	}
	copy(p.payloadBytes, src)
	p.length = len(src)
	return nil
}

func (p *Payload) GetSlice() []byte {
	return p.payloadBytes[:p.length]
}

// Buffer exposes the full backing slice so a datagram can be received or
// marshalled directly into the chunk without an extra copy.
func (p *Payload) Buffer() []byte {
	return p.payloadBytes
}
