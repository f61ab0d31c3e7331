package lib

import (
	"log"
	"time"

	rp "github.com/Clouded-Sabre/ringpool/lib"
	"github.com/pkg/errors"
)

// RdtCoreConfig configures the shared pieces of the transport: the payload
// pool all connections borrow their datagram buffers from, and the segment
// size those buffers must accommodate.
type RdtCoreConfig struct {
	PayloadPoolSize      int  // how many datagram buffer chunks in the pool
	MaxSegmentSize       int  // chunk size; header plus maximum payload
	PoolDebug            bool // ring pool debug setting
	ProcessTimeThreshold int  // pool chunk processing time threshold, milliseconds
}

func DefaultRdtCoreConfig() *RdtCoreConfig {
	return &RdtCoreConfig{
		PayloadPoolSize:      64,
		MaxSegmentSize:       MaxSegmentSize,
		PoolDebug:            false,
		ProcessTimeThreshold: 10,
	}
}

// RdtCore owns the payload pool and constructs connections. One core per
// process is enough; connections created from it are independent sessions.
type RdtCore struct {
	config *RdtCoreConfig
}

func NewRdtCore(config *RdtCoreConfig) (*RdtCore, error) {
	if config.MaxSegmentSize < HeaderSize+1 {
		return nil, errors.Errorf("max segment size %d cannot fit a header and payload", config.MaxSegmentSize)
	}

	rp.Debug = config.PoolDebug
	Pool = rp.NewRingPool("RDT: ", config.PayloadPoolSize, NewPayload, config.MaxSegmentSize)
	Pool.Debug = config.PoolDebug
	Pool.ProcessTimeThreshold = time.Duration(config.ProcessTimeThreshold) * time.Millisecond

	log.Println("RDT core started")

	return &RdtCore{config: config}, nil
}

// DialRdt creates a connection to the remote listener and drives the
// initiator handshake to completion. On handshake failure the underlying
// endpoint has already been released.
func (r *RdtCore) DialRdt(remoteHost string, remotePort int, connConfig *ConnectionConfig) (*Connection, error) {
	ep, err := newInitiatorEndpoint(remoteHost, remotePort)
	if err != nil {
		return nil, err
	}

	conn, err := newConnection(&connectionParams{isInitiator: true, ep: ep}, connConfig)
	if err != nil {
		ep.close()
		return nil, err
	}

	if err := conn.Connect(); err != nil {
		return nil, errors.Wrapf(err, "dialing %s:%d", remoteHost, remotePort)
	}
	return conn, nil
}

// ListenRdt binds the local port, waits for one initiator, and drives the
// listener handshake to completion. One listener serves one session; run it
// again for the next one.
func (r *RdtCore) ListenRdt(localIP string, port int, connConfig *ConnectionConfig) (*Connection, error) {
	ep, err := newListenerEndpoint(localIP, port)
	if err != nil {
		return nil, err
	}

	conn, err := newConnection(&connectionParams{isInitiator: false, ep: ep}, connConfig)
	if err != nil {
		ep.close()
		return nil, err
	}

	if err := conn.Accept(); err != nil {
		return nil, errors.Wrapf(err, "accepting on port %d", port)
	}
	return conn, nil
}

func (r *RdtCore) Close() error {
	log.Println("RDT core closed gracefully.")
	return nil
}
