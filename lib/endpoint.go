package lib

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// endpoint wraps the underlying UDP socket the connection exclusively owns.
// Every blocking receive takes an explicit timeout which is applied as a
// fresh read deadline right before the read; no timeout configuration is ever
// left behind on the socket. A zero timeout blocks indefinitely.
//
// The initiator side uses a connected socket, so the kernel already filters
// traffic by peer. The listener side stays unconnected and pins the peer
// address after the first inbound datagram; datagrams from anyone else are
// dropped inside recv.
type endpoint struct {
	conn      *net.UDPConn
	peer      *net.UDPAddr
	connected bool
}

// newInitiatorEndpoint creates a connected UDP socket to the remote host.
func newInitiatorEndpoint(remoteHost string, remotePort int) (*endpoint, error) {
	remoteAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", remoteHost, remotePort))
	if err != nil {
		return nil, errors.Wrap(err, "resolving remote address")
	}

	conn, err := net.DialUDP("udp4", nil, remoteAddr)
	if err != nil {
		return nil, errors.Wrap(err, "creating datagram endpoint")
	}

	return &endpoint{
		conn:      conn,
		peer:      remoteAddr,
		connected: true,
	}, nil
}

// newListenerEndpoint binds a UDP socket on the local port. Port 0 asks the
// kernel for a free port; LocalPort reports the one actually bound.
func newListenerEndpoint(localIP string, port int) (*endpoint, error) {
	localAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", localIP, port))
	if err != nil {
		return nil, errors.Wrap(err, "resolving local address")
	}

	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		return nil, errors.Wrap(err, "binding datagram endpoint")
	}

	return &endpoint{conn: conn}, nil
}

// pinPeer remembers the remote address of the first handshake datagram. All
// subsequent traffic is validated as coming only from that peer.
func (e *endpoint) pinPeer(addr *net.UDPAddr) {
	e.peer = addr
}

func (e *endpoint) send(frame []byte) error {
	if e.connected {
		_, err := e.conn.Write(frame)
		return err
	}
	if e.peer == nil {
		return errors.New("endpoint has no peer to send to")
	}
	_, err := e.conn.WriteToUDP(frame, e.peer)
	return err
}

// recv reads one datagram into buffer, honoring the given timeout. Datagrams
// from addresses other than the pinned peer are discarded without resetting
// the deadline, so an interfering host cannot stall the caller forever.
func (e *endpoint) recv(buffer []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := e.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, errors.Wrap(err, "setting read deadline")
	}

	for {
		if e.connected {
			n, err := e.conn.Read(buffer)
			if err != nil {
				return 0, nil, err
			}
			return n, e.peer, nil
		}

		n, addr, err := e.conn.ReadFromUDP(buffer)
		if err != nil {
			return 0, nil, err
		}
		if e.peer != nil && addr.String() != e.peer.String() {
			continue // not our peer
		}
		return n, addr, nil
	}
}

// localPort reports the port the socket is bound to.
func (e *endpoint) localPort() int {
	return e.conn.LocalAddr().(*net.UDPAddr).Port
}

func (e *endpoint) close() error {
	return e.conn.Close()
}
