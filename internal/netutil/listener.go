// Package netutil contains useful types for testing network
// services.
package netutil

import (
	"errors"
	"net"
	"sync"
)

var errClosed = errors.New("listener closed")

// PipeListener is a net.Listener that does not need permission to
// bind to a port or create a socket file. Useful for exercising a
// server and client end-to-end inside one process.
type PipeListener struct {
	once     sync.Once
	incoming chan net.Conn
	shutdown chan struct{}
}

func (l *PipeListener) init() {
	l.once.Do(func() {
		l.incoming = make(chan net.Conn)
		l.shutdown = make(chan struct{})
	})
}

// Accept blocks until a new connection is made with Dial or the
// PipeListener is closed.
func (l *PipeListener) Accept() (net.Conn, error) {
	l.init()
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.shutdown:
		return nil, errClosed
	}
}

// Dial establishes a new in-memory connection with the listener,
// returning the client half.
func (l *PipeListener) Dial() (net.Conn, error) {
	l.init()
	server, client := net.Pipe()
	select {
	case <-l.shutdown:
		server.Close()
		client.Close()
		return nil, errClosed
	case l.incoming <- server:
		return client, nil
	}
}

// Close closes a PipeListener. The returned error is always nil.
func (l *PipeListener) Close() error {
	l.init()
	select {
	case <-l.shutdown:
	default:
		close(l.shutdown)
	}
	return nil
}

type pipeAddr struct{}

func (pipeAddr) String() string  { return "pipe" }
func (pipeAddr) Network() string { return "pipe" }

// Addr returns a placeholder address.
func (l *PipeListener) Addr() net.Addr {
	l.init()
	return pipeAddr{}
}
