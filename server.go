package qooil

import (
	"net"
	"time"

	"aqwari.net/retry"
	"github.com/sirupsen/logrus"

	"github.com/qooil/qooil/internal/pool"
	"github.com/qooil/qooil/internal/util"
	"github.com/qooil/qooil/qooilproto"
)

// DefaultAddr is the address a Server listens on when none is given.
const DefaultAddr = ":7070"

// A Server serves the Qooil protocol, exporting the directory the
// process is started in. The zero value of a Server is usable and
// serves with the defaults set by this package.
type Server struct {
	// Addr is the TCP address to listen on, DefaultAddr if empty.
	Addr string

	// Workers bounds the number of concurrently served connections.
	// Non-positive values fall back to pool.DefaultWorkers.
	Workers int

	// MaxName and MaxPath are the limits advertised in Info replies.
	// Zero values fall back to the qooilproto defaults.
	MaxName uint64
	MaxPath uint64
}

func (srv *Server) maxName() uint64 {
	if srv.MaxName == 0 {
		return qooilproto.DefaultMaxName
	}
	return srv.MaxName
}

func (srv *Server) maxPath() uint64 {
	if srv.MaxPath == 0 {
		return qooilproto.DefaultMaxPath
	}
	return srv.MaxPath
}

// ListenAndServe listens on the TCP address srv.Addr and calls Serve
// to handle incoming connections.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve accepts connections on the listener l, running one session
// per connection on a worker from a fixed-size pool. Sessions share
// nothing but the server configuration, which they take by value.
// Serve returns when Accept fails with a non-temporary error.
func (srv *Server) Serve(l net.Listener) error {
	workers := pool.New(srv.Workers)
	defer workers.Close()

	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if util.IsTempErr(err) {
				try++
				logrus.Warnf("qooil: accept error: %v; retrying in %v", err, backoff(try))
				time.Sleep(backoff(try))
				continue
			}
			return err
		}
		try = 0
		conn := rwc
		workers.Submit(func() {
			defer conn.Close()
			s, err := newSession(srv, conn)
			if err != nil {
				logrus.Errorf("qooil: session setup failed: %v", err)
				return
			}
			defer s.close()
			s.serve()
		})
	}
}

// ListenAndServe listens on addr and serves the Qooil protocol with
// a default server configuration.
func ListenAndServe(addr string) error {
	srv := Server{Addr: addr}
	return srv.ListenAndServe()
}
