package qooil

import (
	"errors"
	"io"
	"net"

	"github.com/qooil/qooil/qooilproto"
)

var (
	// ErrProtocol is returned when the server breaks the protocol: an
	// unknown tag, an unrecognized error code, or a reply that does
	// not answer the request. The connection is no longer trusted and
	// is closed.
	ErrProtocol = errors.New("qooil: protocol violation")

	// ErrClosed is returned for calls on a closed client.
	ErrClosed = errors.New("qooil: client is closed")

	// ErrNoList is returned by ReadEntry when no List call is in
	// progress.
	ErrNoList = errors.New("qooil: no entry stream in progress")
)

// A Client drives one Qooil session over a stream transport. A Client
// is not safe for concurrent use; the protocol itself admits only one
// outstanding request per connection.
type Client struct {
	rwc io.ReadWriteCloser
	dec *qooilproto.Decoder
	enc *qooilproto.Encoder

	// readingEntries guards the one multi-frame response the client
	// can be in the middle of. Other calls drain it before sending.
	readingEntries bool

	info *qooilproto.Info

	errArg1 uint32
	errArg2 uint32

	namebuf [255]byte
	iobuf   []byte
}

// An Entry is one directory child produced by ReadEntry. When Name
// has capacity it is reused and the entry name is truncated to fit.
// Otherwise ReadEntry allocates a buffer large enough for any entry
// name, so an Entry reused across calls keeps full names.
type Entry struct {
	Name  []byte
	IsDir bool
}

// Dial connects to a Qooil server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient creates a Client on an established transport stream. The
// Client takes ownership of rwc.
func NewClient(rwc io.ReadWriteCloser) *Client {
	return &Client{
		rwc:   rwc,
		dec:   qooilproto.NewDecoder(rwc),
		enc:   qooilproto.NewEncoder(rwc),
		iobuf: make([]byte, ioChunkSize),
	}
}

// Closed reports whether the client has torn down its transport,
// either through Close or after a protocol fault.
func (c *Client) Closed() bool {
	return c.rwc == nil
}

// LastErrorArgs returns the argument words of the most recent Error
// reply.
func (c *Client) LastErrorArgs() (arg1, arg2 uint32) {
	return c.errArg1, c.errArg2
}

func (c *Client) abort() {
	if c.rwc != nil {
		c.rwc.Close()
		c.rwc = nil
	}
	c.readingEntries = false
}

// next fetches one reply frame. Error replies come back as error
// values; corrupt frames and unrecognized error codes kill the
// connection.
func (c *Client) next() (qooilproto.Msg, error) {
	if !c.dec.Next() {
		err := c.dec.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		c.abort()
		return nil, err
	}
	switch m := c.dec.Msg().(type) {
	case qooilproto.Corrupt:
		c.abort()
		return nil, ErrProtocol
	case qooilproto.Error:
		c.errArg1, c.errArg2 = m.Arg1, m.Arg2
		if m.Code == qooilproto.ErrUnrecognized {
			c.abort()
			return nil, ErrProtocol
		}
		return nil, m
	default:
		return m, nil
	}
}

func (c *Client) unexpected() error {
	c.abort()
	return ErrProtocol
}

// ready ensures the connection is open and not in the middle of an
// entry stream, draining leftover entries if the caller abandoned an
// iteration early.
func (c *Client) ready() error {
	if c.rwc == nil {
		return ErrClosed
	}
	var e Entry
	for c.readingEntries {
		if _, err := c.ReadEntry(&e); err != nil {
			return err
		}
	}
	return nil
}

// Ping performs a Ping round trip.
func (c *Client) Ping() error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.enc.Ping(); err != nil {
		c.abort()
		return err
	}
	m, err := c.next()
	if err != nil {
		return err
	}
	if _, ok := m.(qooilproto.PingReply); !ok {
		return c.unexpected()
	}
	return nil
}

// Info returns the server's advertised limits, fetching them on the
// first call and answering from cache thereafter.
func (c *Client) Info() (qooilproto.Info, error) {
	if c.info != nil {
		return *c.info, nil
	}
	if err := c.ready(); err != nil {
		return qooilproto.Info{}, err
	}
	if err := c.enc.GetInfo(); err != nil {
		c.abort()
		return qooilproto.Info{}, err
	}
	m, err := c.next()
	if err != nil {
		return qooilproto.Info{}, err
	}
	info, ok := m.(qooilproto.Info)
	if !ok {
		return qooilproto.Info{}, c.unexpected()
	}
	c.info = &info
	return info, nil
}

// SetCwd changes the server-side virtual working directory.
func (c *Client) SetCwd(path string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.enc.Cd(path); err != nil {
		c.abort()
		return err
	}
	return c.expectOk()
}

// Getwd returns the server-side virtual working directory.
func (c *Client) Getwd() (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if err := c.enc.Pwd(); err != nil {
		c.abort()
		return "", err
	}
	m, err := c.next()
	if err != nil {
		return "", err
	}
	p, ok := m.(qooilproto.Path)
	if !ok {
		return "", c.unexpected()
	}
	buf := make([]byte, p.Length)
	if err := c.dec.ReadFull(buf); err != nil {
		c.abort()
		return "", err
	}
	return string(buf), nil
}

// GetFile downloads the file at path, streaming its content to w. It
// returns the number of content bytes the server announced.
func (c *Client) GetFile(path string, w io.Writer) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if err := c.enc.Read(path); err != nil {
		c.abort()
		return 0, err
	}
	m, err := c.next()
	if err != nil {
		return 0, err
	}
	f, ok := m.(qooilproto.File)
	if !ok {
		return 0, c.unexpected()
	}
	n, err := io.CopyN(w, c.dec, int64(f.Size))
	if err != nil {
		// Either the stream or the local writer broke; the frame
		// cannot be finished, so the connection cannot be reused.
		c.abort()
		return n, err
	}
	return n, nil
}

// PutFile uploads size bytes from r to the file at path, creating or
// truncating it.
func (c *Client) PutFile(path string, r io.Reader, size uint64) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.enc.Write(path); err != nil {
		c.abort()
		return err
	}
	if err := c.expectOk(); err != nil {
		return err
	}
	if err := c.enc.File(size); err != nil {
		c.abort()
		return err
	}
	var sent uint64
	for sent < size {
		n := uint64(len(c.iobuf))
		if size-sent < n {
			n = size - sent
		}
		if _, err := io.ReadFull(r, c.iobuf[:n]); err != nil {
			c.abort()
			return err
		}
		if err := c.enc.Payload(c.iobuf[:n]); err != nil {
			c.abort()
			return err
		}
		sent += n
	}
	return c.expectOk()
}

// Remove deletes the regular file at path.
func (c *Client) Remove(path string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.enc.Delete(path); err != nil {
		c.abort()
		return err
	}
	return c.expectOk()
}

// ListEntries starts an entry stream for the directory at path. The
// caller consumes it with repeated ReadEntry calls; any other call
// first drains whatever remains of the stream.
func (c *Client) ListEntries(path string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.enc.List(path); err != nil {
		c.abort()
		return err
	}
	if err := c.expectOk(); err != nil {
		return err
	}
	c.readingEntries = true
	return nil
}

// ReadEntry consumes one frame of the entry stream started by
// ListEntries. It returns false when the stream is over.
func (c *Client) ReadEntry(e *Entry) (bool, error) {
	if !c.readingEntries {
		return false, ErrNoList
	}
	m, err := c.next()
	if err != nil {
		c.readingEntries = false
		return false, err
	}
	switch m := m.(type) {
	case qooilproto.End:
		c.readingEntries = false
		return false, nil
	case qooilproto.Entry:
		name := c.namebuf[:m.Length]
		if err := c.dec.ReadFull(name); err != nil {
			c.abort()
			return false, err
		}
		if cap(e.Name) == 0 {
			e.Name = make([]byte, 0, len(c.namebuf))
		}
		n := copy(e.Name[:cap(e.Name)], name)
		e.Name = e.Name[:n]
		e.IsDir = m.IsDir
		return true, nil
	}
	c.readingEntries = false
	return false, c.unexpected()
}

// Close performs the Quit handshake and closes the transport. Close
// is a no-op on an already-closed client.
func (c *Client) Close() error {
	if c.rwc == nil {
		return nil
	}
	if err := c.ready(); err == nil {
		if err := c.enc.Quit(); err == nil {
			if m, err := c.next(); err == nil {
				if _, ok := m.(qooilproto.QuitReply); !ok {
					c.unexpected()
				}
			}
		}
	}
	if c.rwc == nil {
		return nil
	}
	err := c.rwc.Close()
	c.rwc = nil
	return err
}

func (c *Client) expectOk() error {
	m, err := c.next()
	if err != nil {
		return err
	}
	if _, ok := m.(qooilproto.Ok); !ok {
		return c.unexpected()
	}
	return nil
}
