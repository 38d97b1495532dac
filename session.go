package qooil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/qooil/qooil/internal/sys"
	"github.com/qooil/qooil/qooilproto"
)

// ioChunkSize is the buffer size used when streaming file content in
// either direction.
const ioChunkSize = 32 * 1024

// A session owns one connected client: the protocol codec on the
// stream, the export root captured when the connection arrived, and
// the virtual working directory the client moves around with Cd.
//
// Every received message ends in exactly one of: a complete response
// (possibly several frames, as for List), a single Error frame, or
// session termination. Anything else is a bug.
type session struct {
	dec *qooilproto.Decoder
	enc *qooilproto.Encoder

	// root is the sandbox boundary; cwd is always a directory at
	// depth component descents below it. Both handles are owned by
	// the session; cwd is closed when replaced.
	root  *os.File
	cwd   *os.File
	depth int

	maxName uint64
	maxPath uint64

	exiting bool

	// Arguments attached to the next Error frame, cleared after
	// every handled message.
	errArg1 uint32
	errArg2 uint32

	iobuf []byte
}

func newSession(srv *Server, rwc io.ReadWriter) (*session, error) {
	root, err := os.Open(".")
	if err != nil {
		return nil, err
	}
	cwd, err := sys.OpenDir(root, ".")
	if err != nil {
		root.Close()
		return nil, err
	}
	return &session{
		dec:     qooilproto.NewDecoder(rwc),
		enc:     qooilproto.NewEncoder(rwc),
		root:    root,
		cwd:     cwd,
		maxName: srv.maxName(),
		maxPath: srv.maxPath(),
		iobuf:   make([]byte, ioChunkSize),
	}, nil
}

func (s *session) close() {
	s.cwd.Close()
	s.root.Close()
}

// serve runs the receive loop until the client quits or the stream
// fails.
func (s *session) serve() {
	for !s.exiting && s.dec.Next() {
		m := s.dec.Msg()
		logrus.Debugf("qooil: <- %s", m)
		s.handle(m)
		s.errArg1, s.errArg2 = 0, 0
		if err := s.enc.Err(); err != nil {
			logrus.Debugf("qooil: write: %v", err)
			return
		}
	}
	if err := s.dec.Err(); err != nil {
		logrus.Debugf("qooil: read: %v", err)
	}
}

func (s *session) handle(m qooilproto.Msg) {
	switch m := m.(type) {
	case qooilproto.Ping:
		s.enc.PingReply()
	case qooilproto.Quit:
		s.exiting = true
		s.enc.QuitReply()
	case qooilproto.GetInfo:
		s.enc.Info(s.maxName, s.maxPath)
	case qooilproto.Cd:
		s.handleCd(m)
	case qooilproto.Pwd:
		s.handlePwd()
	case qooilproto.List:
		s.handleList(m)
	case qooilproto.Read:
		s.handleRead(m)
	case qooilproto.Write:
		s.handleWrite(m)
	case qooilproto.Delete:
		s.handleDelete(m)
	case qooilproto.Corrupt:
		s.errArg1 = uint32(m.BadTag)
		s.sendError(qooilproto.ErrCorruptMessageTag)
	default:
		s.errArg1 = uint32(m.Tag())
		s.sendError(qooilproto.ErrUnexpectedMessage)
	}
}

func (s *session) sendError(code qooilproto.ErrorCode) {
	s.enc.Error(code, s.errArg1, s.errArg2)
}

// readPath takes a declared path payload off the stream. Overlong
// paths are skipped in full before the error is sent, so the stream
// stays aligned on the next message boundary.
func (s *session) readPath(length uint16) (string, bool) {
	if uint64(length) > s.maxName {
		if err := s.dec.Discard(int(length)); err != nil {
			s.exiting = true
			return "", false
		}
		s.errArg1 = uint32(length)
		s.sendError(qooilproto.ErrInvalidFileName)
		return "", false
	}
	buf := make([]byte, length)
	if err := s.dec.ReadFull(buf); err != nil {
		s.sendError(qooilproto.ErrUnexpectedEndOfConnection)
		s.exiting = true
		return "", false
	}
	return string(buf), true
}

func (s *session) handleCd(m qooilproto.Cd) {
	path, ok := s.readPath(m.Length)
	if !ok {
		return
	}
	dir, depth, code := s.walkDir(path)
	if code != 0 {
		s.sendError(code)
		return
	}
	s.cwd.Close()
	s.cwd = dir
	s.depth = depth
	s.enc.Ok()
}

func (s *session) handlePwd() {
	cwdPath, err := sys.Realpath(s.cwd)
	if err == nil {
		var rootPath string
		rootPath, err = sys.Realpath(s.root)
		if err == nil {
			suffix := cwdPath[len(rootPath):]
			if suffix == "" {
				suffix = "/"
			}
			s.enc.Path(suffix)
			return
		}
	}
	logrus.Errorf("qooil: pwd: %v", err)
	s.exiting = true
}

func (s *session) handleList(m qooilproto.List) {
	path, ok := s.readPath(m.Length)
	if !ok {
		return
	}
	dir, _, code := s.walkDir(path)
	if code != 0 {
		s.sendError(code)
		return
	}
	defer dir.Close()
	entries, err := dir.ReadDir(-1)
	if err != nil {
		s.sendError(qooilproto.ErrCantOpen)
		return
	}
	s.enc.Ok()
	for _, e := range entries {
		s.enc.Entry(e.Name(), e.IsDir())
	}
	s.enc.End()
}

func (s *session) handleRead(m qooilproto.Read) {
	path, ok := s.readPath(m.Length)
	if !ok {
		return
	}
	parent, base, code := s.walkParent(path)
	if code != 0 {
		s.sendError(code)
		return
	}
	defer parent.Close()
	f, err := sys.OpenFile(parent, base, unix.O_RDONLY, 0)
	if err != nil {
		s.sendError(openErrCode(err))
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		s.sendError(qooilproto.ErrCantOpen)
		return
	}
	if !fi.Mode().IsRegular() {
		s.sendError(qooilproto.ErrIsNotFile)
		return
	}
	size := uint64(fi.Size())
	s.enc.File(size)
	// The full announced size must reach the wire. A file that
	// shrinks between stat and read leaves no honest way to finish
	// the frame, so the connection is given up instead.
	var sent uint64
	for sent < size {
		n := uint64(len(s.iobuf))
		if size-sent < n {
			n = size - sent
		}
		if _, err := io.ReadFull(f, s.iobuf[:n]); err != nil {
			logrus.Warnf("qooil: read of %s cut short: %v", path, err)
			s.exiting = true
			return
		}
		if err := s.enc.Payload(s.iobuf[:n]); err != nil {
			s.exiting = true
			return
		}
		sent += n
	}
}

func (s *session) handleWrite(m qooilproto.Write) {
	path, ok := s.readPath(m.Length)
	if !ok {
		return
	}
	parent, base, code := s.walkParent(path)
	if code != 0 {
		s.sendError(code)
		return
	}
	defer parent.Close()
	f, err := sys.OpenFile(parent, base, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0644)
	if err != nil {
		s.sendError(writeErrCode(err))
		return
	}
	defer f.Close()
	s.enc.Ok()

	if !s.dec.Next() {
		s.exiting = true
		return
	}
	next := s.dec.Msg()
	file, ok := next.(qooilproto.File)
	if !ok {
		// The created (empty) file stays; no rollback.
		if c, isCorrupt := next.(qooilproto.Corrupt); isCorrupt {
			s.errArg1 = uint32(c.BadTag)
			s.sendError(qooilproto.ErrCorruptMessageTag)
		} else {
			s.errArg1 = uint32(next.Tag())
			s.sendError(qooilproto.ErrUnexpectedMessage)
		}
		return
	}

	var got uint64
	for got < file.Size {
		n := uint64(len(s.iobuf))
		if file.Size-got < n {
			n = file.Size - got
		}
		if err := s.dec.ReadFull(s.iobuf[:n]); err != nil {
			s.sendError(qooilproto.ErrUnexpectedEndOfConnection)
			s.exiting = true
			return
		}
		if _, err := f.Write(s.iobuf[:n]); err != nil {
			logrus.Errorf("qooil: write to %s: %v", path, err)
			s.exiting = true
			return
		}
		got += n
	}
	s.enc.Ok()
}

func (s *session) handleDelete(m qooilproto.Delete) {
	path, ok := s.readPath(m.Length)
	if !ok {
		return
	}
	parent, base, code := s.walkParent(path)
	if code != 0 {
		s.sendError(code)
		return
	}
	defer parent.Close()
	st, err := sys.Stat(parent, base)
	if err != nil {
		s.sendError(openErrCode(err))
		return
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		s.sendError(qooilproto.ErrIsNotFile)
		return
	}
	if err := sys.Unlink(parent, base); err != nil {
		s.sendError(unlinkErrCode(err))
		return
	}
	s.enc.Ok()
}
