package qooilproto

import (
	"io"
	"math"

	"github.com/qooil/qooil/internal/util"
)

// An Encoder writes Qooil messages to an underlying io.Writer. An
// Encoder performs no buffering; each message is written with a
// single Write call. An Encoder is not safe for concurrent use.
type Encoder struct {
	ew      util.ErrWriter
	scratch [2 + 16]byte // tag plus the widest header in the registry
}

// NewEncoder creates a new Encoder that writes messages to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := new(Encoder)
	enc.ew.W = w
	return enc
}

// Err returns the first error encountered by an Encoder when writing
// to its underlying io.Writer.
func (enc *Encoder) Err() error {
	return enc.ew.Err
}

// Encode writes the tag and packed header of m. Any payload the
// header announces is the caller's to write, with Payload, after
// Encode returns. Corrupt messages are local to a decoder and cannot
// be encoded.
func (enc *Encoder) Encode(m Msg) error {
	b := puint16(enc.scratch[:0], m.Tag())
	switch m := m.(type) {
	case Read:
		b = puint16(b, m.Length)
	case File:
		b = puint64(b, m.Size)
	case List:
		b = puint16(b, m.Length)
	case Entry:
		b = puint8(b, m.Length)
		if m.IsDir {
			b = puint8(b, 1)
		} else {
			b = puint8(b, 0)
		}
	case End, Pwd, Ok, GetInfo, Ping, PingReply, Quit, QuitReply:
	case Cd:
		b = puint16(b, m.Length)
	case Path:
		b = puint16(b, m.Length)
	case Info:
		b = puint64(b, m.MaxName)
		b = puint64(b, m.MaxPath)
	case Write:
		b = puint16(b, m.Length)
	case Delete:
		b = puint16(b, m.Length)
	case Error:
		b = puint16(b, uint16(m.Code))
		b = puint32(b, m.Arg1, m.Arg2)
	case Corrupt:
		return errNotWire
	default:
		return errUnknownEncode
	}
	enc.ew.Write(b)
	return enc.Err()
}

// Payload writes raw payload bytes after a header that announced
// them.
func (enc *Encoder) Payload(p []byte) error {
	enc.ew.Write(p)
	return enc.Err()
}

// Read writes a Read message followed by the path itself.
func (enc *Encoder) Read(path string) error {
	return enc.pathMsg(Read{Length: uint16(len(path))}, path)
}

// File writes a File message. The size bytes of content that follow
// are streamed by the caller through Payload.
func (enc *Encoder) File(size uint64) error {
	return enc.Encode(File{Size: size})
}

// List writes a List message followed by the path itself.
func (enc *Encoder) List(path string) error {
	return enc.pathMsg(List{Length: uint16(len(path))}, path)
}

// Entry writes an Entry message followed by the name itself. Names
// longer than a single length byte can express are rejected.
func (enc *Encoder) Entry(name string, isDir bool) error {
	if len(name) > math.MaxUint8 {
		return errLongFilename
	}
	if err := enc.Encode(Entry{Length: uint8(len(name)), IsDir: isDir}); err != nil {
		return err
	}
	return enc.Payload([]byte(name))
}

// End terminates a stream of Entry messages.
func (enc *Encoder) End() error {
	return enc.Encode(End{})
}

// Cd writes a Cd message followed by the path itself.
func (enc *Encoder) Cd(path string) error {
	return enc.pathMsg(Cd{Length: uint16(len(path))}, path)
}

// Pwd writes a Pwd message.
func (enc *Encoder) Pwd() error {
	return enc.Encode(Pwd{})
}

// Path writes a Path message followed by the path itself.
func (enc *Encoder) Path(path string) error {
	return enc.pathMsg(Path{Length: uint16(len(path))}, path)
}

// Ok writes an Ok message.
func (enc *Encoder) Ok() error {
	return enc.Encode(Ok{})
}

// GetInfo writes a GetInfo message.
func (enc *Encoder) GetInfo() error {
	return enc.Encode(GetInfo{})
}

// Info writes an Info message.
func (enc *Encoder) Info(maxName, maxPath uint64) error {
	return enc.Encode(Info{MaxName: maxName, MaxPath: maxPath})
}

// Ping writes a Ping message.
func (enc *Encoder) Ping() error {
	return enc.Encode(Ping{})
}

// PingReply writes a PingReply message.
func (enc *Encoder) PingReply() error {
	return enc.Encode(PingReply{})
}

// Quit writes a Quit message.
func (enc *Encoder) Quit() error {
	return enc.Encode(Quit{})
}

// QuitReply writes a QuitReply message.
func (enc *Encoder) QuitReply() error {
	return enc.Encode(QuitReply{})
}

// Write writes a Write message followed by the path itself.
func (enc *Encoder) Write(path string) error {
	return enc.pathMsg(Write{Length: uint16(len(path))}, path)
}

// Delete writes a Delete message followed by the path itself.
func (enc *Encoder) Delete(path string) error {
	return enc.pathMsg(Delete{Length: uint16(len(path))}, path)
}

// Error writes an Error message.
func (enc *Encoder) Error(code ErrorCode, arg1, arg2 uint32) error {
	return enc.Encode(Error{Code: code, Arg1: arg1, Arg2: arg2})
}

func (enc *Encoder) pathMsg(m Msg, path string) error {
	if len(path) > math.MaxUint16 {
		return errLongPath
	}
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Payload([]byte(path))
}
