package qooilproto

import "fmt"

// Tag values select a header layout and a protocol role. They are
// part of the wire format and must not be renumbered.
const (
	msgRead uint16 = 1 + iota
	msgFile
	msgList
	msgEntry
	msgEnd
	msgCd
	msgPwd
	msgPath
	msgOk
	msgGetInfo
	msgInfo
	msgPing
	msgPingReply
	msgQuit
	msgQuitReply
	msgWrite
	msgDelete
	msgCorrupt
	msgError
	msgMax
)

// A Msg is a single Qooil protocol message: a 16-bit tag followed by
// a fixed-width, tag-determined header. Messages that announce a
// variable-length payload (paths, file content, entry names) do not
// contain it; the payload follows the header on the same stream and
// is read or written by the caller.
type Msg interface {
	// Tag returns the wire tag of the message.
	Tag() uint16
}

// Read asks the server to stream the contents of the file whose path
// follows the header.
type Read struct {
	Length uint16 // path bytes that follow
}

// File announces Size bytes of file content following the header.
// The server sends it in response to Read; the client sends it in
// the second phase of Write.
type File struct {
	Size uint64
}

// List asks the server for the entries of the directory whose path
// follows the header.
type List struct {
	Length uint16 // path bytes that follow
}

// Entry describes one directory child. The name follows the header.
type Entry struct {
	Length uint8 // name bytes that follow
	IsDir  bool
}

// End terminates a stream of Entry messages.
type End struct{}

// Cd asks the server to replace its virtual working directory with
// the path that follows the header.
type Cd struct {
	Length uint16 // path bytes that follow
}

// Pwd asks the server for its virtual working directory.
type Pwd struct{}

// Path carries the virtual working directory in response to Pwd.
type Path struct {
	Length uint16 // path bytes that follow
}

// Ok is the generic success reply.
type Ok struct{}

// GetInfo asks the server for its limits.
type GetInfo struct{}

// Info advertises the server's path length limits. Both fields are
// 64-bit on the wire so the message is portable across ports.
type Info struct {
	MaxName uint64
	MaxPath uint64
}

// Ping requests a PingReply.
type Ping struct{}

// PingReply answers a Ping.
type PingReply struct{}

// Quit asks the server to end the session after replying.
type Quit struct{}

// QuitReply acknowledges a Quit; it is the last message of a session.
type QuitReply struct{}

// Write asks the server to create or truncate the file whose path
// follows the header. The content arrives in a subsequent File
// message.
type Write struct {
	Length uint16 // path bytes that follow
}

// Delete asks the server to unlink the regular file whose path
// follows the header.
type Delete struct {
	Length uint16 // path bytes that follow
}

// Corrupt is produced locally by a Decoder when it meets a tag
// outside the registry. It is never transmitted.
type Corrupt struct {
	BadTag uint16
}

// Error reports a protocol-level failure. Code is one of the
// ErrorCode values; the meaning of Arg1 and Arg2 depends on the code.
// Error implements the error interface so a received frame can be
// returned directly to callers.
type Error struct {
	Code ErrorCode
	Arg1 uint32
	Arg2 uint32
}

func (Read) Tag() uint16      { return msgRead }
func (File) Tag() uint16      { return msgFile }
func (List) Tag() uint16      { return msgList }
func (Entry) Tag() uint16     { return msgEntry }
func (End) Tag() uint16       { return msgEnd }
func (Cd) Tag() uint16        { return msgCd }
func (Pwd) Tag() uint16       { return msgPwd }
func (Path) Tag() uint16      { return msgPath }
func (Ok) Tag() uint16        { return msgOk }
func (GetInfo) Tag() uint16   { return msgGetInfo }
func (Info) Tag() uint16      { return msgInfo }
func (Ping) Tag() uint16      { return msgPing }
func (PingReply) Tag() uint16 { return msgPingReply }
func (Quit) Tag() uint16      { return msgQuit }
func (QuitReply) Tag() uint16 { return msgQuitReply }
func (Write) Tag() uint16     { return msgWrite }
func (Delete) Tag() uint16    { return msgDelete }
func (Corrupt) Tag() uint16   { return msgCorrupt }
func (Error) Tag() uint16     { return msgError }

func (m Read) String() string  { return fmt.Sprintf("Read length=%d", m.Length) }
func (m File) String() string  { return fmt.Sprintf("File size=%d", m.Size) }
func (m List) String() string  { return fmt.Sprintf("List length=%d", m.Length) }
func (m Entry) String() string { return fmt.Sprintf("Entry length=%d is_dir=%t", m.Length, m.IsDir) }
func (End) String() string     { return "End" }
func (m Cd) String() string    { return fmt.Sprintf("Cd length=%d", m.Length) }
func (Pwd) String() string     { return "Pwd" }
func (m Path) String() string  { return fmt.Sprintf("Path length=%d", m.Length) }
func (Ok) String() string      { return "Ok" }
func (GetInfo) String() string { return "GetInfo" }
func (m Info) String() string {
	return fmt.Sprintf("Info max_name=%d max_path=%d", m.MaxName, m.MaxPath)
}
func (Ping) String() string      { return "Ping" }
func (PingReply) String() string { return "PingReply" }
func (Quit) String() string      { return "Quit" }
func (QuitReply) String() string { return "QuitReply" }
func (m Write) String() string   { return fmt.Sprintf("Write length=%d", m.Length) }
func (m Delete) String() string  { return fmt.Sprintf("Delete length=%d", m.Length) }
func (m Corrupt) String() string { return fmt.Sprintf("Corrupt tag=%#x", m.BadTag) }
func (m Error) String() string {
	return fmt.Sprintf("Error code=%s arg1=%d arg2=%d", m.Code, m.Arg1, m.Arg2)
}

func (m Error) Error() string { return "qooil: " + m.Code.String() }

// parseLUT holds one header parser per registry tag. The slice passed
// to a parser is exactly headerSizeLUT[tag] bytes long.
var parseLUT = [msgMax]func([]byte) Msg{
	msgRead:      func(b []byte) Msg { return Read{Length: guint16(b)} },
	msgFile:      func(b []byte) Msg { return File{Size: guint64(b)} },
	msgList:      func(b []byte) Msg { return List{Length: guint16(b)} },
	msgEntry:     func(b []byte) Msg { return Entry{Length: b[0], IsDir: b[1] != 0} },
	msgEnd:       func([]byte) Msg { return End{} },
	msgCd:        func(b []byte) Msg { return Cd{Length: guint16(b)} },
	msgPwd:       func([]byte) Msg { return Pwd{} },
	msgPath:      func(b []byte) Msg { return Path{Length: guint16(b)} },
	msgOk:        func([]byte) Msg { return Ok{} },
	msgGetInfo:   func([]byte) Msg { return GetInfo{} },
	msgInfo:      func(b []byte) Msg { return Info{MaxName: guint64(b), MaxPath: guint64(b[8:])} },
	msgPing:      func([]byte) Msg { return Ping{} },
	msgPingReply: func([]byte) Msg { return PingReply{} },
	msgQuit:      func([]byte) Msg { return Quit{} },
	msgQuitReply: func([]byte) Msg { return QuitReply{} },
	msgWrite:     func(b []byte) Msg { return Write{Length: guint16(b)} },
	msgDelete:    func(b []byte) Msg { return Delete{Length: guint16(b)} },
	msgCorrupt:   func(b []byte) Msg { return Corrupt{BadTag: guint16(b)} },
	msgError: func(b []byte) Msg {
		code := ErrorCode(guint16(b))
		if !code.valid() {
			code = ErrUnrecognized
		}
		return Error{Code: code, Arg1: guint32(b[2:]), Arg2: guint32(b[6:])}
	},
}
