package qooilproto

// Limits on variable-length fields. The protocol itself only bounds
// lengths by the width of the header field that carries them; the
// limits here are what a stock server advertises in its Info reply.

// DefaultMaxName is the maximum length, in bytes, of a path sent in a
// Read, List, Cd, Write or Delete request that a stock server will
// accept. Longer paths are rejected with ErrInvalidFileName.
const DefaultMaxName = 255

// DefaultMaxPath is the path length limit, in bytes, a stock server
// advertises in its Info reply. The server does not check the Path
// replies it produces against it.
const DefaultMaxPath = 4096

// DefaultBufSize is the size of the read buffer in a Decoder.
const DefaultBufSize = 8192

// MinBufSize is the minimum size of the read buffer in a Decoder. It
// is large enough to hold the tag and widest fixed header in the
// registry (Info, at 16 bytes).
const MinBufSize = 64

// headerSizeLUT gives the width in bytes of the fixed header that
// follows each tag on the wire. A tag's header is always read in
// full before the message is surfaced; variable payloads are not
// part of the header.
var headerSizeLUT = [...]int{
	msgRead:      2,  // length[2]
	msgFile:      8,  // size[8]
	msgList:      2,  // length[2]
	msgEntry:     2,  // length[1] is_dir[1]
	msgEnd:       0,
	msgCd:        2,  // length[2]
	msgPwd:       0,
	msgPath:      2,  // length[2]
	msgOk:        0,
	msgGetInfo:   0,
	msgInfo:      16, // max_name[8] max_path[8]
	msgPing:      0,
	msgPingReply: 0,
	msgQuit:      0,
	msgQuitReply: 0,
	msgWrite:     2,  // length[2]
	msgDelete:    2,  // length[2]
	msgCorrupt:   2,  // tag[2], local only
	msgError:     10, // code[2] arg1[4] arg2[4]
}
