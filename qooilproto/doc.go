// Package qooilproto implements encoding and decoding of Qooil
// protocol messages. A message is a 16-bit little-endian tag followed
// by a fixed-width header whose layout the tag selects. Variable
// payloads announced by a header (paths, file content, directory
// entry names) follow on the same stream and are transferred by the
// caller; there is no outer frame length and no checksum.
//
// The package is purely concerned with the wire format. Session
// semantics live in the qooil package.
package qooilproto
