// Package qooil implements the Qooil file-transfer service: a server
// that exports the directory it was started in over a compact binary
// protocol, and a client for driving it.
//
// The server confines every client to the exported directory. Each
// connection gets its own virtual working directory; path resolution
// walks one component at a time from an open directory handle,
// refuses to follow symbolic links, and silently drops ".." segments
// that would climb above the export root.
//
// The wire format is defined in the qooilproto package.
package qooil
