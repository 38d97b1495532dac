package qooil

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qooil/qooil/internal/netutil"
	"github.com/qooil/qooil/qooilproto"
)

// fakeServer runs script against the far end of an in-memory pipe,
// for driving the client with replies a real server would not send.
func fakeServer(t *testing.T, script func(*qooilproto.Decoder, *qooilproto.Encoder, net.Conn)) *Client {
	t.Helper()
	near, far := net.Pipe()
	go func() {
		script(qooilproto.NewDecoder(far), qooilproto.NewEncoder(far), far)
		far.Close()
	}()
	c := NewClient(near)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientServerError(t *testing.T) {
	c := fakeServer(t, func(dec *qooilproto.Decoder, enc *qooilproto.Encoder, _ net.Conn) {
		dec.Next()
		cd := dec.Msg().(qooilproto.Cd)
		dec.Discard(int(cd.Length))
		enc.Error(qooilproto.ErrAccessDenied, 5, 6)
	})
	err := c.SetCwd("secret")
	assert.Equal(t, qooilproto.ErrAccessDenied, protoErr(t, err).Code)
	arg1, arg2 := c.LastErrorArgs()
	assert.EqualValues(t, 5, arg1)
	assert.EqualValues(t, 6, arg2)
	assert.False(t, c.Closed(), "protocol errors are recoverable")
}

func TestClientUnrecognizedErrorCode(t *testing.T) {
	c := fakeServer(t, func(dec *qooilproto.Decoder, enc *qooilproto.Encoder, _ net.Conn) {
		dec.Next()
		enc.Error(qooilproto.ErrorCode(0x1234), 0, 0)
	})
	err := c.Ping()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, c.Closed(), "an unrecognized error code poisons the connection")
}

func TestClientCorruptReply(t *testing.T) {
	c := fakeServer(t, func(dec *qooilproto.Decoder, _ *qooilproto.Encoder, conn net.Conn) {
		dec.Next()
		conn.Write([]byte{0xCD, 0xAB})
	})
	err := c.Ping()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, c.Closed())
}

func TestClientMismatchedReply(t *testing.T) {
	c := fakeServer(t, func(dec *qooilproto.Decoder, enc *qooilproto.Encoder, _ net.Conn) {
		dec.Next()
		enc.QuitReply()
	})
	err := c.Ping()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, c.Closed())
}

func TestClientClosed(t *testing.T) {
	near, _ := net.Pipe()
	c := NewClient(near)
	require.NoError(t, near.Close())
	c.abort()
	assert.ErrorIs(t, c.Ping(), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestReadEntryWithoutList(t *testing.T) {
	ln, _ := startTestServer(t)
	c := dialClient(t, ln)
	var e Entry
	_, err := c.ReadEntry(&e)
	assert.ErrorIs(t, err, ErrNoList)
}

func TestAbandonedListIsDrained(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmp, name), nil, 0644))
	}
	require.NoError(t, c.ListEntries("."))

	// Walk away after a single entry; the next call must drain the
	// rest of the stream before using the connection.
	var e Entry
	_, err := c.ReadEntry(&e)
	require.NoError(t, err)
	require.NoError(t, c.Ping())

	_, err = c.ReadEntry(&e)
	assert.ErrorIs(t, err, ErrNoList)
}

func TestReadEntryBufferTruncation(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "longfilename.txt"), nil, 0644))
	require.NoError(t, c.ListEntries("."))

	e := Entry{Name: make([]byte, 4)}
	more, err := c.ReadEntry(&e)
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, "long", string(e.Name), "the name is cut to the caller's buffer")

	more, err = c.ReadEntry(&e)
	require.NoError(t, err)
	assert.False(t, more)
}

func TestClientQuitHandshake(t *testing.T) {
	ln := new(netutil.PipeListener)
	t.Cleanup(func() { ln.Close() })
	srv := &Server{Workers: 1}
	go srv.Serve(ln)

	conn, err := ln.Dial()
	require.NoError(t, err)
	c := NewClient(conn)
	require.NoError(t, c.Ping())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.NoError(t, c.Close(), "closing twice is fine")
}
