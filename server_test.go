package qooil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qooil/qooil/internal/netutil"
	"github.com/qooil/qooil/qooilproto"
)

// startTestServer serves a fresh temporary directory over an
// in-process listener. The process working directory is switched to
// the export root for the duration of the test, since a session
// captures its root from the directory the server runs in.
func startTestServer(t *testing.T) (*netutil.PipeListener, string) {
	t.Helper()
	tmp := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { os.Chdir(old) })

	ln := new(netutil.PipeListener)
	srv := &Server{Workers: 2}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return ln, tmp
}

func dialClient(t *testing.T, ln *netutil.PipeListener) *Client {
	t.Helper()
	conn, err := ln.Dial()
	require.NoError(t, err)
	c := NewClient(conn)
	t.Cleanup(func() { c.Close() })
	return c
}

// dialRaw returns a codec pair on a fresh connection, for driving the
// server below the Client abstraction.
func dialRaw(t *testing.T, ln *netutil.PipeListener) (net.Conn, *qooilproto.Encoder, *qooilproto.Decoder) {
	t.Helper()
	conn, err := ln.Dial()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, qooilproto.NewEncoder(conn), qooilproto.NewDecoder(conn)
}

func nextMsg(t *testing.T, dec *qooilproto.Decoder) qooilproto.Msg {
	t.Helper()
	require.True(t, dec.Next(), "decode: %v", dec.Err())
	return dec.Msg()
}

func protoErr(t *testing.T, err error) qooilproto.Error {
	t.Helper()
	var perr qooilproto.Error
	require.ErrorAs(t, err, &perr)
	return perr
}

func TestPing(t *testing.T) {
	ln, _ := startTestServer(t)
	c := dialClient(t, ln)
	require.NoError(t, c.Ping())
	require.NoError(t, c.Ping())
}

func TestCdPwd(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	sub := "testdir/" + uuid.NewString()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, sub), 0755))

	require.NoError(t, c.SetCwd(sub))
	wd, err := c.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/"+sub, wd)

	require.NoError(t, c.SetCwd("../../.."))
	wd, err = c.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/", wd)

	err = c.SetCwd("testdir/non-existing")
	perr := protoErr(t, err)
	assert.Equal(t, qooilproto.ErrNonExisting, perr.Code)

	// A failed Cd leaves the working directory alone.
	wd, err = c.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/", wd)
}

func TestGetFile(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "test-file"), []byte("some data"), 0644))

	var buf bytes.Buffer
	n, err := c.GetFile("test-file", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)
	assert.Equal(t, "some data", buf.String())

	buf.Reset()
	_, err = c.GetFile("/test-file", &buf)
	require.NoError(t, err)
	assert.Equal(t, "some data", buf.String())
}

func TestGetFileErrors(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "adir"), 0755))

	var buf bytes.Buffer
	_, err := c.GetFile("nope", &buf)
	assert.Equal(t, qooilproto.ErrNonExisting, protoErr(t, err).Code)

	_, err = c.GetFile("adir", &buf)
	assert.Equal(t, qooilproto.ErrIsNotFile, protoErr(t, err).Code)

	require.NoError(t, c.Ping(), "session survives protocol errors")
}

func TestPutFile(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	require.NoError(t, c.PutFile("new-file", strings.NewReader("some data"), 9))
	got, err := os.ReadFile(filepath.Join(tmp, "new-file"))
	require.NoError(t, err)
	assert.Equal(t, "some data", string(got))

	// A second upload truncates.
	require.NoError(t, c.PutFile("new-file", strings.NewReader("x"), 1))
	got, err = os.ReadFile(filepath.Join(tmp, "new-file"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestPutFileIntoDir(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "sub"), 0755))

	require.NoError(t, c.PutFile("sub/f", strings.NewReader("hi"), 2))
	got, err := os.ReadFile(filepath.Join(tmp, "sub", "f"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	err = c.PutFile("sub", strings.NewReader(""), 0)
	assert.Equal(t, qooilproto.ErrIsNotFile, protoErr(t, err).Code)
}

func TestListEntries(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	for _, name := range []string{"file1", "file2", "file3"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmp, name), nil, 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "subdir"), 0755))

	require.NoError(t, c.ListEntries("."))
	got := make(map[string]bool)
	var e Entry
	for {
		more, err := c.ReadEntry(&e)
		require.NoError(t, err)
		if !more {
			break
		}
		got[string(e.Name)] = e.IsDir
	}
	assert.Equal(t, map[string]bool{
		"file1":  false,
		"file2":  false,
		"file3":  false,
		"subdir": true,
	}, got)
}

func TestDelete(t *testing.T) {
	ln, tmp := startTestServer(t)
	c := dialClient(t, ln)

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "doomed"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "adir"), 0755))

	require.NoError(t, c.Remove("doomed"))
	_, err := os.Stat(filepath.Join(tmp, "doomed"))
	assert.True(t, os.IsNotExist(err))

	err = c.Remove("doomed")
	assert.Equal(t, qooilproto.ErrNonExisting, protoErr(t, err).Code)

	err = c.Remove("adir")
	assert.Equal(t, qooilproto.ErrIsNotFile, protoErr(t, err).Code)
}

func TestInfo(t *testing.T) {
	ln, _ := startTestServer(t)
	c := dialClient(t, ln)

	info, err := c.Info()
	require.NoError(t, err)
	assert.Equal(t, qooilproto.Info{MaxName: 255, MaxPath: 4096}, info)

	again, err := c.Info()
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestSandboxEscape(t *testing.T) {
	ln, _ := startTestServer(t)
	c := dialClient(t, ln)

	require.NoError(t, c.SetCwd("../../../../.."))
	wd, err := c.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/", wd)

	var buf bytes.Buffer
	_, err = c.GetFile("../../../etc/passwd", &buf)
	assert.Equal(t, qooilproto.ErrNonExisting, protoErr(t, err).Code,
		"the path resolves under the export root, where no etc exists")
}

func TestUnexpectedMessage(t *testing.T) {
	ln, _ := startTestServer(t)
	_, enc, dec := dialRaw(t, ln)

	// A bare Ok is a reply, never a request.
	require.NoError(t, enc.Ok())
	assert.Equal(t, qooilproto.Error{Code: qooilproto.ErrUnexpectedMessage, Arg1: 9}, nextMsg(t, dec))

	require.NoError(t, enc.Ping())
	assert.Equal(t, qooilproto.PingReply{}, nextMsg(t, dec))
}

func TestCorruptTag(t *testing.T) {
	ln, _ := startTestServer(t)
	conn, enc, dec := dialRaw(t, ln)

	_, err := conn.Write([]byte{0xEE, 0xEE})
	require.NoError(t, err)
	assert.Equal(t, qooilproto.Error{Code: qooilproto.ErrCorruptMessageTag, Arg1: 0xEEEE}, nextMsg(t, dec))

	require.NoError(t, enc.Ping())
	assert.Equal(t, qooilproto.PingReply{}, nextMsg(t, dec))
}

func TestOverlongPath(t *testing.T) {
	ln, _ := startTestServer(t)
	_, enc, dec := dialRaw(t, ln)

	const length = qooilproto.DefaultMaxName + 1
	require.NoError(t, enc.Encode(qooilproto.Cd{Length: length}))
	require.NoError(t, enc.Payload(bytes.Repeat([]byte{'x'}, length)))
	assert.Equal(t, qooilproto.Error{Code: qooilproto.ErrInvalidFileName, Arg1: length}, nextMsg(t, dec))

	// The server consumed the whole declared payload, so the stream
	// is still aligned.
	require.NoError(t, enc.Ping())
	assert.Equal(t, qooilproto.PingReply{}, nextMsg(t, dec))
}

func TestWritePhaseTwoUnexpected(t *testing.T) {
	ln, tmp := startTestServer(t)
	_, enc, dec := dialRaw(t, ln)

	require.NoError(t, enc.Write("half-done"))
	assert.Equal(t, qooilproto.Ok{}, nextMsg(t, dec))

	// The second phase must be a File message.
	require.NoError(t, enc.Ping())
	assert.Equal(t, qooilproto.Error{Code: qooilproto.ErrUnexpectedMessage, Arg1: 12}, nextMsg(t, dec))

	// The file was created and left empty; the session goes on.
	fi, err := os.Stat(filepath.Join(tmp, "half-done"))
	require.NoError(t, err)
	assert.Zero(t, fi.Size())

	require.NoError(t, enc.Ping())
	assert.Equal(t, qooilproto.PingReply{}, nextMsg(t, dec))
}

func TestQuit(t *testing.T) {
	ln, _ := startTestServer(t)
	_, enc, dec := dialRaw(t, ln)

	require.NoError(t, enc.Quit())
	assert.Equal(t, qooilproto.QuitReply{}, nextMsg(t, dec))
	assert.False(t, dec.Next(), "the server hangs up after QuitReply")
	assert.NoError(t, dec.Err())
}
