package qooilproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUnknownTag(t *testing.T) {
	// An unknown tag must surface as Corrupt after consuming exactly
	// the two tag bytes, leaving whatever follows intact.
	var buf bytes.Buffer
	buf.Write([]byte{0xEE, 0xEE})
	NewEncoder(&buf).Ping()

	dec := NewDecoder(&buf)
	require.True(t, dec.Next())
	assert.Equal(t, Corrupt{BadTag: 0xEEEE}, dec.Msg())

	require.True(t, dec.Next(), "the stream after the bad tag is untouched")
	assert.Equal(t, Ping{}, dec.Msg())
}

func TestDecodeTruncatedTag(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0x01}))
	assert.False(t, dec.Next())
	assert.ErrorIs(t, dec.Err(), io.ErrUnexpectedEOF)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	// A Cd tag followed by half its length field.
	dec := NewDecoder(bytes.NewReader([]byte{0x06, 0x00, 0x03}))
	assert.False(t, dec.Next())
	assert.ErrorIs(t, dec.Err(), io.ErrUnexpectedEOF)
}

func TestDecodeCleanEOF(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(nil))
	assert.False(t, dec.Next())
	assert.NoError(t, dec.Err())
}

func TestDecodeUnrecognizedErrorCode(t *testing.T) {
	b := puint16(make([]byte, 0, 32), msgError)
	b = puint16(b, 0x1234)
	b = puint32(b, 7, 8)

	dec := NewDecoder(bytes.NewReader(b))
	require.True(t, dec.Next())
	assert.Equal(t, Error{Code: ErrUnrecognized, Arg1: 7, Arg2: 8}, dec.Msg())
}

func TestDecodePayload(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Cd("testdir"))
	require.NoError(t, enc.Ping())

	dec := NewDecoder(&buf)
	require.True(t, dec.Next())
	cd, ok := dec.Msg().(Cd)
	require.True(t, ok)
	path := make([]byte, cd.Length)
	require.NoError(t, dec.ReadFull(path))
	assert.Equal(t, "testdir", string(path))

	require.True(t, dec.Next())
	assert.Equal(t, Ping{}, dec.Msg())
}

func TestDecodeDiscardKeepsAlignment(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Cd("ignored-path"))
	require.NoError(t, enc.Quit())

	dec := NewDecoder(&buf)
	require.True(t, dec.Next())
	cd := dec.Msg().(Cd)
	require.NoError(t, dec.Discard(int(cd.Length)))

	require.True(t, dec.Next())
	assert.Equal(t, Quit{}, dec.Msg())
}

func TestDecodeShortPayload(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Cd{Length: 10}))
	buf.WriteString("abc")

	dec := NewDecoder(&buf)
	require.True(t, dec.Next())
	err := dec.ReadFull(make([]byte, 10))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
