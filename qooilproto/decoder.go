package qooilproto

import (
	"bufio"
	"io"
)

// NewDecoder returns a Decoder reading from r with an internal buffer
// of DefaultBufSize bytes.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultBufSize)
}

// NewDecoderSize returns a Decoder with an internal buffer of
// max(MinBufSize, bufsize) bytes.
func NewDecoderSize(r io.Reader, bufsize int) *Decoder {
	if bufsize < MinBufSize {
		bufsize = MinBufSize
	}
	return &Decoder{br: bufio.NewReaderSize(r, bufsize)}
}

// A Decoder reads a stream of Qooil messages from an io.Reader.
// Successive calls to Next fetch the tag and fixed header of the next
// message. Payload bytes announced by a header are not consumed by
// Next; the caller takes them off the same stream with ReadFull, Read
// or Discard before calling Next again. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	br  *bufio.Reader
	msg Msg
	err error
}

// Err returns the first error encountered while reading from the
// underlying stream. A clean end of stream at a message boundary is
// not an error; a stream that ends in the middle of a tag or header
// reports io.ErrUnexpectedEOF.
func (d *Decoder) Err() error {
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

// Msg returns the last message decoded from the stream. It is valid
// if and only if the last call to Next returned true.
func (d *Decoder) Msg() Msg {
	return d.msg
}

// Next fetches the next message from the stream. It returns false
// when the stream is exhausted or broken; Err tells the two apart.
//
// A tag outside the registry yields a Corrupt message. No bytes
// beyond the two tag bytes are consumed for an unknown tag, so the
// caller may decide how much of the remaining stream to trust.
func (d *Decoder) Next() bool {
	d.msg = nil
	if d.err != nil {
		return false
	}
	var hdr [2]byte
	if _, err := io.ReadFull(d.br, hdr[:]); err != nil {
		// A stream that ends exactly on a message boundary is a clean
		// EOF; one byte of a tag is not.
		d.err = err
		return false
	}
	tag := guint16(hdr[:])
	if int(tag) >= len(parseLUT) || parseLUT[tag] == nil {
		d.msg = Corrupt{BadTag: tag}
		return true
	}
	width := headerSizeLUT[tag]
	buf, err := d.br.Peek(width)
	if err != nil {
		d.err = noEOF(err)
		return false
	}
	d.msg = parseLUT[tag](buf)
	d.br.Discard(width)
	return true
}

// Read reads payload bytes from the stream. It allows a Decoder to be
// used as the source of an io.Copy when draining file content.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.br.Read(p)
}

// ReadFull reads exactly len(p) payload bytes. A stream that ends
// early reports io.ErrUnexpectedEOF.
func (d *Decoder) ReadFull(p []byte) error {
	_, err := io.ReadFull(d.br, p)
	return noEOF(err)
}

// Discard skips exactly n payload bytes, keeping the stream aligned
// on the next message boundary.
func (d *Decoder) Discard(n int) error {
	_, err := d.br.Discard(n)
	return noEOF(err)
}

// noEOF converts a bare io.EOF into io.ErrUnexpectedEOF. Inside a
// header or a declared payload, end of stream is always premature.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
