// Package chunk implements the message chunking and dechunking layer
// (C5): every message is framed as one or more length-prefixed chunks
// terminated by a zero-length chunk, independent of PackStream itself.
package chunk

import (
	"encoding/binary"
	"io"

	"github.com/nyxdb/boltwire"
)

// MaxChunkSize is the largest payload a single chunk header can carry
// (a 16-bit length field).
const MaxChunkSize = 0xFFFF

// endMarker is the zero-length chunk that terminates a message.
var endMarker = [2]byte{0x00, 0x00}

// Writer splits a message's bytes into chunk frames and writes them to
// an underlying io.Writer. Each WriteMessage call truncates and reuses
// the same scratch buffer rather than reallocating it.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter constructs a Writer over w with a pre-sized scratch buffer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, MaxChunkSize+2)}
}

// WriteMessage frames payload as one or more chunks followed by the
// end marker and writes the whole frame in a single Write call.
func (cw *Writer) WriteMessage(payload []byte) error {
	cw.buf = cw.buf[:0]
	for len(payload) > 0 {
		n := len(payload)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		cw.buf = appendChunk(cw.buf, payload[:n])
		payload = payload[n:]
	}
	// A zero-length message is just the end marker with no data chunk
	// ahead of it.
	cw.buf = append(cw.buf, endMarker[0], endMarker[1])
	_, err := cw.w.Write(cw.buf)
	if err != nil {
		return boltwire.NewTransportError(err)
	}
	return nil
}

func appendChunk(buf, payload []byte) []byte {
	var header [2]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(payload)))
	buf = append(buf, header[0], header[1])
	buf = append(buf, payload...)
	return buf
}

// Reader reassembles chunk frames from an underlying io.Reader into
// complete message payloads. Its internal buffer is reused across
// ReadMessage calls.
type Reader struct {
	r   io.Reader
	buf []byte
}

// NewReader constructs a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, 0, MaxChunkSize)}
}

// ReadMessage blocks until a complete message (one or more chunks
// followed by the end marker) has been read, and returns its
// reassembled payload. The returned slice is only valid until the next
// call to ReadMessage; callers that need to retain it must copy.
func (cr *Reader) ReadMessage() ([]byte, error) {
	cr.buf = cr.buf[:0]
	for {
		size, err := cr.readChunkHeader()
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return cr.buf, nil
		}
		start := len(cr.buf)
		cr.buf = append(cr.buf, make([]byte, size)...)
		if _, err := io.ReadFull(cr.r, cr.buf[start:]); err != nil {
			return nil, boltwire.NewTransportError(err)
		}
	}
}

func (cr *Reader) readChunkHeader() (int, error) {
	var header [2]byte
	if _, err := io.ReadFull(cr.r, header[:]); err != nil {
		return 0, boltwire.NewTransportError(err)
	}
	return int(binary.BigEndian.Uint16(header[:])), nil
}
