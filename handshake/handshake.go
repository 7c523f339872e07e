// Package handshake implements the 4-byte magic preamble and version
// negotiation exchange (C6) that precedes every session.
package handshake

import (
	"encoding/binary"
	"io"

	"github.com/nyxdb/boltwire"
)

// Perform sends the handshake magic followed by offered, then reads
// the server's 4-byte response and returns the negotiated version. A
// zero response (VersionNone) means the server rejected every offer;
// Perform reports that as a *boltwire.HandshakeError rather than
// returning VersionNone silently.
func Perform(transport io.ReadWriter, offered [4]uint32) (boltwire.Version, error) {
	if err := writeRequest(transport, offered); err != nil {
		return boltwire.VersionNone, err
	}
	return readResponse(transport, offered)
}

func writeRequest(w io.Writer, offered [4]uint32) error {
	buf := make([]byte, 4+4*4)
	copy(buf[:4], boltwire.HandshakeMagic[:])
	for i, v := range offered {
		binary.BigEndian.PutUint32(buf[4+i*4:8+i*4], v)
	}
	if _, err := w.Write(buf); err != nil {
		return boltwire.NewTransportError(err)
	}
	return nil
}

func readResponse(r io.Reader, offered [4]uint32) (boltwire.Version, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return boltwire.VersionNone, boltwire.NewTransportError(err)
	}
	negotiated := binary.BigEndian.Uint32(buf[:])
	if negotiated == 0 {
		return boltwire.VersionNone, boltwire.NewHandshakeError(offered[:])
	}
	version := boltwire.Version(negotiated)
	if _, err := boltwire.ProfileFor(version); err != nil {
		return boltwire.VersionNone, boltwire.NewProtocolError(
			"server negotiated unsupported version %d", negotiated)
	}
	return version, nil
}
