// Package message implements the request/response message codec (C4):
// it builds the struct-shaped PackStream records the session state
// machine exchanges with the server and destructures the replies it
// gets back.
package message

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/packstream"
)

// Signature bytes for request and response messages.
const (
	SigInit        byte = 0x01 // v1/v2
	SigHello       byte = 0x01 // v3, same byte as INIT, different field shape
	SigAckFailure  byte = 0x0E // v1/v2 only
	SigReset       byte = 0x0F
	SigRun         byte = 0x10
	SigBegin       byte = 0x11 // v3 only
	SigCommit      byte = 0x12 // v3 only
	SigRollback    byte = 0x13 // v3 only
	SigDiscardAll  byte = 0x2F
	SigPullAll     byte = 0x3F
	SigGoodbye     byte = 0x02 // v3 only

	SigSuccess byte = 0x70
	SigRecord  byte = 0x71
	SigIgnored byte = 0x7E
	SigFailure byte = 0x7F
)

// Message is a decoded protocol message: a signature byte plus its
// PackStream struct fields, mirroring the wire shape 1:1 so the
// session layer can dispatch on Signature without a second type
// hierarchy.
type Message struct {
	Signature byte
	Fields    []boltwire.Value
}

// Encode serializes a request Message to PackStream bytes at the
// given negotiated version.
func Encode(msg Message, version boltwire.Version) ([]byte, error) {
	enc, err := packstream.NewEncoder(version)
	if err != nil {
		return nil, err
	}
	s := &boltwire.Struct{Signature: msg.Signature, Fields: msg.Fields}
	if err := enc.Encode(boltwire.StructValue(s)); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// Decode parses a single response Message from a fully reassembled
// chunk payload. The payload must be exactly one tiny-struct value
// (every message has at most 15 fields); trailing bytes are a protocol
// error. Message signatures are not domain struct signatures, so the
// struct header is read here and only the fields go through packstream.
func Decode(payload []byte, version boltwire.Version) (Message, error) {
	if len(payload) < 2 || payload[0] < 0xB0 || payload[0] > 0xBF {
		return Message{}, boltwire.NewProtocolError("message payload is not a tiny struct")
	}
	dec, err := packstream.NewDecoder(payload[2:], version)
	if err != nil {
		return Message{}, err
	}
	n := int(payload[0] & 0x0F)
	fields := make([]boltwire.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := dec.Unpack()
		if err != nil {
			return Message{}, err
		}
		fields = append(fields, v)
	}
	if dec.Remaining() {
		return Message{}, boltwire.NewProtocolError("message payload has %d trailing bytes", len(payload)-2-dec.Pos())
	}
	return Message{Signature: payload[1], Fields: fields}, nil
}

// IsResponse reports whether signature names one of the four response
// message types.
func IsResponse(signature byte) bool {
	switch signature {
	case SigSuccess, SigRecord, SigIgnored, SigFailure:
		return true
	default:
		return false
	}
}
