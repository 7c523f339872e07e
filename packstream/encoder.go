package packstream

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/nyxdb/boltwire"
)

// Encoder serializes boltwire.Value instances to PackStream bytes for
// a fixed negotiated version. It is pure in-memory: no I/O, no
// suspension points.
type Encoder struct {
	version boltwire.Version
	profile boltwire.VersionProfile
	buf     bytes.Buffer
}

// NewEncoder constructs an Encoder bound to a negotiated version.
func NewEncoder(version boltwire.Version) (*Encoder, error) {
	profile, err := boltwire.ProfileFor(version)
	if err != nil {
		return nil, err
	}
	return &Encoder{version: version, profile: profile}, nil
}

// Encode appends the PackStream encoding of v to the encoder's buffer.
func (e *Encoder) Encode(v boltwire.Value) error {
	if v.IsTemporalOrSpatial() && !e.profile.SupportsTemporalSpace {
		return boltwire.NewEncodeError("temporal/spatial values are not supported at version %d", e.version)
	}

	switch v.Kind() {
	case boltwire.KindNull:
		e.buf.WriteByte(markerNull)
		return nil
	case boltwire.KindBool:
		b, _ := v.AsBool()
		if b {
			e.buf.WriteByte(markerTrue)
		} else {
			e.buf.WriteByte(markerFalse)
		}
		return nil
	case boltwire.KindInt:
		i, _ := v.AsInt()
		return e.encodeInt(i)
	case boltwire.KindFloat:
		f, _ := v.AsFloat()
		return e.encodeFloat(f)
	case boltwire.KindString:
		s, _ := v.AsString()
		return e.encodeString(s)
	case boltwire.KindList:
		items, _ := v.AsList()
		return e.encodeList(items)
	case boltwire.KindMap:
		m, _ := v.AsMap()
		return e.encodeMap(m)
	case boltwire.KindStruct:
		s, _ := v.AsStruct()
		return e.encodeStruct(s.Signature, s.Fields)
	case boltwire.KindDate:
		d, _ := v.AsDate()
		return e.encodeStruct(SigDate, []boltwire.Value{boltwire.Int(d.DaysSinceEpoch)})
	case boltwire.KindLocalTime:
		t, _ := v.AsLocalTime()
		return e.encodeStruct(SigLocalTime, []boltwire.Value{boltwire.Int(t.NanosSinceMidnight)})
	case boltwire.KindLocalDateTime:
		t, _ := v.AsLocalDateTime()
		return e.encodeStruct(SigLocalDateTime, []boltwire.Value{boltwire.Int(t.Seconds), boltwire.Int(t.Nanos)})
	case boltwire.KindTimeWithZoneOffset:
		t, _ := v.AsTimeWithZoneOffset()
		return e.encodeStruct(SigTimeWithZoneOffset, []boltwire.Value{
			boltwire.Int(t.NanosSinceMidnight), boltwire.Int(t.OffsetSeconds),
		})
	case boltwire.KindDateTimeWithZoneOffset:
		t, _ := v.AsDateTimeWithZoneOffset()
		return e.encodeStruct(SigDateTimeWithZoneOffset, []boltwire.Value{
			boltwire.Int(t.Seconds), boltwire.Int(t.Nanos), boltwire.Int(t.OffsetSeconds),
		})
	case boltwire.KindDateTimeWithZoneID:
		t, _ := v.AsDateTimeWithZoneID()
		return e.encodeStruct(SigDateTimeWithZoneID, []boltwire.Value{
			boltwire.Int(t.Seconds), boltwire.Int(t.Nanos), boltwire.String(t.ZoneID),
		})
	case boltwire.KindDuration:
		d, _ := v.AsDuration()
		return e.encodeStruct(SigDuration, []boltwire.Value{
			boltwire.Int(d.Months), boltwire.Int(d.Days), boltwire.Int(d.Seconds), boltwire.Int(d.Nanos),
		})
	case boltwire.KindPoint2D:
		p, _ := v.AsPoint2D()
		return e.encodeStruct(SigPoint2D, []boltwire.Value{
			boltwire.Int(p.SRID), boltwire.Float(p.X), boltwire.Float(p.Y),
		})
	case boltwire.KindPoint3D:
		p, _ := v.AsPoint3D()
		return e.encodeStruct(SigPoint3D, []boltwire.Value{
			boltwire.Int(p.SRID), boltwire.Float(p.X), boltwire.Float(p.Y), boltwire.Float(p.Z),
		})
	case boltwire.KindNode, boltwire.KindRelationship, boltwire.KindUnboundRelationship, boltwire.KindPath:
		return boltwire.NewEncodeError("graph values are decode-only and cannot be encoded")
	default:
		return boltwire.NewEncodeError("unsupported value kind %d", v.Kind())
	}
}

// Bytes returns the accumulated encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// encodeInt picks the narrowest legal form: the tiny form for
// -16..=127 (the asymmetric range is intentional -- a 4-bit negative
// range and a 7-bit positive range sharing one marker byte tag), else
// the smallest of Int8/16/32/64 that contains the value.
func (e *Encoder) encodeInt(i int64) error {
	if i >= -16 && i <= tinyIntPosMax {
		e.buf.WriteByte(byte(int8(i)))
		return nil
	}
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		e.buf.WriteByte(markerInt8)
		e.buf.WriteByte(byte(int8(i)))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		e.buf.WriteByte(markerInt16)
		binary.Write(&e.buf, binary.BigEndian, int16(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		e.buf.WriteByte(markerInt32)
		binary.Write(&e.buf, binary.BigEndian, int32(i))
	default:
		e.buf.WriteByte(markerInt64)
		binary.Write(&e.buf, binary.BigEndian, i)
	}
	return nil
}

func (e *Encoder) encodeFloat(f float64) error {
	e.buf.WriteByte(markerFloat)
	return binary.Write(&e.buf, binary.BigEndian, math.Float64bits(f))
}

func (e *Encoder) encodeString(s string) error {
	n := len(s)
	switch {
	case n <= 0x0F:
		e.buf.WriteByte(tinyStringMin | byte(n))
	case n <= 0xFF:
		e.buf.WriteByte(markerString8)
		e.buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		e.buf.WriteByte(markerString16)
		binary.Write(&e.buf, binary.BigEndian, uint16(n))
	case uint64(n) <= maxUint32Size:
		e.buf.WriteByte(markerString32)
		binary.Write(&e.buf, binary.BigEndian, uint32(n))
	default:
		return boltwire.NewEncodeError("string of %d bytes exceeds maximum size", n)
	}
	e.buf.WriteString(s)
	return nil
}

func (e *Encoder) encodeList(items []boltwire.Value) error {
	n := len(items)
	if err := e.writeContainerHeader(tinyListMin, tinyListMax, markerList8, markerList16, markerList32, n); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeMap(m *boltwire.Map) error {
	n := 0
	if m != nil {
		n = m.Len()
	}
	if err := e.writeContainerHeader(tinyMapMin, tinyMapMax, markerMap8, markerMap16, markerMap32, n); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	for _, key := range m.Keys() {
		value, _ := m.Get(key)
		if err := e.encodeString(key); err != nil {
			return err
		}
		if err := e.Encode(value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeStruct(signature byte, fields []boltwire.Value) error {
	n := len(fields)
	if n > maxStructFields {
		return boltwire.NewEncodeError("struct field count %d exceeds maximum of %d", n, maxStructFields)
	}
	switch {
	case n <= 0x0F:
		e.buf.WriteByte(tinyStructMin | byte(n))
	case n <= 0xFF:
		e.buf.WriteByte(markerStruct8)
		e.buf.WriteByte(byte(n))
	default:
		e.buf.WriteByte(markerStruct16)
		binary.Write(&e.buf, binary.BigEndian, uint16(n))
	}
	e.buf.WriteByte(signature)
	for _, field := range fields {
		if err := e.Encode(field); err != nil {
			return err
		}
	}
	return nil
}

// writeContainerHeader applies the size-tiebreak rule for lists and
// maps: the narrowest form whose size field can represent the count.
// encodeString applies the same rule with its own header code.
func (e *Encoder) writeContainerHeader(tinyMin, tinyMax, m8, m16, m32 byte, n int) error {
	switch {
	case n <= 0x0F:
		e.buf.WriteByte(tinyMin | byte(n))
	case n <= 0xFF:
		e.buf.WriteByte(m8)
		e.buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		e.buf.WriteByte(m16)
		binary.Write(&e.buf, binary.BigEndian, uint16(n))
	case uint64(n) <= maxUint32Size:
		e.buf.WriteByte(m32)
		binary.Write(&e.buf, binary.BigEndian, uint32(n))
	default:
		return boltwire.NewEncodeError("collection of %d elements exceeds maximum size", n)
	}
	return nil
}

// EncodeValue is a convenience wrapper encoding a single Value at a
// given version and returning its bytes.
func EncodeValue(v boltwire.Value, version boltwire.Version) ([]byte, error) {
	enc, err := NewEncoder(version)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
