package packstream

import (
	"encoding/binary"
	"math"

	"github.com/nyxdb/boltwire"
)

// Decoder parses PackStream bytes into boltwire.Value instances for a
// fixed negotiated version. It exposes a cursor-based API: Unpack
// advances an internal offset and returns one Value at a time, so
// struct fields recurse through the same cursor rather than splitting
// a decoded list into "first N items + rest".
type Decoder struct {
	version boltwire.Version
	profile boltwire.VersionProfile
	data    []byte
	pos     int
}

// NewDecoder constructs a Decoder over data for a negotiated version.
func NewDecoder(data []byte, version boltwire.Version) (*Decoder, error) {
	profile, err := boltwire.ProfileFor(version)
	if err != nil {
		return nil, err
	}
	return &Decoder{version: version, profile: profile, data: data}, nil
}

// Pos returns the current cursor offset into the underlying buffer.
func (d *Decoder) Pos() int { return d.pos }

// Remaining reports whether unread bytes remain.
func (d *Decoder) Remaining() bool { return d.pos < len(d.data) }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.data) {
		return boltwire.NewDecodeError("need %d bytes at offset %d, have %d", n, d.pos, len(d.data)-d.pos)
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Unpack decodes and returns the next Value from the cursor.
func (d *Decoder) Unpack() (boltwire.Value, error) {
	marker, err := d.readByte()
	if err != nil {
		return boltwire.Value{}, err
	}

	switch {
	case marker == markerNull:
		return boltwire.Null(), nil
	case marker == markerTrue:
		return boltwire.Bool(true), nil
	case marker == markerFalse:
		return boltwire.Bool(false), nil
	case marker == markerFloat:
		return d.unpackFloat()
	case marker <= tinyIntPosMax:
		return boltwire.Int(int64(int8(marker))), nil
	case marker >= tinyIntNegStart:
		return boltwire.Int(int64(int8(marker))), nil
	case marker == markerInt8:
		return d.unpackInt(1)
	case marker == markerInt16:
		return d.unpackInt(2)
	case marker == markerInt32:
		return d.unpackInt(4)
	case marker == markerInt64:
		return d.unpackInt(8)
	case marker >= tinyStringMin && marker <= tinyStringMax:
		return d.unpackString(int(marker & 0x0F))
	case marker == markerString8:
		return d.unpackSizedString(1)
	case marker == markerString16:
		return d.unpackSizedString(2)
	case marker == markerString32:
		return d.unpackSizedString(4)
	case marker >= tinyListMin && marker <= tinyListMax:
		return d.unpackList(int(marker & 0x0F))
	case marker == markerList8:
		return d.unpackSizedList(1)
	case marker == markerList16:
		return d.unpackSizedList(2)
	case marker == markerList32:
		return d.unpackSizedList(4)
	case marker >= tinyMapMin && marker <= tinyMapMax:
		return d.unpackMap(int(marker & 0x0F))
	case marker == markerMap8:
		return d.unpackSizedMap(1)
	case marker == markerMap16:
		return d.unpackSizedMap(2)
	case marker == markerMap32:
		return d.unpackSizedMap(4)
	case marker >= tinyStructMin && marker <= tinyStructMax:
		return d.unpackStruct(int(marker & 0x0F))
	case marker == markerStruct8:
		return d.unpackSizedStruct(1)
	case marker == markerStruct16:
		return d.unpackSizedStruct(2)
	default:
		return boltwire.Value{}, boltwire.NewDecodeError("unknown marker byte 0x%02X", marker)
	}
}

func (d *Decoder) unpackFloat() (boltwire.Value, error) {
	raw, err := d.readBytes(8)
	if err != nil {
		return boltwire.Value{}, err
	}
	bits := binary.BigEndian.Uint64(raw)
	return boltwire.Float(math.Float64frombits(bits)), nil
}

func (d *Decoder) unpackInt(width int) (boltwire.Value, error) {
	raw, err := d.readBytes(width)
	if err != nil {
		return boltwire.Value{}, err
	}
	switch width {
	case 1:
		return boltwire.Int(int64(int8(raw[0]))), nil
	case 2:
		return boltwire.Int(int64(int16(binary.BigEndian.Uint16(raw)))), nil
	case 4:
		return boltwire.Int(int64(int32(binary.BigEndian.Uint32(raw)))), nil
	default:
		return boltwire.Int(int64(binary.BigEndian.Uint64(raw))), nil
	}
}

func (d *Decoder) readSize(width int) (int, error) {
	raw, err := d.readBytes(width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return int(raw[0]), nil
	case 2:
		return int(binary.BigEndian.Uint16(raw)), nil
	default:
		return int(binary.BigEndian.Uint32(raw)), nil
	}
}

func (d *Decoder) unpackString(n int) (boltwire.Value, error) {
	raw, err := d.readBytes(n)
	if err != nil {
		return boltwire.Value{}, err
	}
	return boltwire.String(string(raw)), nil
}

func (d *Decoder) unpackSizedString(width int) (boltwire.Value, error) {
	n, err := d.readSize(width)
	if err != nil {
		return boltwire.Value{}, err
	}
	return d.unpackString(n)
}

func (d *Decoder) unpackList(n int) (boltwire.Value, error) {
	items := make([]boltwire.Value, 0, n)
	for i := 0; i < n; i++ {
		item, err := d.Unpack()
		if err != nil {
			return boltwire.Value{}, err
		}
		items = append(items, item)
	}
	return boltwire.List(items...), nil
}

func (d *Decoder) unpackSizedList(width int) (boltwire.Value, error) {
	n, err := d.readSize(width)
	if err != nil {
		return boltwire.Value{}, err
	}
	return d.unpackList(n)
}

func (d *Decoder) unpackMap(n int) (boltwire.Value, error) {
	m := boltwire.NewMap()
	for i := 0; i < n; i++ {
		key, err := d.Unpack()
		if err != nil {
			return boltwire.Value{}, err
		}
		keyStr, ok := key.AsString()
		if !ok {
			return boltwire.Value{}, boltwire.NewDecodeError("map key decoded as non-string (kind %d)", key.Kind())
		}
		value, err := d.Unpack()
		if err != nil {
			return boltwire.Value{}, err
		}
		// Duplicate keys take the last occurrence; Map.Set already
		// does this since it overwrites on repeated keys.
		m.Set(keyStr, value)
	}
	return boltwire.MapValue(m), nil
}

func (d *Decoder) unpackSizedMap(width int) (boltwire.Value, error) {
	n, err := d.readSize(width)
	if err != nil {
		return boltwire.Value{}, err
	}
	return d.unpackMap(n)
}

func (d *Decoder) unpackStruct(n int) (boltwire.Value, error) {
	signature, err := d.readByte()
	if err != nil {
		return boltwire.Value{}, err
	}
	fields := make([]boltwire.Value, 0, n)
	for i := 0; i < n; i++ {
		field, err := d.Unpack()
		if err != nil {
			return boltwire.Value{}, err
		}
		fields = append(fields, field)
	}
	return d.assembleStruct(signature, fields)
}

func (d *Decoder) unpackSizedStruct(width int) (boltwire.Value, error) {
	n, err := d.readSize(width)
	if err != nil {
		return boltwire.Value{}, err
	}
	return d.unpackStruct(n)
}

// assembleStruct dispatches on signature to build the domain variant
// a struct represents. An unknown signature is a protocol error: the
// connection must be dropped rather than skipping the struct, since
// there is no way to know its field shape.
func (d *Decoder) assembleStruct(signature byte, fields []boltwire.Value) (boltwire.Value, error) {
	if isTemporalSpatialSignature(signature) && !d.profile.SupportsTemporalSpace {
		return boltwire.Value{}, boltwire.NewProtocolError(
			"temporal/spatial struct signature 0x%02X at version %d", signature, d.version)
	}

	switch signature {
	case SigDate:
		if err := requireFields(fields, 1); err != nil {
			return boltwire.Value{}, err
		}
		days, _ := fields[0].AsInt()
		return boltwire.DateValue(&boltwire.Date{DaysSinceEpoch: days}), nil
	case SigLocalTime:
		if err := requireFields(fields, 1); err != nil {
			return boltwire.Value{}, err
		}
		nanos, _ := fields[0].AsInt()
		return boltwire.LocalTimeValue(&boltwire.LocalTime{NanosSinceMidnight: nanos}), nil
	case SigLocalDateTime:
		if err := requireFields(fields, 2); err != nil {
			return boltwire.Value{}, err
		}
		seconds, _ := fields[0].AsInt()
		nanos, _ := fields[1].AsInt()
		return boltwire.LocalDateTimeValue(&boltwire.LocalDateTime{Seconds: seconds, Nanos: nanos}), nil
	case SigTimeWithZoneOffset:
		if err := requireFields(fields, 2); err != nil {
			return boltwire.Value{}, err
		}
		nanos, _ := fields[0].AsInt()
		offset, _ := fields[1].AsInt()
		return boltwire.TimeWithZoneOffsetValue(&boltwire.TimeWithZoneOffset{
			NanosSinceMidnight: nanos, OffsetSeconds: offset,
		}), nil
	case SigDateTimeWithZoneOffset:
		// Three fields: seconds, nanos, offset_seconds.
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		seconds, _ := fields[0].AsInt()
		nanos, _ := fields[1].AsInt()
		offset, _ := fields[2].AsInt()
		return boltwire.DateTimeWithZoneOffsetValue(&boltwire.DateTimeWithZoneOffset{
			Seconds: seconds, Nanos: nanos, OffsetSeconds: offset,
		}), nil
	case SigDateTimeWithZoneID:
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		seconds, _ := fields[0].AsInt()
		nanos, _ := fields[1].AsInt()
		zoneID, _ := fields[2].AsString()
		return boltwire.DateTimeWithZoneIDValue(&boltwire.DateTimeWithZoneID{
			Seconds: seconds, Nanos: nanos, ZoneID: zoneID,
		}), nil
	case SigDuration:
		if err := requireFields(fields, 4); err != nil {
			return boltwire.Value{}, err
		}
		months, _ := fields[0].AsInt()
		days, _ := fields[1].AsInt()
		seconds, _ := fields[2].AsInt()
		nanos, _ := fields[3].AsInt()
		return boltwire.DurationValue(&boltwire.Duration{
			Months: months, Days: days, Seconds: seconds, Nanos: nanos,
		}), nil
	case SigPoint2D:
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		srid, _ := fields[0].AsInt()
		x, _ := fields[1].AsFloat()
		y, _ := fields[2].AsFloat()
		return boltwire.Point2DValue(&boltwire.Point2D{SRID: srid, X: x, Y: y}), nil
	case SigPoint3D:
		if err := requireFields(fields, 4); err != nil {
			return boltwire.Value{}, err
		}
		srid, _ := fields[0].AsInt()
		x, _ := fields[1].AsFloat()
		y, _ := fields[2].AsFloat()
		z, _ := fields[3].AsFloat()
		return boltwire.Point3DValue(&boltwire.Point3D{SRID: srid, X: x, Y: y, Z: z}), nil
	case SigNode:
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		id, _ := fields[0].AsInt()
		labelVals, _ := fields[1].AsList()
		labels := make([]string, 0, len(labelVals))
		for _, lv := range labelVals {
			s, _ := lv.AsString()
			labels = append(labels, s)
		}
		props, _ := fields[2].AsMap()
		return boltwire.NodeValue(&boltwire.Node{ID: id, Labels: labels, Properties: props}), nil
	case SigRelationship:
		if err := requireFields(fields, 5); err != nil {
			return boltwire.Value{}, err
		}
		id, _ := fields[0].AsInt()
		startID, _ := fields[1].AsInt()
		endID, _ := fields[2].AsInt()
		relType, _ := fields[3].AsString()
		props, _ := fields[4].AsMap()
		return boltwire.RelationshipValue(&boltwire.Relationship{
			ID: id, StartID: startID, EndID: endID, Type: relType, Properties: props,
		}), nil
	case SigUnboundRelationship:
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		id, _ := fields[0].AsInt()
		relType, _ := fields[1].AsString()
		props, _ := fields[2].AsMap()
		return boltwire.UnboundRelationshipValue(&boltwire.UnboundRelationship{
			ID: id, Type: relType, Properties: props,
		}), nil
	case SigPath:
		if err := requireFields(fields, 3); err != nil {
			return boltwire.Value{}, err
		}
		nodeVals, _ := fields[0].AsList()
		nodes := make([]boltwire.Node, 0, len(nodeVals))
		for _, nv := range nodeVals {
			n, _ := nv.AsNode()
			if n != nil {
				nodes = append(nodes, *n)
			}
		}
		relVals, _ := fields[1].AsList()
		rels := make([]boltwire.UnboundRelationship, 0, len(relVals))
		for _, rv := range relVals {
			r, _ := rv.AsUnboundRelationship()
			if r != nil {
				rels = append(rels, *r)
			}
		}
		seqVals, _ := fields[2].AsList()
		seq := make([]int64, 0, len(seqVals))
		for _, sv := range seqVals {
			i, _ := sv.AsInt()
			seq = append(seq, i)
		}
		return boltwire.PathValue(&boltwire.Path{Nodes: nodes, Relationships: rels, Sequence: seq}), nil
	default:
		return boltwire.Value{}, boltwire.NewProtocolError("unknown struct signature 0x%02X", signature)
	}
}

func isTemporalSpatialSignature(signature byte) bool {
	switch signature {
	case SigDate, SigLocalTime, SigLocalDateTime, SigTimeWithZoneOffset,
		SigDateTimeWithZoneOffset, SigDateTimeWithZoneID, SigDuration,
		SigPoint2D, SigPoint3D:
		return true
	default:
		return false
	}
}

func requireFields(fields []boltwire.Value, n int) error {
	if len(fields) != n {
		return boltwire.NewDecodeError("struct expects %d fields, got %d", n, len(fields))
	}
	return nil
}

// DecodeValue is a convenience wrapper decoding a single Value from
// the start of data and returning it alongside the number of bytes
// consumed.
func DecodeValue(data []byte, version boltwire.Version) (boltwire.Value, int, error) {
	dec, err := NewDecoder(data, version)
	if err != nil {
		return boltwire.Value{}, 0, err
	}
	v, err := dec.Unpack()
	if err != nil {
		return boltwire.Value{}, 0, err
	}
	return v, dec.Pos(), nil
}
