package packstream

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nyxdb/boltwire"
)

func roundTrip(t *testing.T, v boltwire.Value, version boltwire.Version) boltwire.Value {
	t.Helper()
	encoded, err := EncodeValue(v, version)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, n, err := DecodeValue(encoded, version)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("decode consumed %d of %d bytes", n, len(encoded))
	}
	return decoded
}

func TestIntegerSmallestForm(t *testing.T) {
	cases := []struct {
		value int64
		want  []byte
	}{
		{127, []byte{0x7F}},
		{128, []byte{0xC9, 0x00, 0x80}},
		{-17, []byte{0xC8, 0xEF}},
		{-16, []byte{0xF0}},
		{-129, []byte{0xC9, 0xFF, 0x7F}},
		{32767, []byte{0xC9, 0x7F, 0xFF}},
		{32768, []byte{0xCA, 0x00, 0x00, 0x80, 0x00}},
		{2147483647, []byte{0xCA, 0x7F, 0xFF, 0xFF, 0xFF}},
		{9223372036854775807, []byte{0xCB, 0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		got, err := EncodeValue(boltwire.Int(c.value), boltwire.Version3)
		if err != nil {
			t.Fatalf("encode(%d): %v", c.value, err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("encode(%d) = % X, want % X", c.value, got, c.want)
		}
		decoded, _, err := DecodeValue(got, boltwire.Version3)
		if err != nil {
			t.Fatalf("decode(%d): %v", c.value, err)
		}
		i, ok := decoded.AsInt()
		if !ok || i != c.value {
			t.Errorf("round trip %d got %v", c.value, decoded)
		}
	}
}

func TestStringBoundaries(t *testing.T) {
	lengths := []int{0, 15, 16, 255, 256, 65535, 65536}
	for _, n := range lengths {
		s := strings.Repeat("a", n)
		decoded := roundTrip(t, boltwire.String(s), boltwire.Version3)
		got, ok := decoded.AsString()
		if !ok || got != s {
			t.Fatalf("string round trip failed at length %d", n)
		}
	}
}

func TestListAndMapBoundaries(t *testing.T) {
	for _, n := range []int{0, 15, 16, 255, 256} {
		items := make([]boltwire.Value, n)
		for i := range items {
			items[i] = boltwire.Int(int64(i))
		}
		decoded := roundTrip(t, boltwire.List(items...), boltwire.Version3)
		got, ok := decoded.AsList()
		if !ok || len(got) != n {
			t.Fatalf("list round trip failed at length %d", n)
		}

		m := boltwire.NewMap()
		for i := 0; i < n; i++ {
			m.Set(strings.Repeat("k", 1)+string(rune('a'+i%26))+string(rune(i)), boltwire.Int(int64(i)))
		}
		decodedMap := roundTrip(t, boltwire.MapValue(m), boltwire.Version3)
		gotMap, ok := decodedMap.AsMap()
		if !ok || gotMap.Len() != n {
			t.Fatalf("map round trip failed at length %d: got %d want %d", n, gotMap.Len(), n)
		}
	}
}

func TestMapDuplicateKeyTakesLastOccurrence(t *testing.T) {
	enc, err := NewEncoder(boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	// Hand-build a tiny map with a duplicate key: {"a": 1, "a": 2}.
	enc.buf.WriteByte(tinyMapMin | 2)
	mustEncodeString(t, enc, "a")
	mustEncodeInt(t, enc, 1)
	mustEncodeString(t, enc, "a")
	mustEncodeInt(t, enc, 2)

	decoded, _, err := DecodeValue(enc.Bytes(), boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := decoded.AsMap()
	if !ok {
		t.Fatal("expected map")
	}
	v, _ := m.Get("a")
	i, _ := v.AsInt()
	if i != 2 {
		t.Fatalf("expected last occurrence 2, got %d", i)
	}
}

func mustEncodeString(t *testing.T, e *Encoder, s string) {
	t.Helper()
	if err := e.encodeString(s); err != nil {
		t.Fatal(err)
	}
}

func mustEncodeInt(t *testing.T, e *Encoder, i int64) {
	t.Helper()
	if err := e.encodeInt(i); err != nil {
		t.Fatal(err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	for _, f := range []float64{0, -0.0, 1.5, -1.5, 3.14159265358979} {
		decoded := roundTrip(t, boltwire.Float(f), boltwire.Version3)
		got, ok := decoded.AsFloat()
		if !ok || got != f {
			t.Fatalf("float round trip failed for %v, got %v", f, decoded)
		}
	}
}

func TestBoolAndNullRoundTrip(t *testing.T) {
	if v := roundTrip(t, boltwire.Bool(true), boltwire.Version3); b, _ := v.AsBool(); !b {
		t.Fatal("expected true")
	}
	if v := roundTrip(t, boltwire.Bool(false), boltwire.Version3); b, _ := v.AsBool(); b {
		t.Fatal("expected false")
	}
	if v := roundTrip(t, boltwire.Null(), boltwire.Version3); !v.IsNull() {
		t.Fatal("expected null")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := &boltwire.Duration{Months: 13, Days: 11, Seconds: 46941, Nanos: 554}
	encoded, err := EncodeValue(boltwire.DurationValue(d), boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	// signature byte follows the struct header byte.
	if encoded[1] != SigDuration {
		t.Fatalf("expected signature 0x45, got 0x%02X", encoded[1])
	}
	decoded, _, err := DecodeValue(encoded, boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.AsDuration()
	if !ok || *got != *d {
		t.Fatalf("duration round trip mismatch: got %+v want %+v", got, d)
	}
}

func TestTemporalRejectedBelowVersion2(t *testing.T) {
	d := &boltwire.Duration{Months: 1, Days: 1, Seconds: 1, Nanos: 1}
	_, err := EncodeValue(boltwire.DurationValue(d), boltwire.Version1)
	if err == nil {
		t.Fatal("expected encode error for temporal value at version 1")
	}
	if _, ok := err.(*boltwire.EncodeError); !ok {
		t.Fatalf("expected *boltwire.EncodeError, got %T", err)
	}
}

func TestUnknownMarkerIsDecodeError(t *testing.T) {
	_, _, err := DecodeValue([]byte{0xC7}, boltwire.Version3)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if _, ok := err.(*boltwire.DecodeError); !ok {
		t.Fatalf("expected *boltwire.DecodeError, got %T", err)
	}
}

func TestTruncatedInputIsDecodeError(t *testing.T) {
	_, _, err := DecodeValue([]byte{0xC9, 0x01}, boltwire.Version3)
	if err == nil {
		t.Fatal("expected decode error for truncated int16")
	}
}

func TestNonStringMapKeyIsDecodeError(t *testing.T) {
	enc, err := NewEncoder(boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	enc.buf.WriteByte(tinyMapMin | 1)
	mustEncodeInt(t, enc, 1) // key should be a string, not an int
	mustEncodeInt(t, enc, 2)
	_, _, err = DecodeValue(enc.Bytes(), boltwire.Version3)
	if err == nil {
		t.Fatal("expected decode error for non-string map key")
	}
}

func TestPoint2DRoundTrip(t *testing.T) {
	p := &boltwire.Point2D{SRID: 4326, X: 1.5, Y: -2.5}
	decoded := roundTrip(t, boltwire.Point2DValue(p), boltwire.Version3)
	got, ok := decoded.AsPoint2D()
	if !ok || *got != *p {
		t.Fatalf("point2d round trip mismatch: got %+v want %+v", got, p)
	}
}

func TestDateTimeWithZoneOffsetHasThreeFields(t *testing.T) {
	dt := &boltwire.DateTimeWithZoneOffset{Seconds: 1000, Nanos: 2000, OffsetSeconds: 3600}
	decoded := roundTrip(t, boltwire.DateTimeWithZoneOffsetValue(dt), boltwire.Version3)
	got, ok := decoded.AsDateTimeWithZoneOffset()
	if !ok || *got != *dt {
		t.Fatalf("datetime-with-zone-offset round trip mismatch: got %+v want %+v", got, dt)
	}
}

func TestNodeDecodeOnly(t *testing.T) {
	node := &boltwire.Node{ID: 1, Labels: []string{"Person"}, Properties: boltwire.NewMap()}
	_, err := EncodeValue(boltwire.NodeValue(node), boltwire.Version3)
	if err == nil {
		t.Fatal("expected encode error: graph values are decode-only")
	}
}
