package message

import (
	"testing"

	"github.com/nyxdb/boltwire"
)

func TestRunEncodeDecodeRoundTrip(t *testing.T) {
	params := boltwire.NewMap()
	params.Set("name", boltwire.String("Alice"))
	req := NewRun("RETURN $name", params, boltwire.NewMap())

	encoded, err := Encode(req, boltwire.Version3)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded, boltwire.Version3)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Signature != SigRun {
		t.Fatalf("expected signature 0x10, got 0x%02X", decoded.Signature)
	}
	if len(decoded.Fields) != 3 {
		t.Fatalf("expected 3 fields (statement, params, metadata) at v3, got %d", len(decoded.Fields))
	}
	stmt, _ := decoded.Fields[0].AsString()
	if stmt != "RETURN $name" {
		t.Fatalf("statement mismatch: %q", stmt)
	}
}

func TestRunOmitsMetadataFieldAtV1(t *testing.T) {
	req := NewRun("RETURN 1", nil, nil)
	encoded, err := Encode(req, boltwire.Version1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded, boltwire.Version1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Fields) != 2 {
		t.Fatalf("expected 2 fields (v1/v2 shape), got %d", len(decoded.Fields))
	}
}

func TestRunWithTransactionMetadata(t *testing.T) {
	tm := BuildTransactionMetadata(TransactionMetadata{TimeoutMS: 5000, Mode: "r"})
	req := NewRun("MATCH (n) RETURN n", nil, tm)
	if len(req.Fields) != 3 {
		t.Fatalf("expected 3 fields with tx metadata, got %d", len(req.Fields))
	}
	meta, ok := req.Fields[2].AsMap()
	if !ok {
		t.Fatal("expected third field to be a map")
	}
	if v, _ := meta.Get("mode"); true {
		s, _ := v.AsString()
		if s != "r" {
			t.Fatalf("expected mode=r, got %q", s)
		}
	}
}

func TestBuildTransactionMetadataEmptyIsNil(t *testing.T) {
	if got := BuildTransactionMetadata(TransactionMetadata{}); got != nil {
		t.Fatalf("expected nil for an all-zero TransactionMetadata, got %+v", got)
	}
}

func TestHelloMergesUserAgentAndAuthToken(t *testing.T) {
	auth := BuildAuthToken("basic", "graphdb", "secret")
	req := NewHello("boltwire/1.0", auth)
	if req.Signature != SigHello {
		t.Fatalf("expected HELLO signature, got 0x%02X", req.Signature)
	}
	m, ok := req.Fields[0].AsMap()
	if !ok {
		t.Fatal("expected single map field")
	}
	if v, _ := m.Get("user_agent"); true {
		s, _ := v.AsString()
		if s != "boltwire/1.0" {
			t.Fatalf("expected user_agent to be set, got %q", s)
		}
	}
	if v, ok := m.Get("scheme"); !ok {
		t.Fatal("expected scheme to be merged in from auth token")
	} else if s, _ := v.AsString(); s != "basic" {
		t.Fatalf("expected scheme=basic, got %q", s)
	}
}

func TestParseSuccessMetadataWithCounters(t *testing.T) {
	stats := boltwire.NewMap()
	stats.Set("nodes_created", boltwire.Int(3))
	stats.Set("properties_set", boltwire.Int(5))

	m := boltwire.NewMap()
	m.Set("type", boltwire.String("w"))
	m.Set("bookmark", boltwire.String("bookmark:tx:42"))
	m.Set("stats", boltwire.MapValue(stats))
	m.Set("t_first", boltwire.Int(1))
	m.Set("t_last", boltwire.Int(12))

	summary, err := ParseSuccessMetadata([]boltwire.Value{boltwire.MapValue(m)})
	if err != nil {
		t.Fatal(err)
	}
	if summary.ResultType != "w" {
		t.Fatalf("expected result type w, got %q", summary.ResultType)
	}
	if summary.Bookmark != "bookmark:tx:42" {
		t.Fatalf("unexpected bookmark %q", summary.Bookmark)
	}
	if summary.Counters["nodes_created"] != 3 || summary.Counters["properties_set"] != 5 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if summary.TFirstMS != 1 || summary.TLastMS != 12 {
		t.Fatalf("unexpected timing %+v", summary)
	}
}

func TestParseSuccessMetadataEmpty(t *testing.T) {
	summary, err := ParseSuccessMetadata([]boltwire.Value{boltwire.MapValue(boltwire.NewMap())})
	if err != nil {
		t.Fatal(err)
	}
	if summary.ResultType != "" || summary.Counters != nil {
		t.Fatalf("expected zero-value summary, got %+v", summary)
	}
}

func TestParseFailureMetadata(t *testing.T) {
	m := boltwire.NewMap()
	m.Set("code", boltwire.String("Neo.ClientError.Statement.SyntaxError"))
	m.Set("message", boltwire.String("invalid syntax"))

	code, msg, err := ParseFailureMetadata([]boltwire.Value{boltwire.MapValue(m)})
	if err != nil {
		t.Fatal(err)
	}
	if code != "Neo.ClientError.Statement.SyntaxError" || msg != "invalid syntax" {
		t.Fatalf("unexpected parse result: %q %q", code, msg)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded, err := Encode(NewPullAll(), boltwire.Version3)
	if err != nil {
		t.Fatal(err)
	}
	encoded = append(encoded, 0x00)
	if _, err := Decode(encoded, boltwire.Version3); err == nil {
		t.Fatal("expected a protocol error for trailing bytes")
	}
}

func TestIsResponse(t *testing.T) {
	for _, sig := range []byte{SigSuccess, SigRecord, SigIgnored, SigFailure} {
		if !IsResponse(sig) {
			t.Fatalf("expected 0x%02X to be classified as a response signature", sig)
		}
	}
	if IsResponse(SigRun) {
		t.Fatal("RUN should not be classified as a response signature")
	}
}
