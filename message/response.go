package message

import "github.com/nyxdb/boltwire"

// Summary destructures the metadata map a stream-closing SUCCESS
// carries (the reply to PULL_ALL, DISCARD_ALL, COMMIT, or ROLLBACK)
// into a typed result a caller can inspect without re-parsing the map.
type Summary struct {
	ResultType string // "r", "w", "rw", or "s"
	Bookmark   string // present only at v3
	Fields     []string
	Counters   map[string]int64
	TFirstMS   int64
	TLastMS    int64
}

// ParseSuccessMetadata destructures a SUCCESS message's single map
// field into a Summary. Every field is optional on the wire; absent
// fields are left at their zero value.
func ParseSuccessMetadata(fields []boltwire.Value) (Summary, error) {
	m, err := successMap(fields)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if v, ok := m.Get("type"); ok {
		s.ResultType, _ = v.AsString()
	}
	if v, ok := m.Get("bookmark"); ok {
		s.Bookmark, _ = v.AsString()
	}
	if v, ok := m.Get("fields"); ok {
		if items, ok := v.AsList(); ok {
			s.Fields = make([]string, 0, len(items))
			for _, item := range items {
				if name, ok := item.AsString(); ok {
					s.Fields = append(s.Fields, name)
				}
			}
		}
	}
	if v, ok := m.Get("t_first"); ok {
		s.TFirstMS, _ = v.AsInt()
	}
	if v, ok := m.Get("t_last"); ok {
		s.TLastMS, _ = v.AsInt()
	}
	s.Counters = parseCounters(m)
	return s, nil
}

var counterKeys = []string{
	"nodes_created", "nodes_deleted",
	"relationships_created", "relationships_deleted",
	"properties_set", "labels_added", "labels_removed",
	"indexes_added", "indexes_removed",
	"constraints_added", "constraints_removed",
}

func parseCounters(m *boltwire.Map) map[string]int64 {
	stats, ok := m.Get("stats")
	if !ok {
		return nil
	}
	statsMap, ok := stats.AsMap()
	if !ok {
		return nil
	}
	counters := make(map[string]int64)
	for _, key := range counterKeys {
		if v, ok := statsMap.Get(key); ok {
			if i, ok := v.AsInt(); ok {
				counters[key] = i
			}
		}
	}
	if len(counters) == 0 {
		return nil
	}
	return counters
}

func successMap(fields []boltwire.Value) (*boltwire.Map, error) {
	if len(fields) != 1 {
		return nil, boltwire.NewProtocolError("SUCCESS expects 1 field, got %d", len(fields))
	}
	m, ok := fields[0].AsMap()
	if !ok {
		if fields[0].Kind() == boltwire.KindNull {
			return boltwire.NewMap(), nil
		}
		return nil, boltwire.NewProtocolError("SUCCESS field is not a map (kind %d)", fields[0].Kind())
	}
	return m, nil
}

// ParseFailureMetadata destructures a FAILURE message's single map
// field into a (code, message) pair.
func ParseFailureMetadata(fields []boltwire.Value) (code, msg string, err error) {
	if len(fields) != 1 {
		return "", "", boltwire.NewProtocolError("FAILURE expects 1 field, got %d", len(fields))
	}
	m, ok := fields[0].AsMap()
	if !ok {
		return "", "", boltwire.NewProtocolError("FAILURE field is not a map (kind %d)", fields[0].Kind())
	}
	if v, ok := m.Get("code"); ok {
		code, _ = v.AsString()
	}
	if v, ok := m.Get("message"); ok {
		msg, _ = v.AsString()
	}
	return code, msg, nil
}
