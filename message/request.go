package message

import "github.com/nyxdb/boltwire"

// NewInit builds the v1/v2 handshake-completion request: user agent
// plus an auth token map, sent once per connection before any RUN.
func NewInit(userAgent string, authToken *boltwire.Map) Message {
	return Message{
		Signature: SigInit,
		Fields:    []boltwire.Value{boltwire.String(userAgent), boltwire.MapValue(authToken)},
	}
}

// NewHello builds the v3 equivalent of NewInit: a single metadata map
// carrying both the user agent and the auth token fields merged
// together, per the v3 wire shape.
func NewHello(userAgent string, authToken *boltwire.Map) Message {
	m := boltwire.NewMap()
	m.Set("user_agent", boltwire.String(userAgent))
	if authToken != nil {
		for _, k := range authToken.Keys() {
			v, _ := authToken.Get(k)
			m.Set(k, v)
		}
	}
	return Message{Signature: SigHello, Fields: []boltwire.Value{boltwire.MapValue(m)}}
}

// NewGoodbye builds the v3 graceful-disconnect request. It expects no
// reply; the caller closes the transport immediately after sending it.
func NewGoodbye() Message {
	return Message{Signature: SigGoodbye}
}

// NewAckFailure builds the v1/v2 failure-acknowledgement request that
// returns a Failed session to Ready without discarding the connection.
func NewAckFailure() Message {
	return Message{Signature: SigAckFailure}
}

// NewReset builds the RESET request, valid in any non-Defunct state;
// it interrupts any streaming result and returns the session to Ready
// (v1/v2) or the idle transaction-free state (v3).
func NewReset() Message {
	return Message{Signature: SigReset}
}

// NewRun builds a RUN request. metadata is nil for v1/v2 (the field is
// omitted from the wire shape there) and may carry BEGIN-shaped
// tx_timeout/tx_metadata/bookmarks for an auto-commit statement at v3.
func NewRun(statement string, parameters *boltwire.Map, metadata *boltwire.Map) Message {
	if parameters == nil {
		parameters = boltwire.NewMap()
	}
	fields := []boltwire.Value{boltwire.String(statement), boltwire.MapValue(parameters)}
	if metadata != nil {
		fields = append(fields, boltwire.MapValue(metadata))
	}
	return Message{Signature: SigRun, Fields: fields}
}

// NewDiscardAll builds the DISCARD_ALL request, discarding the
// remainder of the current result stream without transmitting it.
func NewDiscardAll() Message {
	return Message{Signature: SigDiscardAll}
}

// NewPullAll builds the PULL_ALL request, pulling the remainder of the
// current result stream as RECORD messages terminated by SUCCESS.
func NewPullAll() Message {
	return Message{Signature: SigPullAll}
}

// NewBegin builds the v3 BEGIN request opening an explicit
// transaction. metadata may be nil, in which case an empty map is sent.
func NewBegin(metadata *boltwire.Map) Message {
	if metadata == nil {
		metadata = boltwire.NewMap()
	}
	return Message{Signature: SigBegin, Fields: []boltwire.Value{boltwire.MapValue(metadata)}}
}

// NewCommit builds the v3 COMMIT request.
func NewCommit() Message {
	return Message{Signature: SigCommit}
}

// NewRollback builds the v3 ROLLBACK request.
func NewRollback() Message {
	return Message{Signature: SigRollback}
}

// BuildAuthToken assembles the auth_token map INIT/HELLO expects:
// scheme, principal, and credentials, the three fields every basic-auth
// deployment of this protocol family requires.
func BuildAuthToken(scheme, principal, credentials string) *boltwire.Map {
	m := boltwire.NewMap()
	m.Set("scheme", boltwire.String(scheme))
	m.Set("principal", boltwire.String(principal))
	m.Set("credentials", boltwire.String(credentials))
	return m
}

// TransactionMetadata holds the optional fields shared by BEGIN and the
// v3 form of RUN. Zero values are omitted from the built map rather
// than sent as empty/zero wire values.
type TransactionMetadata struct {
	Bookmarks  []string
	TimeoutMS  int64
	Metadata   *boltwire.Map
	Mode       string // "r" for a read transaction, "" or "w" for write
}

// BuildTransactionMetadata assembles a metadata map from tm, omitting
// any field left at its zero value. Returns nil if tm is entirely
// empty, so callers can pass the result straight to NewRun/NewBegin.
func BuildTransactionMetadata(tm TransactionMetadata) *boltwire.Map {
	if len(tm.Bookmarks) == 0 && tm.TimeoutMS == 0 && tm.Metadata == nil && tm.Mode == "" {
		return nil
	}
	m := boltwire.NewMap()
	if len(tm.Bookmarks) > 0 {
		items := make([]boltwire.Value, len(tm.Bookmarks))
		for i, b := range tm.Bookmarks {
			items[i] = boltwire.String(b)
		}
		m.Set("bookmarks", boltwire.List(items...))
	}
	if tm.TimeoutMS != 0 {
		m.Set("tx_timeout", boltwire.Int(tm.TimeoutMS))
	}
	if tm.Metadata != nil {
		m.Set("tx_metadata", boltwire.MapValue(tm.Metadata))
	}
	if tm.Mode != "" {
		m.Set("mode", boltwire.String(tm.Mode))
	}
	return m
}
