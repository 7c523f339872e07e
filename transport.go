package boltwire

import (
	"io"
	"time"
)

// Transport is the byte-stream the session reads and writes. It is
// satisfied by *net.TCPConn, a *tls.Conn, or a test double; boltwire
// never dials, pools, or encrypts one itself -- the transport, the
// connection pool, and TLS negotiation are external collaborators.
type Transport = io.ReadWriteCloser

// Deadliner is implemented by most real transports (net.Conn, tls.Conn)
// but not necessarily by test doubles. Session type-asserts for it
// before applying the configured Timeouts, so the core never imports
// "net" directly.
type Deadliner interface {
	SetDeadline(t time.Time) error
}

// ApplyDeadline best-efforts a deadline onto a transport: if it
// doesn't implement Deadliner, requests simply block without a
// client-side timeout.
func ApplyDeadline(transport Transport, d time.Duration) {
	if d <= 0 {
		return
	}
	if deadliner, ok := transport.(Deadliner); ok {
		_ = deadliner.SetDeadline(time.Now().Add(d))
	}
}
