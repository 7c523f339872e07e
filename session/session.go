// Package session implements the session state machine: request
// submission, response correlation, failure recovery, and transaction
// lifecycle over a single transport connection.
package session

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/op/go-logging"
	uuid "github.com/satori/go.uuid"

	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/chunk"
	"github.com/nyxdb/boltwire/handshake"
	"github.com/nyxdb/boltwire/message"
)

// completedTokenCacheSize bounds the dedup cache below: enough recent
// run tokens to catch a caller re-pulling/re-discarding a stream it
// already drained, without growing unbounded across a long-lived
// session.
const completedTokenCacheSize = 128

var log = logging.MustGetLogger("")

// State is one node of the session state machine.
type State int

const (
	Disconnected State = iota
	Connected
	Ready
	Streaming
	TxReady
	TxStreaming
	Failed
	Interrupted
	Defunct
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Ready:
		return "Ready"
	case Streaming:
		return "Streaming"
	case TxReady:
		return "TxReady"
	case TxStreaming:
		return "TxStreaming"
	case Failed:
		return "Failed"
	case Interrupted:
		return "Interrupted"
	case Defunct:
		return "Defunct"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunToken correlates a RUN with its later Pull/Discard call. It
// embeds the session's connection identifier so log lines from a
// caller or pool can be traced back to a specific streaming result.
type RunToken struct {
	SessionID uuid.UUID
	Seq       uint64
}

func (t RunToken) String() string {
	return fmt.Sprintf("%s/%d", t.SessionID, t.Seq)
}

// Record is a single row of a result stream.
type Record struct {
	Values []boltwire.Value
}

// pendingRequest is one FIFO entry: a request already written to the
// transport whose response has not yet been read. Responses arrive in
// the order their requests were written, so the queue only ever needs
// its head popped -- never searched or reordered.
type pendingRequest struct {
	op        string
	signature byte
}

// Session is one protocol conversation bound to one transport
// connection. It is not safe for concurrent request submission: the
// owner must serialize calls, since the underlying chunk stream and
// pending-request queue are not re-entrant.
type Session struct {
	id      uuid.UUID
	version boltwire.Version
	profile boltwire.VersionProfile
	options boltwire.Options

	transport boltwire.Transport
	writer    *chunk.Writer
	reader    *chunk.Reader

	mu          sync.Mutex
	state       State
	bookmark    string
	bookmarkLog *boltwire.BookmarkHistory
	// pending is the FIFO queue of requests written to the transport
	// whose responses have not yet been read. writeRequest appends to
	// its tail; readResponse pops its head and pairs the popped entry
	// with the response that was just decoded. Reset drains it by
	// reading responses (so any IGNORED replies to earlier entries are
	// consumed) until the entry matching the RESET itself comes back.
	pending      []pendingRequest
	lastRunToken RunToken
	lastRunSeq   uint64
	serverAgent  string
	txMode       string

	// completedTokens dedups Pull/Discard against a RunToken that has
	// already been streamed to completion.
	completedTokens *lru.Cache
}

// Open performs the handshake over transport and returns a Session in
// the Connected state. If the server has no version in common with the
// offer, the transport is closed and a *boltwire.HandshakeError is
// returned; on any other handshake failure the transport is left open.
func Open(transport boltwire.Transport, options boltwire.Options) (*Session, error) {
	boltwire.ApplyDeadline(transport, options.Timeouts.Handshake)
	version, err := handshake.Perform(transport, options.OfferedVersions)
	if err != nil {
		if _, ok := err.(*boltwire.HandshakeError); ok {
			transport.Close()
		}
		return nil, err
	}
	profile, err := boltwire.ProfileFor(version)
	if err != nil {
		return nil, err
	}
	id := uuid.NewV4()
	s := &Session{
		id:          id,
		version:     version,
		profile:     profile,
		options:     options,
		transport:   transport,
		writer:      chunk.NewWriter(transport),
		reader:      chunk.NewReader(transport),
		state:           Connected,
		bookmarkLog:     boltwire.NewBookmarkHistory(),
		completedTokens: lru.New(completedTokenCacheSize),
	}
	log.Debug("session", s.id, "connected at version", version)
	return s, nil
}

// State reports the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// MarkDefunct forces the session into the terminal Defunct state. It
// satisfies boltwire.Defuncter so a panic recovered mid-operation by
// boltwire.GuardSession can retire the session instead of leaving it
// in whatever state the panic interrupted.
func (s *Session) MarkDefunct() {
	s.setState(Defunct)
}

// Version returns the negotiated protocol version.
func (s *Session) Version() boltwire.Version { return s.version }

// LastBookmark returns the most recently observed bookmark string, or
// "" if none has been seen yet.
func (s *Session) LastBookmark() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookmark
}

// BookmarkHistory returns the bounded diagnostic history of bookmarks
// this session has observed.
func (s *Session) BookmarkHistory() []string {
	return s.bookmarkLog.Recent()
}

// ServerVersion returns the server's reported agent string (from the
// INIT/HELLO SUCCESS metadata) unparsed; boltwire.ParseServerVersion
// turns it into a semver.Version for feature gating.
func (s *Session) ServerVersion() (serverVersion string, err error) {
	s.mu.Lock()
	agent := s.serverAgent
	s.mu.Unlock()
	if agent == "" {
		return "", boltwire.NewProtocolError("server agent string not yet available")
	}
	return agent, nil
}

func (s *Session) recordBookmark(bookmark string) {
	if bookmark == "" {
		return
	}
	s.mu.Lock()
	s.bookmark = bookmark
	s.mu.Unlock()
	s.bookmarkLog.Record(bookmark)
}

// writeRequest encodes and writes req to the transport, then appends
// it to the tail of the pending-response FIFO queue. It returns as
// soon as the bytes are on the wire, before any response is read, so a
// caller may write several requests back-to-back (e.g. RUN followed
// immediately by PULL_ALL) and read their responses afterward -- the
// server guarantees replies come back in the same order the requests
// were sent.
func (s *Session) writeRequest(op string, req message.Message) error {
	encoded, err := message.Encode(req, s.version)
	if err != nil {
		return err
	}

	boltwire.ApplyDeadline(s.transport, s.options.Timeouts.Run)
	if err := s.writer.WriteMessage(encoded); err != nil {
		s.setState(Defunct)
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, pendingRequest{op: op, signature: req.Signature})
	s.mu.Unlock()
	return nil
}

// recv reads and decodes the next response message from the
// transport. It does not touch the pending queue: a caller streaming
// RECORD messages for a single queued PULL_ALL/DISCARD_ALL calls recv
// repeatedly and only pops the queue once the terminating
// SUCCESS/FAILURE arrives, via popPending.
func (s *Session) recv() (message.Message, error) {
	payload, err := s.reader.ReadMessage()
	if err != nil {
		s.setState(Defunct)
		return message.Message{}, err
	}
	resp, err := message.Decode(payload, s.version)
	if err != nil {
		s.setState(Defunct)
		return message.Message{}, err
	}
	if !message.IsResponse(resp.Signature) {
		s.setState(Defunct)
		return message.Message{}, boltwire.NewProtocolError(
			"expected a response message, got signature 0x%02X", resp.Signature)
	}
	return resp, nil
}

// popPending removes and returns the head of the pending queue. A pop
// against an empty queue is a protocol violation: the server sent a
// reply to a request this session never made.
func (s *Session) popPending() (pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return pendingRequest{}, boltwire.NewProtocolError("received a response with no outstanding request")
	}
	originator := s.pending[0]
	s.pending = s.pending[1:]
	return originator, nil
}

// readResponse reads the next response from the transport and pops
// the request it answers off the head of the pending queue in one
// step, for the common case where a request has exactly one reply.
func (s *Session) readResponse() (pendingRequest, message.Message, error) {
	resp, err := s.recv()
	if err != nil {
		return pendingRequest{}, message.Message{}, err
	}
	originator, err := s.popPending()
	if err != nil {
		s.setState(Defunct)
		return pendingRequest{}, message.Message{}, err
	}
	return originator, resp, nil
}

// pendingCount reports how many requests have been written but not
// yet answered.
func (s *Session) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// send writes a single request message and blocks for its matching
// response, via the same pending-request queue a multi-request
// pipeline uses.
func (s *Session) send(op string, req message.Message) (message.Message, error) {
	if err := s.writeRequest(op, req); err != nil {
		return message.Message{}, err
	}
	_, resp, err := s.readResponse()
	return resp, err
}

// requireState fails fast with a ProtocolError if the session is not
// in one of the allowed states for the operation being attempted.
func (s *Session) requireState(op string, allowed ...State) error {
	current := s.State()
	for _, a := range allowed {
		if current == a {
			return nil
		}
	}
	return boltwire.NewProtocolError("%s is not legal in state %s", op, current)
}
