package session

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/chunk"
	"github.com/nyxdb/boltwire/message"
)

// fakeServer plays the server side of a handshake and a scripted
// sequence of request/response exchanges over a net.Pipe connection.
type fakeServer struct {
	conn   net.Conn
	writer *chunk.Writer
	reader *chunk.Reader
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, writer: chunk.NewWriter(conn), reader: chunk.NewReader(conn)}
}

func (f *fakeServer) handshake(version uint32) error {
	var req [20]byte
	if _, err := io.ReadFull(f.conn, req[:]); err != nil {
		return err
	}
	var reply [4]byte
	binary.BigEndian.PutUint32(reply[:], version)
	_, err := f.conn.Write(reply[:])
	return err
}

func (f *fakeServer) recv(version boltwire.Version) (message.Message, error) {
	payload, err := f.reader.ReadMessage()
	if err != nil {
		return message.Message{}, err
	}
	return message.Decode(payload, version)
}

func (f *fakeServer) reply(msg message.Message, version boltwire.Version) error {
	encoded, err := message.Encode(msg, version)
	if err != nil {
		return err
	}
	return f.writer.WriteMessage(encoded)
}

func successMsg(fields ...boltwire.Value) message.Message {
	return message.Message{Signature: message.SigSuccess, Fields: fields}
}

func mapValue(pairs ...interface{}) boltwire.Value {
	m := boltwire.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case string:
			m.Set(key, boltwire.String(v))
		case boltwire.Value:
			m.Set(key, v)
		}
	}
	return boltwire.MapValue(m)
}

func openTestSession(t *testing.T, version uint32) (*Session, *fakeServer, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	server := newFakeServer(serverConn)

	done := make(chan error, 1)
	go func() { done <- server.handshake(version) }()

	opts := boltwire.DefaultOptions("boltwire-test/1.0")
	sess, err := Open(clientConn, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	return sess, server, serverConn
}

func TestTrivialRunPullScenario(t *testing.T) {
	sess, server, serverConn := openTestSession(t, 3)
	defer serverConn.Close()

	go func() {
		hello, err := server.recv(boltwire.Version3)
		if err != nil || hello.Signature != message.SigHello {
			return
		}
		server.reply(successMsg(mapValue("server", "protocol/4.4")), boltwire.Version3)

		run, err := server.recv(boltwire.Version3)
		if err != nil || run.Signature != message.SigRun {
			return
		}
		server.reply(successMsg(mapValue("fields", boltwire.List(boltwire.String("n")))), boltwire.Version3)

		pull, err := server.recv(boltwire.Version3)
		if err != nil || pull.Signature != message.SigPullAll {
			return
		}
		server.reply(message.Message{Signature: message.SigRecord, Fields: []boltwire.Value{boltwire.Int(1)}}, boltwire.Version3)
		server.reply(successMsg(mapValue("type", "r")), boltwire.Version3)
	}()

	auth := message.BuildAuthToken("basic", "graphdb", "secret")
	if err := sess.Authenticate(auth); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.State() != Ready {
		t.Fatalf("expected Ready after auth, got %s", sess.State())
	}

	token, fields, err := sess.Run("RETURN 1 AS n", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fields) != 1 || fields[0] != "n" {
		t.Fatalf("expected fields [n], got %v", fields)
	}
	if sess.State() != Streaming {
		t.Fatalf("expected Streaming after RUN success, got %s", sess.State())
	}

	var records []Record
	summary, err := sess.Pull(token, func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if i, ok := records[0].Values[0].AsInt(); !ok || i != 1 {
		t.Fatalf("expected record value 1, got %v", records[0].Values)
	}
	if summary.ResultType != "r" {
		t.Fatalf("expected result type r, got %q", summary.ResultType)
	}
	if sess.State() != Ready {
		t.Fatalf("expected Ready after PULL_ALL completes, got %s", sess.State())
	}
}

func TestFailureRecoveryV1(t *testing.T) {
	sess, server, serverConn := openTestSession(t, 1)
	defer serverConn.Close()

	go func() {
		init, err := server.recv(boltwire.Version1)
		if err != nil || init.Signature != message.SigInit {
			return
		}
		server.reply(successMsg(mapValue("server", "protocol/3.5")), boltwire.Version1)

		if run, err := server.recv(boltwire.Version1); err != nil || run.Signature != message.SigRun {
			return
		}
		meta := boltwire.NewMap()
		meta.Set("code", boltwire.String("Neo.ClientError.Statement.SyntaxError"))
		meta.Set("message", boltwire.String("bad cypher"))
		server.reply(message.Message{Signature: message.SigFailure, Fields: []boltwire.Value{boltwire.MapValue(meta)}}, boltwire.Version1)

		if run, err := server.recv(boltwire.Version1); err != nil || run.Signature != message.SigRun {
			return
		}
		server.reply(message.Message{Signature: message.SigIgnored}, boltwire.Version1)

		if ack, err := server.recv(boltwire.Version1); err != nil || ack.Signature != message.SigAckFailure {
			return
		}
		server.reply(successMsg(boltwire.Null()), boltwire.Version1)

		if run, err := server.recv(boltwire.Version1); err != nil || run.Signature != message.SigRun {
			return
		}
		server.reply(successMsg(mapValue("fields", boltwire.List(boltwire.String("n")))), boltwire.Version1)
	}()

	if err := sess.Authenticate(nil); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	_, _, err := sess.Run("BAD CYPHER", nil, nil)
	if err == nil {
		t.Fatal("expected a server failure error")
	}
	if _, ok := err.(*boltwire.ServerFailureError); !ok {
		t.Fatalf("expected *boltwire.ServerFailureError, got %T", err)
	}
	if sess.State() != Failed {
		t.Fatalf("expected Failed after FAILURE, got %s", sess.State())
	}

	_, _, err = sess.Run("RETURN 1", nil, nil)
	if err == nil {
		t.Fatal("expected the second RUN to be ignored")
	}
	if sess.State() != Interrupted {
		t.Fatalf("expected Interrupted after an ignored request, got %s", sess.State())
	}

	if err := sess.AckFailure(); err != nil {
		t.Fatalf("ack failure: %v", err)
	}
	if sess.State() != Ready {
		t.Fatalf("expected Ready after ACK_FAILURE, got %s", sess.State())
	}

	_, fields, err := sess.Run("RETURN 1", nil, nil)
	if err != nil {
		t.Fatalf("run after recovery: %v", err)
	}
	if len(fields) != 1 || fields[0] != "n" {
		t.Fatalf("expected fields [n], got %v", fields)
	}
}

func TestResetInterruptsAndReturnsToReady(t *testing.T) {
	sess, server, serverConn := openTestSession(t, 3)
	defer serverConn.Close()

	go func() {
		hello, err := server.recv(boltwire.Version3)
		if err != nil || hello.Signature != message.SigHello {
			return
		}
		server.reply(successMsg(mapValue("server", "protocol/4.4")), boltwire.Version3)

		reset, err := server.recv(boltwire.Version3)
		if err != nil || reset.Signature != message.SigReset {
			return
		}
		server.reply(successMsg(boltwire.Null()), boltwire.Version3)
	}()

	if err := sess.Authenticate(nil); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := sess.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sess.State() != Ready {
		t.Fatalf("expected Ready after RESET, got %s", sess.State())
	}
}

func TestBeginCommitRoundTrip(t *testing.T) {
	sess, server, serverConn := openTestSession(t, 3)
	defer serverConn.Close()

	go func() {
		hello, err := server.recv(boltwire.Version3)
		if err != nil || hello.Signature != message.SigHello {
			return
		}
		server.reply(successMsg(mapValue("server", "protocol/4.4")), boltwire.Version3)

		begin, err := server.recv(boltwire.Version3)
		if err != nil || begin.Signature != message.SigBegin {
			return
		}
		server.reply(successMsg(boltwire.Null()), boltwire.Version3)

		commit, err := server.recv(boltwire.Version3)
		if err != nil || commit.Signature != message.SigCommit {
			return
		}
		server.reply(successMsg(mapValue("bookmark", "bookmark:tx:7")), boltwire.Version3)
	}()

	if err := sess.Authenticate(nil); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := sess.Begin(nil, ""); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if sess.State() != TxReady {
		t.Fatalf("expected TxReady after BEGIN, got %s", sess.State())
	}
	if err := sess.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if sess.State() != Ready {
		t.Fatalf("expected Ready after COMMIT, got %s", sess.State())
	}
	if sess.LastBookmark() != "bookmark:tx:7" {
		t.Fatalf("expected bookmark to be recorded, got %q", sess.LastBookmark())
	}
}

func TestHandshakeFailureClosesWithoutPanicking(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		var req [20]byte
		io.ReadFull(serverConn, req[:])
		serverConn.Write([]byte{0x00, 0x00, 0x00, 0x00})
	}()

	_, err := Open(clientConn, boltwire.DefaultOptions("boltwire-test/1.0"))
	if err == nil {
		t.Fatal("expected a handshake error")
	}
	if _, ok := err.(*boltwire.HandshakeError); !ok {
		t.Fatalf("expected *boltwire.HandshakeError, got %T", err)
	}
}
