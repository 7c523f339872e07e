package session

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
)

// Authenticate sends INIT (v1/v2) or HELLO (v3) with authToken and
// moves the session from Connected to Ready. A FAILURE response is
// returned as an AuthError and the session becomes Defunct: a rejected
// credential exchange is unrecoverable, there is no ACK/RESET that
// un-rejects it.
func (s *Session) Authenticate(authToken *boltwire.Map) error {
	if err := s.requireState("authenticate", Connected); err != nil {
		return err
	}

	var req message.Message
	if s.profile.SupportsHelloGoodbye {
		req = message.NewHello(s.options.UserAgent, authToken)
	} else {
		req = message.NewInit(s.options.UserAgent, authToken)
	}

	boltwire.ApplyDeadline(s.transport, s.options.Timeouts.Auth)
	resp, err := s.send("authenticate", req)
	if err != nil {
		return err
	}

	switch resp.Signature {
	case message.SigSuccess:
		summary, err := message.ParseSuccessMetadata(resp.Fields)
		if err != nil {
			s.setState(Defunct)
			return err
		}
		if agent, ok := agentFromSuccess(resp.Fields); ok {
			s.mu.Lock()
			s.serverAgent = agent
			s.mu.Unlock()
		}
		_ = summary
		s.setState(Ready)
		log.Notice("session", s.id, "authenticated")
		return nil
	case message.SigFailure:
		s.setState(Defunct)
		code, msg, err := message.ParseFailureMetadata(resp.Fields)
		if err != nil {
			return err
		}
		return boltwire.NewAuthError(code, msg)
	default:
		s.setState(Defunct)
		return boltwire.NewProtocolError("unexpected response 0x%02X to auth", resp.Signature)
	}
}

func agentFromSuccess(fields []boltwire.Value) (string, bool) {
	if len(fields) != 1 {
		return "", false
	}
	m, ok := fields[0].AsMap()
	if !ok {
		return "", false
	}
	v, ok := m.Get("server")
	if !ok {
		return "", false
	}
	return v.AsString()
}
