package session

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
)

// exchange sends req and applies the generic SUCCESS/FAILURE state
// transition. If the session is already Failed, every request but
// ACK_FAILURE/RESET is still written (the server must see it to keep
// its own message count in sync) but the session moves to Interrupted
// and the expected IGNORED reply surfaces as a ProtocolError to the
// caller.
func (s *Session) exchange(op string, req message.Message, successState, failureState State) (message.Message, error) {
	if s.State() == Failed && req.Signature != message.SigAckFailure && req.Signature != message.SigReset {
		s.setState(Interrupted)
		resp, err := s.send(op, req)
		if err != nil {
			return message.Message{}, err
		}
		if resp.Signature != message.SigIgnored {
			s.setState(Defunct)
			return message.Message{}, boltwire.NewProtocolError(
				"expected IGNORED for %s while failed, got 0x%02X", op, resp.Signature)
		}
		return message.Message{}, boltwire.NewProtocolError("%s ignored: session failed, send RESET first", op)
	}

	resp, err := s.send(op, req)
	if err != nil {
		return message.Message{}, err
	}
	switch resp.Signature {
	case message.SigSuccess:
		s.setState(successState)
		return resp, nil
	case message.SigFailure:
		s.setState(failureState)
		code, msg, perr := message.ParseFailureMetadata(resp.Fields)
		if perr != nil {
			return message.Message{}, perr
		}
		return message.Message{}, boltwire.NewServerFailureError(code, msg)
	default:
		s.setState(Defunct)
		return message.Message{}, boltwire.NewProtocolError(
			"unexpected response 0x%02X to %s", resp.Signature, op)
	}
}
