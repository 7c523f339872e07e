package session

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
)

// Reset is always legal except on an already-Defunct session. It
// interrupts any streaming result and is written immediately, ahead of
// a matching read, even while other requests are still sitting in the
// pending queue. Reading then drains the queue in order: any reply to
// a request written before RESET comes back IGNORED and is discarded
// here, and the loop stops at the SUCCESS that matches RESET itself.
func (s *Session) Reset() error {
	if s.State() == Defunct {
		return boltwire.NewProtocolError("reset is not legal on a defunct session")
	}
	s.setState(Interrupted)

	if err := s.writeRequest("RESET", message.NewReset()); err != nil {
		return err
	}

	for {
		_, resp, err := s.readResponse()
		if err != nil {
			return err
		}
		switch resp.Signature {
		case message.SigIgnored:
			continue
		case message.SigSuccess:
			s.setState(Ready)
			log.Notice("session", s.id, "reset")
			return nil
		case message.SigFailure:
			s.setState(Defunct)
			code, msg, perr := message.ParseFailureMetadata(resp.Fields)
			if perr != nil {
				return perr
			}
			return boltwire.NewServerFailureError(code, msg)
		default:
			s.setState(Defunct)
			return boltwire.NewProtocolError("unexpected response 0x%02X to RESET", resp.Signature)
		}
	}
}

// AckFailure sends ACK_FAILURE, the v1/v2 equivalent of RESET used
// only to clear a Failed session back to Ready without interrupting a
// stream (there is none to interrupt; FAILURE only arrives after a
// completed exchange in this state machine).
func (s *Session) AckFailure() error {
	if s.profile.SupportsHelloGoodbye {
		return boltwire.NewProtocolError("ACK_FAILURE is not used at version %d, use Reset", s.version)
	}
	if err := s.requireState("ack_failure", Failed, Interrupted); err != nil {
		return err
	}
	_, err := s.exchange("ACK_FAILURE", message.NewAckFailure(), Ready, Defunct)
	return err
}

// Close ends the session: GOODBYE then transport close at v3, a bare
// transport close otherwise. The session is Defunct either way and
// must not be reused.
func (s *Session) Close() error {
	if s.profile.SupportsHelloGoodbye && s.State() != Defunct {
		encoded, err := message.Encode(message.NewGoodbye(), s.version)
		if err == nil {
			_ = s.writer.WriteMessage(encoded)
		}
	}
	s.setState(Defunct)
	if err := s.transport.Close(); err != nil {
		return boltwire.NewTransportError(err)
	}
	return nil
}
