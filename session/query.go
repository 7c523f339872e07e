package session

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
)

// Run submits a statement. txMeta may be nil; it is only meaningful at
// v3, which always carries a third metadata field on the wire (empty
// when txMeta is nil or all-zero) -- older versions never send one.
// The returned RunToken must be passed to Pull or Discard.
func (s *Session) Run(statement string, params *boltwire.Map, txMeta *message.TransactionMetadata) (RunToken, []string, error) {
	current := s.State()
	if err := s.requireState("run", Ready, TxReady, Failed); err != nil {
		return RunToken{}, nil, err
	}

	metadata := s.runMetadata(txMeta)

	successState := Streaming
	if current == TxReady {
		successState = TxStreaming
	}

	resp, err := s.exchange("RUN", message.NewRun(statement, params, metadata), successState, Failed)
	if err != nil {
		return RunToken{}, nil, err
	}

	summary, err := message.ParseSuccessMetadata(resp.Fields)
	if err != nil {
		return RunToken{}, nil, err
	}

	s.mu.Lock()
	s.lastRunSeq++
	token := RunToken{SessionID: s.id, Seq: s.lastRunSeq}
	s.lastRunToken = token
	s.mu.Unlock()

	return token, summary.Fields, nil
}

// runMetadata builds the metadata field RUN carries at v3. A nil or
// all-zero txMeta still produces an empty map rather than a nil field,
// since the field itself -- present or absent -- is what versions RUN.
func (s *Session) runMetadata(txMeta *message.TransactionMetadata) *boltwire.Map {
	if !s.profile.SupportsTransactions {
		return nil
	}
	tm := message.TransactionMetadata{}
	if txMeta != nil {
		tm = *txMeta
	}
	metadata := message.BuildTransactionMetadata(tm)
	if metadata == nil {
		metadata = boltwire.NewMap()
	}
	return metadata
}

// RunAndPull pipelines a RUN and its PULL_ALL: both are written to the
// transport before either response is read. It exists for callers that
// already know they want every row of the result and would otherwise
// pay a full round trip between RUN's reply and the PULL_ALL that
// always follows it. The pending-request queue pairs each reply with
// the write that produced it in order, so if RUN fails, the PULL_ALL
// already sent comes back IGNORED -- the same as any other request
// written while the session is Failed.
func (s *Session) RunAndPull(statement string, params *boltwire.Map, txMeta *message.TransactionMetadata, onRecord func(Record) error) ([]string, message.Summary, error) {
	current := s.State()
	if err := s.requireState("run", Ready, TxReady); err != nil {
		return nil, message.Summary{}, err
	}

	metadata := s.runMetadata(txMeta)

	streamState := Streaming
	readyState := Ready
	if current == TxReady {
		streamState = TxStreaming
		readyState = TxReady
	}

	if err := s.writeRequest("RUN", message.NewRun(statement, params, metadata)); err != nil {
		return nil, message.Summary{}, err
	}
	if err := s.writeRequest("PULL_ALL", message.NewPullAll()); err != nil {
		return nil, message.Summary{}, err
	}
	s.setState(streamState)

	runResp, err := s.recv()
	if err != nil {
		return nil, message.Summary{}, err
	}
	if _, err := s.popPending(); err != nil {
		s.setState(Defunct)
		return nil, message.Summary{}, err
	}

	switch runResp.Signature {
	case message.SigSuccess:
		runSummary, err := message.ParseSuccessMetadata(runResp.Fields)
		if err != nil {
			return nil, message.Summary{}, err
		}
		s.mu.Lock()
		s.lastRunSeq++
		token := RunToken{SessionID: s.id, Seq: s.lastRunSeq}
		s.lastRunToken = token
		s.mu.Unlock()

		pullSummary, err := s.drainRecordStream("PULL_ALL", readyState, token, onRecord)
		if err != nil {
			return runSummary.Fields, message.Summary{}, err
		}
		return runSummary.Fields, pullSummary, nil
	case message.SigFailure:
		s.setState(Failed)
		code, msg, perr := message.ParseFailureMetadata(runResp.Fields)
		if perr != nil {
			return nil, message.Summary{}, perr
		}
		ignored, rerr := s.recv()
		if rerr != nil {
			return nil, message.Summary{}, rerr
		}
		if _, err := s.popPending(); err != nil {
			s.setState(Defunct)
			return nil, message.Summary{}, err
		}
		if ignored.Signature != message.SigIgnored {
			s.setState(Defunct)
			return nil, message.Summary{}, boltwire.NewProtocolError(
				"expected IGNORED for pipelined PULL_ALL after RUN failure, got 0x%02X", ignored.Signature)
		}
		return nil, message.Summary{}, boltwire.NewServerFailureError(code, msg)
	default:
		s.setState(Defunct)
		return nil, message.Summary{}, boltwire.NewProtocolError(
			"unexpected response 0x%02X to RUN", runResp.Signature)
	}
}

// Pull streams the remainder of the current result, invoking onRecord
// for each row as it arrives, and returns the closing Summary. onRecord
// may be nil to discard rows while still draining the stream.
func (s *Session) Pull(token RunToken, onRecord func(Record) error) (message.Summary, error) {
	if err := s.checkToken(token); err != nil {
		return message.Summary{}, err
	}
	successState := Ready
	if s.State() == TxStreaming {
		successState = TxReady
	}
	return s.stream("PULL_ALL", message.NewPullAll(), successState, onRecord)
}

// Discard drops the remainder of the current result without
// transmitting it, returning the closing Summary.
func (s *Session) Discard(token RunToken) (message.Summary, error) {
	if err := s.checkToken(token); err != nil {
		return message.Summary{}, err
	}
	successState := Ready
	if s.State() == TxStreaming {
		successState = TxReady
	}
	return s.stream("DISCARD_ALL", message.NewDiscardAll(), successState, nil)
}

func (s *Session) checkToken(token RunToken) error {
	if err := s.requireState("pull/discard", Streaming, TxStreaming); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.lastRunToken
	_, alreadyDone := s.completedTokens.Get(token)
	s.mu.Unlock()
	if alreadyDone {
		return boltwire.NewProtocolError("run token %s has already been pulled or discarded", token)
	}
	if token != current {
		return boltwire.NewProtocolError("run token %s does not match the active stream %s", token, current)
	}
	return nil
}

// stream writes req and drains the RECORD*/SUCCESS/FAILURE shape every
// PULL_ALL or DISCARD_ALL reply takes.
func (s *Session) stream(op string, req message.Message, successState State, onRecord func(Record) error) (message.Summary, error) {
	boltwire.ApplyDeadline(s.transport, s.options.Timeouts.Pull)

	s.mu.Lock()
	token := s.lastRunToken
	s.mu.Unlock()

	if err := s.writeRequest(op, req); err != nil {
		return message.Summary{}, err
	}
	return s.drainRecordStream(op, successState, token, onRecord)
}

// drainRecordStream reads RECORD messages for one already-written,
// still-queued request until a terminating SUCCESS/FAILURE arrives,
// then pops that request off the pending queue. RECORD messages never
// touch the queue: only the terminal reply does, since the queue
// tracks requests, not the individual rows a streaming reply carries.
func (s *Session) drainRecordStream(op string, successState State, token RunToken, onRecord func(Record) error) (message.Summary, error) {
	for {
		resp, err := s.recv()
		if err != nil {
			return message.Summary{}, err
		}

		switch resp.Signature {
		case message.SigRecord:
			if onRecord != nil {
				if err := onRecord(Record{Values: resp.Fields}); err != nil {
					return message.Summary{}, err
				}
			}
		case message.SigSuccess:
			if _, err := s.popPending(); err != nil {
				s.setState(Defunct)
				return message.Summary{}, err
			}
			s.setState(successState)
			summary, err := message.ParseSuccessMetadata(resp.Fields)
			if err != nil {
				return message.Summary{}, err
			}
			s.recordBookmark(summary.Bookmark)
			s.mu.Lock()
			s.completedTokens.Add(token, struct{}{})
			s.mu.Unlock()
			return summary, nil
		case message.SigFailure:
			if _, err := s.popPending(); err != nil {
				s.setState(Defunct)
				return message.Summary{}, err
			}
			s.setState(Failed)
			s.mu.Lock()
			s.completedTokens.Add(token, struct{}{})
			s.mu.Unlock()
			code, msg, perr := message.ParseFailureMetadata(resp.Fields)
			if perr != nil {
				return message.Summary{}, perr
			}
			return message.Summary{}, boltwire.NewServerFailureError(code, msg)
		default:
			s.setState(Defunct)
			return message.Summary{}, boltwire.NewProtocolError(
				"unexpected response 0x%02X to %s", resp.Signature, op)
		}
	}
}
