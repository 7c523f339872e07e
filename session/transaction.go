package session

import (
	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
)

// Begin opens an explicit transaction (v3 only). bookmarks overrides
// the session's own LastBookmark if non-empty, so a pool can stitch
// bookmarks observed on other sessions into the new transaction's
// causal ordering.
func (s *Session) Begin(bookmarks []string, mode string) error {
	if !s.profile.SupportsTransactions {
		return boltwire.NewProtocolError("BEGIN is not supported at version %d", s.version)
	}
	if err := s.requireState("begin", Ready, Failed); err != nil {
		return err
	}

	if len(bookmarks) == 0 {
		if b := s.LastBookmark(); b != "" {
			bookmarks = []string{b}
		}
	}
	tm := message.TransactionMetadata{Bookmarks: bookmarks, Mode: mode}
	s.mu.Lock()
	s.txMode = mode
	s.mu.Unlock()

	_, err := s.exchange("BEGIN", message.NewBegin(message.BuildTransactionMetadata(tm)), TxReady, Failed)
	return err
}

// Commit closes the current explicit transaction successfully.
func (s *Session) Commit() error {
	if err := s.requireState("commit", TxReady, Failed); err != nil {
		return err
	}
	resp, err := s.exchange("COMMIT", message.NewCommit(), Ready, Failed)
	if err != nil {
		return err
	}
	summary, err := message.ParseSuccessMetadata(resp.Fields)
	if err != nil {
		return err
	}
	s.recordBookmark(summary.Bookmark)
	return nil
}

// Rollback aborts the current explicit transaction.
func (s *Session) Rollback() error {
	if err := s.requireState("rollback", TxReady, Failed); err != nil {
		return err
	}
	_, err := s.exchange("ROLLBACK", message.NewRollback(), Ready, Failed)
	return err
}

// TxMode returns the mode ("r" or "w") the active transaction was
// opened with, for an external router to read back.
func (s *Session) TxMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txMode
}
