package boltwire

import (
	"fmt"
	"runtime/debug"

	"github.com/op/go-logging"
)

// RecoverToLog runs f, logging and swallowing any panic instead of
// letting it escape. Used to guard independent background work (the
// boltping CLI's one-goroutine-per-address fan-out is the one caller
// in this tree) where one unit of work crashing must not take the
// others down with it.
func RecoverToLog(f func(), log *logging.Logger) {
	defer func() {
		if x := recover(); x != nil {
			if log != nil {
				log.Error(fmt.Sprintf("run time panic: %v", x))
				log.Error(string(debug.Stack()))
			}
		}
	}()
	f()
}

// Defuncter is the one capability GuardSession needs from a session: a
// way to force it unusable after a panic interrupts one of its
// operations partway through. *session.Session satisfies this.
type Defuncter interface {
	MarkDefunct()
}

// GuardSession runs f, a single operation against sess, and converts
// any panic into a returned ProtocolError instead of letting it escape
// the goroutine. Unlike RecoverToLog, which only logs and swallows,
// GuardSession's caller gets a real error to act on, and sess is
// forced Defunct so nothing downstream mistakes a session that panicked
// mid-operation for one still safe to reuse -- a panic could have fired
// between writing a request and recording it in the pending queue,
// leaving the two out of sync.
func GuardSession(sess Defuncter, log *logging.Logger, f func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if log != nil {
				log.Error(fmt.Sprintf("run time panic: %v", x))
				log.Error(string(debug.Stack()))
			}
			sess.MarkDefunct()
			err = NewProtocolError("recovered from panic: %v", x)
		}
	}()
	return f()
}
