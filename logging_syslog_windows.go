//go:build windows
// +build windows

package boltwire

import "github.com/op/go-logging"

// getSyslogBackend has no syslog analogue on Windows; SetupLogging
// falls back to the stderr backend.
func getSyslogBackend(prefix string) logging.Backend {
	return nil
}
