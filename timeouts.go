package boltwire

import "time"

// Timeouts bounds the read/write deadlines the session applies at each
// phase of a request/response exchange. Expiry of any deadline becomes
// a TransportError and marks the session Defunct; the caller must not
// attempt recovery on the same session.
type Timeouts struct {
	Handshake time.Duration
	Auth      time.Duration
	Run       time.Duration
	Pull      time.Duration
}

// DefaultTimeouts returns one duration per protocol phase, each sized
// to the work that phase typically does: the handshake is a fixed
// 20-byte exchange, auth may involve a remote credential check, and
// pulling a large result can legitimately take longer than running it.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake: 5 * time.Second,
		Auth:      10 * time.Second,
		Run:       30 * time.Second,
		Pull:      60 * time.Second,
	}
}

// Options configures a Session. UserAgent is sent in INIT/HELLO;
// OfferedVersions is the up-to-four-entry list sent during the
// handshake, preferred first.
type Options struct {
	UserAgent       string
	OfferedVersions [4]uint32
	Timeouts        Timeouts
}

// DefaultOptions returns sane defaults: the three supported versions
// offered preferred-first, zero-padded to four entries, and the
// package's default timeouts.
func DefaultOptions(userAgent string) Options {
	return Options{
		UserAgent:       userAgent,
		OfferedVersions: DefaultOfferedVersions(),
		Timeouts:        DefaultTimeouts(),
	}
}
