package boltwire

import (
	"strings"

	"github.com/blang/semver"
)

// Version is a negotiated protocol version. Only 1, 2, and 3 are
// offered by this client; 0 means "handshake not yet performed".
type Version uint32

const (
	VersionNone Version = 0
	Version1    Version = 1
	Version2    Version = 2
	Version3    Version = 3
)

// HandshakeMagic is the 4-byte preamble sent before the version
// proposal list. It is the same across every version this client
// speaks, so it is a single package-level value; VersionProfile does
// not carry it.
var HandshakeMagic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// DefaultOfferedVersions is sent preferred-first, padded to four
// entries with zeros, per the handshake wire format.
func DefaultOfferedVersions() [4]uint32 {
	return [4]uint32{uint32(Version3), uint32(Version2), uint32(Version1), 0}
}

// VersionProfile answers the version-dependent questions C2-C4 and C7
// need: whether temporal/spatial values, transactions, and HELLO/GOODBYE
// are supported. It holds no list of legal request signatures and no
// handshake magic.
type VersionProfile struct {
	Version               Version
	SupportsTemporalSpace bool
	SupportsTransactions  bool
	SupportsHelloGoodbye  bool // v3 HELLO/GOODBYE vs v1/v2 INIT/ACK_FAILURE
}

var versionProfiles = map[Version]VersionProfile{
	Version1: {Version: Version1, SupportsTemporalSpace: false, SupportsTransactions: false, SupportsHelloGoodbye: false},
	Version2: {Version: Version2, SupportsTemporalSpace: true, SupportsTransactions: false, SupportsHelloGoodbye: false},
	Version3: {Version: Version3, SupportsTemporalSpace: true, SupportsTransactions: true, SupportsHelloGoodbye: true},
}

// ProfileFor returns the dispatch profile for a negotiated version, or
// a ProtocolError if the version is not one this client understands.
func ProfileFor(v Version) (VersionProfile, error) {
	profile, ok := versionProfiles[v]
	if !ok {
		return VersionProfile{}, NewProtocolError("unsupported negotiated version %d", v)
	}
	return profile, nil
}

// ParseServerVersion extracts a semver.Version from a server-reported
// agent string such as "graphdb/4.4.10", for callers that want to gate
// behavior on the server's version rather than a raw string compare.
// Returns a zero Version and a non-nil error if no semver-shaped
// suffix is found.
func ParseServerVersion(agentString string) (semver.Version, error) {
	idx := strings.LastIndex(agentString, "/")
	if idx == -1 || idx+1 >= len(agentString) {
		return semver.Version{}, NewDecodeError("server agent string %q has no version suffix", agentString)
	}
	return semver.Parse(agentString[idx+1:])
}
