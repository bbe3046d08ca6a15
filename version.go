package p2pchat

import "github.com/Alfaashh/P2PChat/pkg/protocol"

// Protocol version constants.
// The version is announced in handshakes; peers with another major
// version are disconnected.
const (
	// ProtocolVersionMajor is the major protocol version.
	// Breaking changes increment this.
	ProtocolVersionMajor = protocol.VersionMajor

	// ProtocolVersionMinor is the minor protocol version.
	// New features increment this.
	ProtocolVersionMinor = protocol.VersionMinor

	// ProtocolVersionPatch is the patch protocol version.
	// Bug fixes increment this.
	ProtocolVersionPatch = protocol.VersionPatch
)

// ProtocolVersion represents the wire protocol version.
type ProtocolVersion = protocol.Version

// CurrentVersion returns the protocol version this build speaks.
func CurrentVersion() ProtocolVersion {
	return protocol.CurrentVersion()
}

// ParseVersion parses a version string in the format "major.minor.patch".
func ParseVersion(s string) (ProtocolVersion, error) {
	return protocol.ParseVersion(s)
}

// Version returns the protocol version the node announces.
func (n *Node) Version() ProtocolVersion {
	return CurrentVersion()
}
