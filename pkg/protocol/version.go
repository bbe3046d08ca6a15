package protocol

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch indicates a peer announced an incompatible protocol version.
var ErrVersionMismatch = errors.New("incompatible protocol version")

// Wire protocol version. Peers that announce a different major version
// are disconnected; peers that announce none are treated as compatible.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Version is a semantic protocol version.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// CurrentVersion returns the version this build speaks.
func CurrentVersion() Version {
	return Version{Major: VersionMajor, Minor: VersionMinor, Patch: VersionPatch}
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether a peer speaking other can talk to v.
// Only the major version has to match: minor versions add optional
// handshake fields that older peers ignore.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// IsNewer returns true if v is newer than other.
func (v Version) IsNewer(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch > other.Patch
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	var v Version
	var extra string
	n, _ := fmt.Sscanf(s, "%d.%d.%d%s", &v.Major, &v.Minor, &v.Patch, &extra)
	if n != 3 {
		return Version{}, fmt.Errorf("invalid version format %q: expected major.minor.patch", s)
	}
	return v, nil
}

// CheckHandshakeVersion validates the optional version announced in a
// handshake frame against local.
func CheckHandshakeVersion(local Version, announced string) error {
	if announced == "" {
		return nil
	}
	remote, err := ParseVersion(announced)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVersionMismatch, err)
	}
	if !local.Compatible(remote) {
		return fmt.Errorf("%w: local %s, remote %s", ErrVersionMismatch, local, remote)
	}
	return nil
}
