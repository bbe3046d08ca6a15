package p2pchat

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidatePort checks that port fits in a TCP port number. Zero is
// accepted for listeners and means any free port.
func ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

// ValidateHost checks that host is non-empty and contains no port or
// whitespace.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if strings.ContainsAny(host, " \t\r\n/") {
		return fmt.Errorf("%w: invalid character in host %q", ErrInvalidAddress, host)
	}
	if strings.Count(host, ":") == 1 {
		return fmt.Errorf("%w: host %q must not include a port", ErrInvalidAddress, host)
	}
	return nil
}

// ParsePeerAddress splits "host:port" for Connect. Bracketed IPv6
// literals are accepted. Port zero is rejected.
func ParsePeerAddress(addr string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := ValidateHost(host); err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: port %q is not a number", ErrInvalidAddress, portStr)
	}
	if port == 0 {
		return "", 0, fmt.Errorf("%w: 0", ErrInvalidPort)
	}
	if err := ValidatePort(port); err != nil {
		return "", 0, err
	}
	return host, port, nil
}
