// Package protocol defines the wire frames exchanged between peers and the
// newline-delimited JSON codec that carries them over a TCP stream.
package protocol

import (
	"fmt"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// Frame types.
const (
	TypeHandshake = "handshake"
	TypeData      = "data"
)

// Frame is one line on the wire. Handshake frames use PublicKey and, when
// the sender supports it, Version. Data frames use Nonce and Ciphertext.
// Unknown fields are ignored and unknown types are skipped by receivers.
type Frame struct {
	Type       string `json:"type"`
	PublicKey  string `json:"public_key,omitempty"`
	Version    string `json:"version,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
}

// NewHandshake builds the handshake frame announcing pub. An empty version
// is omitted from the wire.
func NewHandshake(pub crypto.PublicKey, version string) Frame {
	return Frame{
		Type:      TypeHandshake,
		PublicKey: crypto.EncodePublicKey(pub),
		Version:   version,
	}
}

// NewData wraps an encrypted envelope in a data frame.
func NewData(env crypto.Envelope) Frame {
	return Frame{
		Type:       TypeData,
		Nonce:      env.Nonce,
		Ciphertext: env.Ciphertext,
	}
}

// Envelope returns the encrypted body of a data frame.
func (f Frame) Envelope() crypto.Envelope {
	return crypto.Envelope{Nonce: f.Nonce, Ciphertext: f.Ciphertext}
}

// HasPublicKey reports whether a handshake frame carries a key at all.
// Handshakes without one are ignored.
func (f Frame) HasPublicKey() bool {
	return f.PublicKey != ""
}

// RemoteKey decodes the public key carried by a handshake frame.
func (f Frame) RemoteKey() (crypto.PublicKey, error) {
	if f.Type != TypeHandshake {
		return crypto.PublicKey{}, fmt.Errorf("%w: %q frame has no public key", ErrMalformedFrame, f.Type)
	}
	return crypto.DecodePublicKey(f.PublicKey)
}
