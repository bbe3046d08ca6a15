package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionKeySize is the size of a derived session key in bytes.
	SessionKeySize = 32

	// SessionInfo is the HKDF info label for session keys. Peers must agree on it.
	SessionInfo = "p2p-chat-session"
)

// SessionKey is a 32-byte symmetric key bound to one connection.
type SessionKey []byte

// Zero overwrites the key in place.
func (k SessionKey) Zero() {
	SecureZero(k)
}

// ComputeX25519SharedSecret performs X25519 and rejects the all-zero output
// produced by low-order peer points.
func ComputeX25519SharedSecret(localPrivate []byte, remotePublic PublicKey) ([]byte, error) {
	if len(localPrivate) != X25519KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidPrivateKey, X25519KeySize, len(localPrivate))
	}

	sharedSecret, err := curve25519.X25519(localPrivate, remotePublic[:])
	if err != nil {
		// x/crypto already refuses low-order points.
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	var acc byte
	for _, b := range sharedSecret {
		acc |= b
	}
	if acc == 0 {
		return nil, fmt.Errorf("%w: low-order point", ErrInvalidPublicKey)
	}
	return sharedSecret, nil
}

// DeriveSessionKey runs X25519 between localPrivate and remotePublic and
// expands the result with HKDF-SHA256 (no salt, SessionInfo label).
// Both sides of a connection derive the same key.
func DeriveSessionKey(localPrivate []byte, remotePublic PublicKey) (SessionKey, error) {
	sharedSecret, err := ComputeX25519SharedSecret(localPrivate, remotePublic)
	if err != nil {
		return nil, err
	}
	defer SecureZero(sharedSecret)

	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(SessionInfo))
	key := make(SessionKey, SessionKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return key, nil
}

// X25519PublicFromPrivate computes the X25519 public key from a private key.
func X25519PublicFromPrivate(privateKey []byte) ([]byte, error) {
	if len(privateKey) != X25519KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidPrivateKey, X25519KeySize, len(privateKey))
	}

	publicKey, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("X25519 public key computation failed: %w", err)
	}
	return publicKey, nil
}
