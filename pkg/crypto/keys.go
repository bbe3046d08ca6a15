// Package crypto provides the node key pair, session-key agreement and the
// authenticated encryption used for data frames.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// X25519KeySize is the size of X25519 public and private keys in bytes.
	X25519KeySize = 32
)

// PublicKey is a raw X25519 public key. It is comparable and can be used
// as a map key.
type PublicKey [X25519KeySize]byte

// String returns the standard base64 encoding of the key.
func (p PublicKey) String() string {
	return EncodePublicKey(p)
}

// IsZero reports whether the key is all zeros.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// EncodePublicKey returns the wire form of a public key: standard base64
// of the 32 raw bytes.
func EncodePublicKey(p PublicKey) string {
	return base64.StdEncoding.EncodeToString(p[:])
}

// DecodePublicKey parses the wire form produced by EncodePublicKey.
func DecodePublicKey(text string) (PublicKey, error) {
	var p PublicKey
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != X25519KeySize {
		return p, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, X25519KeySize, len(raw))
	}
	copy(p[:], raw)
	return p, nil
}

// KeyPair is the node's X25519 key pair. The private half never leaves
// the process. KeyPair is safe for concurrent use until Close is called.
type KeyPair struct {
	private []byte
	public  PublicKey
}

// GenerateKeyPair creates a fresh X25519 key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	priv := make([]byte, X25519KeySize)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	clampX25519(priv)

	kp, err := KeyPairFromPrivate(priv)
	SecureZero(priv)
	return kp, err
}

// KeyPairFromPrivate builds a key pair from a raw 32-byte X25519 private key.
// The input is copied; the caller keeps ownership of privateKey.
func KeyPairFromPrivate(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != X25519KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, X25519KeySize, len(privateKey))
	}

	priv := make([]byte, X25519KeySize)
	copy(priv, privateKey)

	pub, err := X25519PublicFromPrivate(priv)
	if err != nil {
		SecureZero(priv)
		return nil, err
	}

	kp := &KeyPair{private: priv}
	copy(kp.public[:], pub)
	return kp, nil
}

// KeyPairFromEd25519 derives the X25519 key pair that corresponds to an
// Ed25519 identity key, so a node can keep a stable public key across
// restarts by persisting only its Ed25519 seed.
func KeyPairFromEd25519(edPriv ed25519.PrivateKey) (*KeyPair, error) {
	if err := ValidateEd25519PrivateKey(edPriv); err != nil {
		return nil, err
	}

	xPriv, err := Ed25519PrivateToX25519(edPriv)
	if err != nil {
		return nil, err
	}
	defer SecureZero(xPriv)

	kp, err := KeyPairFromPrivate(xPriv)
	if err != nil {
		return nil, err
	}

	// The Montgomery form of the Ed25519 public key must agree with the
	// public key computed from the converted scalar.
	xPub, err := Ed25519PublicToX25519(edPriv.Public().(ed25519.PublicKey))
	if err != nil {
		kp.Close()
		return nil, err
	}
	if subtle.ConstantTimeCompare(xPub, kp.public[:]) != 1 {
		kp.Close()
		return nil, fmt.Errorf("%w: Ed25519 key conversion mismatch", ErrInvalidPrivateKey)
	}
	return kp, nil
}

// PublicKey returns the public half of the pair.
func (k *KeyPair) PublicKey() PublicKey {
	return k.public
}

// DeriveSessionKey derives the session key shared with the owner of peer.
func (k *KeyPair) DeriveSessionKey(peer PublicKey) (SessionKey, error) {
	if k.private == nil {
		return nil, fmt.Errorf("%w: key pair closed", ErrKeyDerivation)
	}
	return DeriveSessionKey(k.private, peer)
}

// Close zeros the private key. The pair must not be used afterwards.
func (k *KeyPair) Close() {
	SecureZero(k.private)
	k.private = nil
}

// Ed25519PrivateToX25519 converts an Ed25519 private key to an X25519 private key:
// SHA-512 of the seed, first 32 bytes, clamped.
func Ed25519PrivateToX25519(edPriv ed25519.PrivateKey) ([]byte, error) {
	if len(edPriv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid Ed25519 private key size: expected %d, got %d",
			ed25519.PrivateKeySize, len(edPriv))
	}

	h := sha512.Sum512(edPriv[:ed25519.SeedSize])
	defer SecureZero(h[:])

	x25519Priv := make([]byte, X25519KeySize)
	copy(x25519Priv, h[:32])
	clampX25519(x25519Priv)

	return x25519Priv, nil
}

// Ed25519PublicToX25519 converts an Ed25519 public key to the equivalent
// Montgomery u-coordinate.
func Ed25519PublicToX25519(edPub ed25519.PublicKey) ([]byte, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid Ed25519 public key size: expected %d, got %d",
			ed25519.PublicKeySize, len(edPub))
	}

	edPoint, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	return edPoint.BytesMontgomery(), nil
}

// clampX25519 applies RFC 7748 clamping to a 32-byte scalar.
func clampX25519(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// ValidateEd25519PrivateKey checks the size of an Ed25519 private key.
func ValidateEd25519PrivateKey(key ed25519.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("%w: nil Ed25519 key", ErrInvalidPrivateKey)
	}
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(key))
	}
	return nil
}
