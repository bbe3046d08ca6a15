package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the AEAD nonce size shared by every suite.
	NonceSize = 12

	// TagSize is the authentication tag size shared by every suite.
	TagSize = 16

	// KeySize is the key size required by every suite.
	KeySize = 32
)

// Suite selects the AEAD used for data frames. Both ends of a connection
// must use the same suite.
type Suite int

const (
	// SuiteAES256GCM is AES-256 in GCM mode. It is the default.
	SuiteAES256GCM Suite = iota

	// SuiteChaCha20Poly1305 is ChaCha20-Poly1305 (RFC 8439).
	SuiteChaCha20Poly1305
)

// String returns the suite's configuration name.
func (s Suite) String() string {
	switch s {
	case SuiteAES256GCM:
		return "aes-256-gcm"
	case SuiteChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("Suite(%d)", int(s))
	}
}

// ParseSuite maps a configuration name to a Suite.
func ParseSuite(name string) (Suite, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "aes-256-gcm", "aes256gcm", "aes":
		return SuiteAES256GCM, nil
	case "chacha20-poly1305", "chacha20poly1305", "chacha":
		return SuiteChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedSuite, name)
	}
}

// Cipher seals and opens data with one session key.
// It is safe for concurrent use until Close is called.
type Cipher struct {
	suite Suite
	aead  cipher.AEAD
	key   []byte
}

// NewCipher creates a cipher for the given suite. The key must be exactly
// 32 bytes and is copied.
func NewCipher(suite Suite, key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: expected %d bytes, got %d", KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch suite {
	case SuiteAES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case SuiteChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSuite, suite)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return &Cipher{suite: suite, aead: aead, key: keyCopy}, nil
}

// Suite returns the suite this cipher was built for.
func (c *Cipher) Suite() Suite {
	return c.suite
}

// Seal encrypts plaintext under a fresh random nonce and returns both.
// No associated data is bound.
func (c *Cipher) Seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext, err = c.SealWithNonce(nonce, plaintext)
	return nonce, ciphertext, err
}

// SealWithNonce encrypts with a caller-supplied nonce.
// Never reuse a nonce with the same key.
func (c *Cipher) SealWithNonce(nonce, plaintext []byte) ([]byte, error) {
	if c.aead == nil {
		return nil, fmt.Errorf("cipher closed")
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce size: expected %d bytes, got %d", NonceSize, len(nonce))
	}
	return c.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open verifies and decrypts ciphertext. Any failure is ErrAuthentication.
func (c *Cipher) Open(nonce, ciphertext []byte) ([]byte, error) {
	if c.aead == nil {
		return nil, fmt.Errorf("%w: cipher closed", ErrAuthentication)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrAuthentication, NonceSize, len(nonce))
	}
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrAuthentication)
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: tag mismatch", ErrAuthentication)
	}
	return plaintext, nil
}

// Close zeros this cipher's copy of the key. The AEAD implementations keep
// their own expanded key which cannot be cleared from here.
func (c *Cipher) Close() {
	if c.aead == nil {
		return
	}
	SecureZero(c.key)
	c.key = nil
	c.aead = nil
}

// IsClosed returns true if the cipher has been closed.
func (c *Cipher) IsClosed() bool {
	return c.aead == nil
}
