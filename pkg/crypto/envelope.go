package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope is the encrypted body of a data frame: base64 nonce and
// base64 ciphertext (tag appended).
type Envelope struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// DecodeNonce returns the raw nonce bytes. Several base64 texts decode to
// the same nonce (the decoder skips line breaks), so anything that
// compares nonces must compare these bytes, not the text.
func (e Envelope) DecodeNonce() ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(e.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce encoding: %v", ErrAuthentication, err)
	}
	return nonce, nil
}

// Payload is a decrypted application message. The reference shape is
// {"message": string, "display_name": string}; other fields pass through.
type Payload map[string]any

// String returns the string value stored under key.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Message returns the "message" field, or "" if it is absent.
func (p Payload) Message() string {
	s, _ := p.String("message")
	return s
}

// DisplayName returns the "display_name" field, or "" if it is absent.
func (p Payload) DisplayName() string {
	s, _ := p.String("display_name")
	return s
}

// MarshalPayload JSON-encodes payload and checks that it is an object.
func MarshalPayload(payload any) ([]byte, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !bytes.HasPrefix(plaintext, []byte("{")) {
		return nil, ErrInvalidPayload
	}
	return plaintext, nil
}

// EncryptPayload JSON-encodes payload and seals it under a fresh nonce.
// payload must encode as a JSON object.
func (c *Cipher) EncryptPayload(payload any) (Envelope, error) {
	plaintext, err := MarshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	defer SecureZero(plaintext)
	return c.SealEnvelope(plaintext)
}

// SealEnvelope seals an already encoded payload under a fresh nonce.
func (c *Cipher) SealEnvelope(plaintext []byte) (Envelope, error) {
	nonce, ciphertext, err := c.Seal(plaintext)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// DecryptPayload reverses EncryptPayload. It returns ErrAuthentication when
// the envelope does not verify and ErrDecode when the plaintext is not a
// JSON object.
func (c *Cipher) DecryptPayload(env Envelope) (Payload, error) {
	nonce, err := env.DecodeNonce()
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext encoding: %v", ErrAuthentication, err)
	}

	plaintext, err := c.Open(nonce, ciphertext)
	if err != nil {
		return nil, err
	}
	defer SecureZero(plaintext)

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: null payload", ErrDecode)
	}
	return payload, nil
}

// Encrypt is a one-shot EncryptPayload with a temporary cipher.
func Encrypt(suite Suite, key SessionKey, payload any) (Envelope, error) {
	c, err := NewCipher(suite, key)
	if err != nil {
		return Envelope{}, err
	}
	defer c.Close()
	return c.EncryptPayload(payload)
}

// EncryptPlaintext is a one-shot SealEnvelope with a temporary cipher.
func EncryptPlaintext(suite Suite, key SessionKey, plaintext []byte) (Envelope, error) {
	c, err := NewCipher(suite, key)
	if err != nil {
		return Envelope{}, err
	}
	defer c.Close()
	return c.SealEnvelope(plaintext)
}

// Decrypt is a one-shot DecryptPayload with a temporary cipher.
func Decrypt(suite Suite, key SessionKey, env Envelope) (Payload, error) {
	c, err := NewCipher(suite, key)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.DecryptPayload(env)
}
