package crypto

import "errors"

var (
	// ErrInvalidPublicKey indicates a public key that is not 32 bytes of
	// standard base64 or otherwise cannot be used for key agreement.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey indicates a malformed private key.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrKeyDerivation indicates the session key could not be derived.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrAuthentication indicates an envelope failed AEAD verification: the
	// ciphertext was tampered with, the key is wrong, or the nonce or
	// ciphertext text was not valid base64.
	ErrAuthentication = errors.New("authentication failed")

	// ErrDecode indicates the decrypted plaintext was not a JSON object.
	ErrDecode = errors.New("payload decode failed")

	// ErrInvalidPayload indicates a payload that does not encode as a JSON object.
	ErrInvalidPayload = errors.New("payload must be a JSON object")

	// ErrUnsupportedSuite indicates an unknown cipher suite.
	ErrUnsupportedSuite = errors.New("unsupported cipher suite")
)
