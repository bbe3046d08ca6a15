package crypto

// SecureZero overwrites b with zeros. It is called on private keys, raw
// shared secrets, session keys and decrypted plaintext once they are no
// longer needed. The garbage collector may already hold copies, so this
// narrows exposure rather than eliminating it.
func SecureZero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
