package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveSessionKey_Symmetric(t *testing.T) {
	for i := 0; i < 16; i++ {
		a := mustKeyPair(t)
		b := mustKeyPair(t)

		ab, err := a.DeriveSessionKey(b.PublicKey())
		if err != nil {
			t.Fatalf("a->b derivation failed: %v", err)
		}
		ba, err := b.DeriveSessionKey(a.PublicKey())
		if err != nil {
			t.Fatalf("b->a derivation failed: %v", err)
		}

		if len(ab) != SessionKeySize {
			t.Fatalf("session key size = %d, want %d", len(ab), SessionKeySize)
		}
		if !bytes.Equal(ab, ba) {
			t.Fatalf("session keys differ:\n a->b %x\n b->a %x", []byte(ab), []byte(ba))
		}
	}
}

func TestDeriveSessionKey_DistinctPeers(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	c := mustKeyPair(t)

	ab, err := a.DeriveSessionKey(b.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	ac, err := a.DeriveSessionKey(c.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(ab, ac) {
		t.Error("different peers produced the same session key")
	}
}

func TestDeriveSessionKey_Deterministic(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	k1, err := a.DeriveSessionKey(b.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	k2, err := a.DeriveSessionKey(b.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic")
	}
}

func TestDeriveSessionKey_RejectsLowOrderPoint(t *testing.T) {
	a := mustKeyPair(t)

	var zero PublicKey
	if _, err := a.DeriveSessionKey(zero); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("error = %v, want ErrInvalidPublicKey", err)
	}

	var one PublicKey
	one[0] = 1
	if _, err := a.DeriveSessionKey(one); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("error = %v, want ErrInvalidPublicKey", err)
	}
}

func TestComputeX25519SharedSecret_InvalidPrivate(t *testing.T) {
	b := mustKeyPair(t)
	if _, err := ComputeX25519SharedSecret(make([]byte, 31), b.PublicKey()); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("error = %v, want ErrInvalidPrivateKey", err)
	}
}

func TestX25519PublicFromPrivate(t *testing.T) {
	kp := mustKeyPair(t)

	pub, err := X25519PublicFromPrivate(kp.private)
	if err != nil {
		t.Fatalf("X25519PublicFromPrivate failed: %v", err)
	}
	if !bytes.Equal(pub, kp.public[:]) {
		t.Error("public key mismatch")
	}

	if _, err := X25519PublicFromPrivate(make([]byte, 16)); err == nil {
		t.Error("expected error for short private key")
	}
}
