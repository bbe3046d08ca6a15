package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func sessionPair(t *testing.T) (SessionKey, SessionKey) {
	t.Helper()
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	ab, err := a.DeriveSessionKey(b.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	ba, err := b.DeriveSessionKey(a.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	return ab, ba
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ab, ba := sessionPair(t)

	for _, suite := range allSuites {
		t.Run(suite.String(), func(t *testing.T) {
			payload := map[string]any{"message": "hello", "display_name": "alice"}

			env, err := Encrypt(suite, ab, payload)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
			if err != nil || len(nonce) != NonceSize {
				t.Fatalf("nonce = %q, want base64 of %d bytes", env.Nonce, NonceSize)
			}

			got, err := Decrypt(suite, ba, env)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got.Message() != "hello" || got.DisplayName() != "alice" {
				t.Errorf("payload = %v", got)
			}
		})
	}
}

func TestEncrypt_FreshNonces(t *testing.T) {
	key, _ := sessionPair(t)
	c, err := NewCipher(SuiteAES256GCM, key)
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"message": "same"}
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		env, err := c.EncryptPayload(payload)
		if err != nil {
			t.Fatal(err)
		}
		if seen[env.Nonce] {
			t.Fatalf("nonce reused after %d encryptions", i)
		}
		seen[env.Nonce] = true
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	ab, _ := sessionPair(t)
	other, _ := sessionPair(t)

	env, err := Encrypt(SuiteAES256GCM, ab, map[string]any{"message": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(SuiteAES256GCM, other, env); !errors.Is(err, ErrAuthentication) {
		t.Errorf("error = %v, want ErrAuthentication", err)
	}
}

func TestDecrypt_FlippedCiphertextByte(t *testing.T) {
	ab, ba := sessionPair(t)

	env, err := Encrypt(SuiteAES256GCM, ab, map[string]any{"message": "x"})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(env.Ciphertext)
	for i := range raw {
		tampered := env
		tampered.Ciphertext = base64.StdEncoding.EncodeToString(flip(raw, i))
		if _, err := Decrypt(SuiteAES256GCM, ba, tampered); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("byte %d: error = %v, want ErrAuthentication", i, err)
		}
	}
}

func TestDecrypt_BadEncoding(t *testing.T) {
	ab, ba := sessionPair(t)
	env, err := Encrypt(SuiteAES256GCM, ab, map[string]any{"message": "x"})
	if err != nil {
		t.Fatal(err)
	}

	badNonce := env
	badNonce.Nonce = "***"
	if _, err := Decrypt(SuiteAES256GCM, ba, badNonce); !errors.Is(err, ErrAuthentication) {
		t.Errorf("bad nonce: error = %v, want ErrAuthentication", err)
	}

	badCT := env
	badCT.Ciphertext = "%%%"
	if _, err := Decrypt(SuiteAES256GCM, ba, badCT); !errors.Is(err, ErrAuthentication) {
		t.Errorf("bad ciphertext: error = %v, want ErrAuthentication", err)
	}
}

func TestDecrypt_NonObjectPlaintext(t *testing.T) {
	key, _ := sessionPair(t)
	c, err := NewCipher(SuiteAES256GCM, key)
	if err != nil {
		t.Fatal(err)
	}

	for _, plaintext := range []string{`"just a string"`, `[1,2]`, `null`, `{"broken":`, "\xff"} {
		nonce, ct, err := c.Seal([]byte(plaintext))
		if err != nil {
			t.Fatal(err)
		}
		env := Envelope{
			Nonce:      base64.StdEncoding.EncodeToString(nonce),
			Ciphertext: base64.StdEncoding.EncodeToString(ct),
		}
		if _, err := c.DecryptPayload(env); !errors.Is(err, ErrDecode) {
			t.Errorf("plaintext %q: error = %v, want ErrDecode", plaintext, err)
		}
	}
}

func TestEncrypt_RejectsNonObjectPayload(t *testing.T) {
	key, _ := sessionPair(t)
	for _, payload := range []any{"text", 42, []string{"a"}, nil, make(chan int)} {
		if _, err := Encrypt(SuiteAES256GCM, key, payload); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("payload %T: error = %v, want ErrInvalidPayload", payload, err)
		}
	}
}

func TestPayload_Accessors(t *testing.T) {
	p := Payload{"message": "hi", "display_name": 7}
	if p.Message() != "hi" {
		t.Errorf("Message() = %q", p.Message())
	}
	if p.DisplayName() != "" {
		t.Errorf("DisplayName() = %q, want empty for non-string", p.DisplayName())
	}
	if _, ok := p.String("missing"); ok {
		t.Error("String(missing) should report false")
	}
}

func TestEnvelope_DecodeNonce(t *testing.T) {
	key, _ := sessionPair(t)
	env, err := Encrypt(SuiteAES256GCM, key, map[string]any{"message": "x"})
	if err != nil {
		t.Fatal(err)
	}
	want, err := env.DecodeNonce()
	if err != nil {
		t.Fatal(err)
	}
	if len(want) != NonceSize {
		t.Fatalf("nonce is %d bytes, want %d", len(want), NonceSize)
	}

	// Line breaks are skipped by the decoder: same bytes, different text.
	split := env
	split.Nonce = env.Nonce[:4] + "\r\n" + env.Nonce[4:]
	got, err := split.DecodeNonce()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("split nonce decoded to %x, want %x", got, want)
	}
	if _, err := Decrypt(SuiteAES256GCM, key, split); err != nil {
		t.Errorf("split nonce should still decrypt: %v", err)
	}

	bad := env
	bad.Nonce = "not base64!"
	if _, err := bad.DecodeNonce(); !errors.Is(err, ErrAuthentication) {
		t.Errorf("error = %v, want ErrAuthentication", err)
	}
}
