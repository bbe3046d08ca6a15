package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// An identity file holds one base64-encoded Ed25519 seed.

func writeIdentity(path string, force bool) (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return nil, err
	}
	defer f.Close()

	seed := priv.Seed()
	defer crypto.SecureZero(seed)
	if _, err := fmt.Fprintln(f, base64.StdEncoding.EncodeToString(seed)); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return priv, f.Close()
}

func readIdentity(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: not a base64 seed: %w", path, err)
	}
	defer crypto.SecureZero(seed)
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%s: seed must be %d bytes, got %d", path, ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// publicKeyFor returns the encoded X25519 public key a node started with
// priv will announce.
func publicKeyFor(priv ed25519.PrivateKey) (string, error) {
	kp, err := crypto.KeyPairFromEd25519(priv)
	if err != nil {
		return "", err
	}
	defer kp.Close()
	return crypto.EncodePublicKey(kp.PublicKey()), nil
}
