package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const pemType = "PRIVATE KEY"

// LoadOrCreateIdentity returns the wallet stored at keyPath. A missing or
// empty file gets a fresh key, written as PKCS8 PEM with mode 0600.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	data, err := os.ReadFile(keyPath)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		priv, err := createWalletKey(keyPath)
		if err != nil {
			return nil, fmt.Errorf("create wallet key %s: %w", keyPath, err)
		}
		return NewIdentity(priv), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet key %s: %w", keyPath, err)
	}

	priv, err := parseWalletKey(data)
	if err != nil {
		return nil, fmt.Errorf("wallet key %s: %w", keyPath, err)
	}
	return NewIdentity(priv), nil
}

// FromSeedHex builds an identity from a hex-encoded 32-byte ed25519 seed,
// for wallets exported from other tooling.
func FromSeedHex(seedHex string) (*Identity, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(seedHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return NewIdentity(ed25519.NewKeyFromSeed(seed)), nil
}

func createWalletKey(keyPath string) (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	out := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der})
	if err := os.WriteFile(keyPath, out, 0o600); err != nil {
		return nil, err
	}
	// WriteFile keeps the mode of an existing empty file
	if err := os.Chmod(keyPath, 0o600); err != nil {
		return nil, err
	}
	return priv, nil
}

func parseWalletKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, errors.New("no PKCS8 PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, want ed25519", key)
	}
	return priv, nil
}
