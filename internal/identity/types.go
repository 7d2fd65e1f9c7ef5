// Package identity manages the wallet keypair pxw signs transactions with.
// The key is a persistent ed25519 private key; its ledger address is the
// blake2b-256 hash of the scheme flag and public key. This package exposes
// an Identity abstraction for signing and verifying messages and for
// retrieving the address used as transaction sender and player key.
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// SchemeED25519 is the signature scheme flag prefixed to addresses and
// serialized signatures.
const SchemeED25519 byte = 0x00

// intentPrefix marks a signed payload as transaction data (scope 0,
// version 0, app id 0).
var intentPrefix = []byte{0, 0, 0}

// Identity represents the wallet's cryptographic identity
type Identity struct {
	privateKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	publicKeyHex string
	address      string
}

// NewIdentity creates a new Identity from a private key
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey:   privKey,
		publicKey:    pubKey,
		publicKeyHex: hex.EncodeToString(pubKey),
		address:      AddressOf(pubKey),
	}
}

// Sign signs the provided message with the identity's private key
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify verifies a signature against a message using the identity's public key
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PrivateKey returns the raw private key
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.privateKey
}

// PublicKeyHex returns the hex-encoded public key string
func (i *Identity) PublicKeyHex() string {
	return i.publicKeyHex
}

// Address returns the 0x-prefixed ledger address of this identity.
func (i *Identity) Address() string {
	return i.address
}

// SerializedSignature signs msg and returns base64(flag || sig || pubkey),
// the form the ledger RPC accepts.
func (i *Identity) SerializedSignature(msg []byte) string {
	sig := i.Sign(msg)
	buf := make([]byte, 0, 1+len(sig)+len(i.publicKey))
	buf = append(buf, SchemeED25519)
	buf = append(buf, sig...)
	buf = append(buf, i.publicKey...)
	return base64.StdEncoding.EncodeToString(buf)
}

// AddressOf derives the ledger address for an ed25519 public key.
func AddressOf(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, SchemeED25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// Digest is the blake2b-256 hash of the intent-prefixed transaction bytes.
func Digest(txBytes []byte) []byte {
	buf := make([]byte, 0, len(intentPrefix)+len(txBytes))
	buf = append(buf, intentPrefix...)
	buf = append(buf, txBytes...)
	sum := blake2b.Sum256(buf)
	return sum[:]
}
