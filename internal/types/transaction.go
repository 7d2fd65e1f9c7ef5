package types

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pixelwar.app/pxw/internal/identity"
)

// ArgumentKind identifies how a call argument is resolved by the ledger.
type ArgumentKind string

const (
	ArgObject ArgumentKind = "object" // shared or owned object by id
	ArgU8     ArgumentKind = "u8"
	ArgU32    ArgumentKind = "u32"
	ArgU64    ArgumentKind = "u64"
	ArgResult ArgumentKind = "result" // output of an earlier command
)

// Argument is a single positional argument of a MoveCall or SplitCoins.
type Argument struct {
	Kind     ArgumentKind `json:"kind"`
	ObjectID string       `json:"object_id,omitempty"`
	Value    uint64       `json:"value"`
	Command  int          `json:"command,omitempty"`
}

// ObjectArg references an object by id.
func ObjectArg(id string) Argument { return Argument{Kind: ArgObject, ObjectID: id} }

// U8Arg is a pure u8 argument.
func U8Arg(v uint8) Argument { return Argument{Kind: ArgU8, Value: uint64(v)} }

// U32Arg is a pure u32 argument.
func U32Arg(v uint32) Argument { return Argument{Kind: ArgU32, Value: uint64(v)} }

// U64Arg is a pure u64 argument.
func U64Arg(v uint64) Argument { return Argument{Kind: ArgU64, Value: v} }

// ResultArg refers to the output of command index i.
func ResultArg(i int) Argument { return Argument{Kind: ArgResult, Command: i} }

// SplitCoinsCommand splits Amount minor units off the gas coin.
type SplitCoinsCommand struct {
	Amounts []Argument `json:"amounts"`
}

// MoveCallCommand invokes a contract entry point.
type MoveCallCommand struct {
	Package   string     `json:"package"`
	Module    string     `json:"module"`
	Function  string     `json:"function"`
	Arguments []Argument `json:"arguments"`
}

// Target returns the fully qualified entry point, package::module::function.
func (m MoveCallCommand) Target() string {
	return m.Package + "::" + m.Module + "::" + m.Function
}

// Command is one step of a transaction. Exactly one field is set.
type Command struct {
	SplitCoins *SplitCoinsCommand `json:"SplitCoins,omitempty"`
	MoveCall   *MoveCallCommand   `json:"MoveCall,omitempty"`
}

// TransactionIntent is an unsigned transaction built by the SDK. A zero
// GasBudget leaves the budget to the wallet.
type TransactionIntent struct {
	Sender    string    `json:"sender,omitempty"`
	Commands  []Command `json:"commands"`
	GasBudget uint64    `json:"gas_budget,omitempty"`
}

// MoveCall returns the first move call of the intent, or nil.
func (t *TransactionIntent) MoveCall() *MoveCallCommand {
	for _, c := range t.Commands {
		if c.MoveCall != nil {
			return c.MoveCall
		}
	}
	return nil
}

// EntryPoint is the function name of the intent's move call.
func (t *TransactionIntent) EntryPoint() string {
	if mc := t.MoveCall(); mc != nil {
		return mc.Function
	}
	return ""
}

// SignedTransaction carries the encoded intent and its serialized
// signatures, ready for sui_executeTransactionBlock.
type SignedTransaction struct {
	TxBytes    []byte   `json:"tx_bytes"`
	Signatures []string `json:"signatures"`
}

// Sign encodes the intent with the signer's address as sender and signs its
// digest.
func (t *TransactionIntent) Sign(id *identity.Identity) (*SignedTransaction, error) {
	if id == nil {
		return nil, errors.New("no signer")
	}
	if len(t.Commands) == 0 {
		return nil, errors.New("empty transaction")
	}
	t.Sender = id.Address()

	txBytes, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	sig := id.SerializedSignature(identity.Digest(txBytes))
	return &SignedTransaction{
		TxBytes:    txBytes,
		Signatures: []string{sig},
	}, nil
}

// Verify checks every signature against the digest of TxBytes.
func (s *SignedTransaction) Verify() bool {
	if len(s.Signatures) == 0 {
		return false
	}
	digest := identity.Digest(s.TxBytes)
	for _, sig := range s.Signatures {
		raw, err := base64.StdEncoding.DecodeString(sig)
		if err != nil || len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
			return false
		}
		if raw[0] != identity.SchemeED25519 {
			return false
		}
		signature := raw[1 : 1+ed25519.SignatureSize]
		pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
		if !ed25519.Verify(pub, digest, signature) {
			return false
		}
	}
	return true
}

// GetIntent decodes the intent carried in TxBytes.
func (s *SignedTransaction) GetIntent() (*TransactionIntent, error) {
	var t TransactionIntent
	if err := json.Unmarshal(s.TxBytes, &t); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &t, nil
}

// EncodedTx is TxBytes in the base64 form the RPC expects.
func (s *SignedTransaction) EncodedTx() string {
	return base64.StdEncoding.EncodeToString(s.TxBytes)
}

// ObjectTypeSuffix trims a fully qualified type tag down to its last
// segment, e.g. "0xabc::pixel_war::PixelPainted" -> "PixelPainted".
func ObjectTypeSuffix(typ string) string {
	if i := strings.LastIndex(typ, "::"); i >= 0 {
		return typ[i+2:]
	}
	return typ
}
