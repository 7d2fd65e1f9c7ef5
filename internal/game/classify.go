package game

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pixelwar.app/pxw/internal/ledger"
)

// Op names a user action for error classification.
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create_game"
	OpJoin   Op = "join_team"
	OpPaint  Op = "paint_pixel"
	OpBoost  Op = "buy_speed_boost"
	OpClaim  Op = "claim_reward"
)

// ErrorKind is the user-facing category of a failed action.
type ErrorKind string

const (
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindBelowMinimumStake  ErrorKind = "below_minimum_stake"
	KindAlreadyJoined      ErrorKind = "already_joined"
	KindGameInactive       ErrorKind = "game_inactive"
	KindInvalidCoordinates ErrorKind = "invalid_coordinates"
	KindPixelShielded      ErrorKind = "pixel_shielded"
	KindNotMember          ErrorKind = "not_member"
	KindUserRejected       ErrorKind = "user_rejected"
	KindWalletNotConnected ErrorKind = "wallet_not_connected"
	KindNetworkMismatch    ErrorKind = "network_mismatch"
	KindConnectivity       ErrorKind = "connectivity"
	KindUnknown            ErrorKind = "unknown"
)

// DefaultNetwork is the network the game contract is deployed on.
const DefaultNetwork = "testnet"

// GasReserve is the gas estimate added to a stake in funding hints.
const GasReserve uint64 = 100_000_000

// Contract abort codes.
const (
	codeGameNotActive      = 1
	codeInsufficientStake  = 3
	codeAlreadyJoined      = 4
	codeInvalidCoordinates = 5
	codeNotGameMember      = 6
	codePowerUpNotActive   = 10
)

// ActionError is a classified failure of a user action.
type ActionError struct {
	Op      Op
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Cause
}

var abortCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`error code (\d+)`),
	regexp.MustCompile(`MoveAbort\(.*,\s*(\d+)\)`),
}

// abortCode extracts the contract abort code from a failure message.
func abortCode(msg string) (int, bool) {
	for _, re := range abortCodePatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

type rule struct {
	names   []string
	code    int
	kind    ErrorKind
	message string
}

func (r rule) matches(msg string, code int, hasCode bool) bool {
	for _, n := range r.names {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return r.code != 0 && hasCode && code == r.code
}

var joinRules = []rule{
	{names: []string{"EInsufficientStake"}, code: codeInsufficientStake, kind: KindBelowMinimumStake,
		message: "Insufficient stake amount. Minimum is 0.1 SUI"},
	{names: []string{"EAlreadyJoined"}, code: codeAlreadyJoined, kind: KindAlreadyJoined,
		message: "You have already joined this game"},
	{names: []string{"EGameNotActive"}, code: codeGameNotActive, kind: KindGameInactive,
		message: "Game is not active or has ended"},
}

var paintRules = []rule{
	{names: []string{"ENotGameMember"}, code: codeNotGameMember, kind: KindNotMember,
		message: "You must join a team first"},
	{names: []string{"EInvalidCoordinates"}, code: codeInvalidCoordinates, kind: KindInvalidCoordinates,
		message: "Invalid pixel coordinates"},
	{names: []string{"EGameNotActive"}, code: codeGameNotActive, kind: KindGameInactive,
		message: "Game is not active"},
	{names: []string{"EPowerUpNotActive"}, code: codePowerUpNotActive, kind: KindPixelShielded,
		message: "This pixel is shielded"},
}

// Classify maps a failed action to a user-facing error. stake is the
// attempted stake in minor units and only matters for joins.
func Classify(op Op, err error, stake uint64) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}

	msg := err.Error()
	out := &ActionError{Op: op, Kind: KindUnknown, Message: msg, Cause: err}

	switch {
	case op == OpRead:
		return classifyRead(out, err, DefaultNetwork)
	case errors.Is(err, ledger.ErrTimeout):
		out.Kind = KindConnectivity
		return out
	}

	code, hasCode := abortCode(msg)
	switch op {
	case OpJoin:
		if strings.Contains(msg, "No valid gas coins") || strings.Contains(msg, "Insufficient gas") {
			out.Kind = KindInsufficientFunds
			out.Message = fmt.Sprintf("❌ Insufficient SUI balance. You need at least %s SUI (stake + gas fees). Please get SUI from a faucet or exchange.",
				formatSui(stake+GasReserve))
			return out
		}
		if applyRules(out, joinRules, msg, code, hasCode) {
			return out
		}
	case OpPaint:
		if applyRules(out, paintRules, msg, code, hasCode) {
			return out
		}
	case OpBoost:
		out.Message = "Failed to buy power-up: " + msg
	case OpClaim:
		out.Message = "Failed to claim reward: " + msg
	case OpCreate:
		out.Message = "Failed to create new game. Admin may need to create manually."
	}

	if strings.Contains(msg, "rejected") {
		out.Kind = KindUserRejected
		if op == OpJoin || op == OpPaint {
			out.Message = "Transaction rejected by user"
		}
	}
	return out
}

func applyRules(out *ActionError, rules []rule, msg string, code int, hasCode bool) bool {
	for _, r := range rules {
		if r.matches(msg, code, hasCode) {
			out.Kind = r.kind
			out.Message = r.message
			return true
		}
	}
	return false
}

// ClassifyRead maps a failed game read. A missing object usually means the
// wallet points at another network than the one the game lives on.
func ClassifyRead(err error, network string) *ActionError {
	if err == nil {
		return nil
	}
	return classifyRead(&ActionError{Op: OpRead, Kind: KindUnknown, Message: err.Error(), Cause: err}, err, network)
}

func classifyRead(out *ActionError, err error, network string) *ActionError {
	msg := err.Error()
	switch {
	case errors.Is(err, ledger.ErrObjectNotFound) || strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found"):
		out.Kind = KindNetworkMismatch
		out.Message = "Game not found! Please make sure your wallet is connected to " + strings.ToUpper(network) + "."
	case errors.Is(err, ledger.ErrTimeout):
		out.Kind = KindConnectivity
		out.Message = "Request timeout"
	case errors.Is(err, ledger.ErrMalformedObject):
		out.Kind = KindUnknown
		out.Message = "Game object not found or invalid format"
	default:
		out.Kind = KindConnectivity
		if msg == "" {
			out.Message = "Failed to connect to blockchain"
		}
	}
	return out
}

// formatSui renders minor units as a plain decimal, e.g. 0.2.
func formatSui(minor uint64) string {
	return strconv.FormatFloat(float64(minor)/1e9, 'f', -1, 64)
}

// notConnected is returned by actions that need a connected wallet.
func notConnected(op Op) *ActionError {
	return &ActionError{Op: op, Kind: KindWalletNotConnected, Message: "Please connect your wallet first"}
}

// NetworkBanner is the warning shown when the game object is missing on
// the connected network.
func NetworkBanner(network string) string {
	return "⚠️ Required network: " + strings.ToUpper(network)
}
