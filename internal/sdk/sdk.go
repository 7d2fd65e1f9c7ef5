// Package sdk is the typed façade over the pixel_war contract. It turns
// ledger objects into snapshots and domain operations into transaction
// intents. It never checks game rules; the contract does.
package sdk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/identity"
	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/types"
)

// Module is the contract module every entry point lives in.
const Module = "pixel_war"

// DefaultClockID is the shared clock object passed to every entry point.
const DefaultClockID = "0x6"

// DefaultGasBudget is the explicit budget carried by create, join, paint,
// bomb and shield calls.
const DefaultGasBudget uint64 = 10_000_000

// Default power-up prices in minor units.
const (
	SpeedBoostCost uint64 = 50_000_000
	BombCost       uint64 = 100_000_000
	ShieldCost     uint64 = 150_000_000
)

// GameTypeSuffix identifies a created Game object in transaction results.
const GameTypeSuffix = "::" + Module + "::Game"

// Ledger is the subset of the ledger client the SDK reads and writes through.
type Ledger interface {
	GetObject(ctx context.Context, id string) (*ledger.ObjectData, error)
	GetDynamicFieldObject(ctx context.Context, parent string, name ledger.DynamicFieldName) (*ledger.ObjectData, error)
	ExecuteTransaction(ctx context.Context, signed *types.SignedTransaction) (*ledger.TxResult, error)
}

// Config names the deployed contract.
type Config struct {
	PackageID string
	ClockID   string
}

// Client is the SDK entry point. It is safe for concurrent use.
type Client struct {
	cfg    Config
	ledger Ledger
	events *ledger.Client
	logger *zap.Logger
}

// New creates an SDK client. events may be nil, in which case
// SubscribeEvents reports an error.
func New(cfg Config, l Ledger, events *ledger.Client, logger *zap.Logger) *Client {
	if cfg.ClockID == "" {
		cfg.ClockID = DefaultClockID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, ledger: l, events: events, logger: logger.Named("sdk")}
}

// PackageID returns the contract package the client targets.
func (c *Client) PackageID() string {
	return c.cfg.PackageID
}

// FetchGame reads the game object and decodes it into a snapshot.
func (c *Client) FetchGame(ctx context.Context, gameID string) (*types.GameSnapshot, error) {
	obj, err := c.ledger.GetObject(ctx, gameID)
	if err != nil {
		return nil, err
	}
	snap, err := ledger.DecodeGame(obj.Content.Fields)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	return &snap, nil
}

// FetchGameOrNil is FetchGame that reports any failure as an absent game.
func (c *Client) FetchGameOrNil(ctx context.Context, gameID string) *types.GameSnapshot {
	snap, err := c.FetchGame(ctx, gameID)
	if err != nil {
		c.logger.Debug("fetch game failed", zap.String("game", gameID), zap.Error(err))
		return nil
	}
	return snap
}

// FetchPlayer reads the side record the contract keeps for address. A
// player that never joined yields (nil, nil).
func (c *Client) FetchPlayer(ctx context.Context, gameID, address string) (*types.PlayerSelection, error) {
	obj, err := c.ledger.GetDynamicFieldObject(ctx, gameID, ledger.DynamicFieldName{Type: "address", Value: address})
	if errors.Is(err, ledger.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sel, err := ledger.DecodePlayer(obj.Content.Fields)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", address, err)
	}
	return &sel, nil
}

// Submit signs intent with signer and executes it.
func (c *Client) Submit(ctx context.Context, intent *types.TransactionIntent, signer *identity.Identity) (*ledger.TxResult, error) {
	signed, err := intent.Sign(signer)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("submitting transaction", zap.String("entry", intent.EntryPoint()), zap.String("sender", intent.Sender))
	return c.ledger.ExecuteTransaction(ctx, signed)
}

func (c *Client) call(function string, gas uint64, args ...types.Argument) *types.TransactionIntent {
	return &types.TransactionIntent{
		Commands: []types.Command{{MoveCall: &types.MoveCallCommand{
			Package:   c.cfg.PackageID,
			Module:    Module,
			Function:  function,
			Arguments: args,
		}}},
		GasBudget: gas,
	}
}

// withPayment prefixes intent with a split of amount off the gas coin. The
// move call refers to the new coin as ResultArg(0).
func withPayment(intent *types.TransactionIntent, amount uint64) {
	split := types.Command{SplitCoins: &types.SplitCoinsCommand{Amounts: []types.Argument{types.U64Arg(amount)}}}
	intent.Commands = append([]types.Command{split}, intent.Commands...)
}

func (c *Client) clock() types.Argument {
	return types.ObjectArg(c.cfg.ClockID)
}

// BuildCreateGame calls create_game(adminCap, clock).
func (c *Client) BuildCreateGame(adminCapID string) *types.TransactionIntent {
	return c.call("create_game", DefaultGasBudget, types.ObjectArg(adminCapID), c.clock())
}

// BuildJoinTeam calls join_team(game, team, stake, clock) paying stake
// minor units.
func (c *Client) BuildJoinTeam(gameID string, team types.Team, stake uint64) *types.TransactionIntent {
	intent := c.call("join_team", DefaultGasBudget,
		types.ObjectArg(gameID), types.U8Arg(uint8(team)), types.ResultArg(0), c.clock())
	withPayment(intent, stake)
	return intent
}

// BuildPaintPixel calls paint_pixel(game, x, y, clock).
func (c *Client) BuildPaintPixel(gameID string, x, y uint32) *types.TransactionIntent {
	return c.call("paint_pixel", DefaultGasBudget,
		types.ObjectArg(gameID), types.U32Arg(x), types.U32Arg(y), c.clock())
}

// BuildBuySpeedBoost calls buy_speed_boost(game, coin, clock).
func (c *Client) BuildBuySpeedBoost(gameID string, cost uint64) *types.TransactionIntent {
	intent := c.call("buy_speed_boost", 0, types.ObjectArg(gameID), types.ResultArg(0), c.clock())
	withPayment(intent, cost)
	return intent
}

// BuildBuyBomb calls buy_bomb(game, coin, x, y, clock).
func (c *Client) BuildBuyBomb(gameID string, x, y uint32, cost uint64) *types.TransactionIntent {
	intent := c.call("buy_bomb", DefaultGasBudget,
		types.ObjectArg(gameID), types.ResultArg(0), types.U32Arg(x), types.U32Arg(y), c.clock())
	withPayment(intent, cost)
	return intent
}

// BuildBuyShield calls buy_shield(game, coin, x, y, clock).
func (c *Client) BuildBuyShield(gameID string, x, y uint32, cost uint64) *types.TransactionIntent {
	intent := c.call("buy_shield", DefaultGasBudget,
		types.ObjectArg(gameID), types.ResultArg(0), types.U32Arg(x), types.U32Arg(y), c.clock())
	withPayment(intent, cost)
	return intent
}

// BuildClaimReward calls claim_reward(game, clock).
func (c *Client) BuildClaimReward(gameID string) *types.TransactionIntent {
	return c.call("claim_reward", 0, types.ObjectArg(gameID), c.clock())
}
