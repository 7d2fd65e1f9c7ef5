package game

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/identity"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/logger"
	"pixelwar.app/pxw/internal/sdk"
	"pixelwar.app/pxw/internal/types"
)

// MinimumStake is the smallest stake the join form accepts, 0.1 display
// units. The contract enforces its own minimum.
const MinimumStake uint64 = 100_000_000

// Backend is what the controller needs from the SDK.
type Backend interface {
	FetchGame(ctx context.Context, gameID string) (*types.GameSnapshot, error)
	FetchPlayer(ctx context.Context, gameID, address string) (*types.PlayerSelection, error)
	BuildCreateGame(adminCapID string) *types.TransactionIntent
	BuildJoinTeam(gameID string, team types.Team, stake uint64) *types.TransactionIntent
	BuildPaintPixel(gameID string, x, y uint32) *types.TransactionIntent
	BuildBuySpeedBoost(gameID string, cost uint64) *types.TransactionIntent
	BuildClaimReward(gameID string) *types.TransactionIntent
	Submit(ctx context.Context, intent *types.TransactionIntent, signer *identity.Identity) (*ledger.TxResult, error)
	SubscribeEvents(ctx context.Context, allow []string, onEvent func(ledger.Event)) (func(), error)
}

// Recorder persists transaction outcomes and finished games.
type Recorder interface {
	RecordTx(ctx context.Context, rec journal.TxRecord) error
	RecordGameEnd(ctx context.Context, rec journal.GameRecord) error
}

// Timings holds every delay the controller uses.
type Timings struct {
	Poll           time.Duration // interval between game reads
	ReadTimeout    time.Duration // ceiling on a single read
	SubmitTimeout  time.Duration // ceiling on a single transaction
	CountdownTick  time.Duration
	CountdownTicks int
	PaintSettle    time.Duration // wait after a confirmed paint before re-reading
	JoinSettle     time.Duration
	CreateSettle   time.Duration
}

// DefaultTimings are the production delays.
func DefaultTimings() Timings {
	return Timings{
		Poll:           5 * time.Second,
		ReadTimeout:    30 * time.Second,
		SubmitTimeout:  60 * time.Second,
		CountdownTick:  time.Second,
		CountdownTicks: 5,
		PaintSettle:    1500 * time.Millisecond,
		JoinSettle:     2 * time.Second,
		CreateSettle:   2 * time.Second,
	}
}

// Options configures a Controller. Backend and Signer are required.
type Options struct {
	GameID     string
	AdminCapID string
	Network    string

	Backend Backend
	Signer  *identity.Identity
	Journal Recorder
	Feed    *logger.Logger

	Clock   clock.Clock
	Timings Timings
	Logger  *zap.Logger

	// SubscribeEvents re-reads the game whenever the contract emits an event.
	SubscribeEvents bool
	// AutoConnect connects the wallet on start.
	AutoConnect bool
}

func (o *Options) setDefaults() {
	if o.Network == "" {
		o.Network = DefaultNetwork
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Timings == (Timings{}) {
		o.Timings = DefaultTimings()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Feed == nil {
		o.Feed = logger.New(100)
	}
}

// watchedEvents are the contract events that trigger a re-read.
var watchedEvents = []string{sdk.EventPixelPainted, sdk.EventTeamJoined, sdk.EventGameCreated, sdk.EventGameEnded}
