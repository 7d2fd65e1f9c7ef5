package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/identity"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/sdk"
	"pixelwar.app/pxw/internal/types"
)

// ErrStopped is returned by actions sent to a stopped controller.
var ErrStopped = errors.New("game controller stopped")

type msg interface{ isMsg() }

type pollResult struct {
	gen    uint64
	gameID string
	snap   *types.GameSnapshot
	err    error
	player *types.PlayerSelection
}

type pollNow struct{}

type paintReq struct {
	coord types.Coord
	reply chan error
}

type paintDone struct {
	gameID  string
	pending PendingPaint
	err     error
}

type joinReq struct {
	team  types.Team
	stake string
	reply chan error
}

type joinDone struct {
	gameID string
	team   types.Team
	stake  uint64
	err    error
}

type joinSettled struct {
	gameID string
	team   types.Team
	stake  uint64
}

type boostReq struct{ reply chan error }

type claimReq struct{ reply chan error }

type txDone struct {
	op  Op
	err error
}

type createDone struct {
	res *ledger.TxResult
	err error
}

type connectReq struct {
	connect bool
	reply   chan error
}

type dismissReq struct{ reply chan error }

type subscribeReq struct {
	ch    chan View
	reply chan error
}

type unsubscribeReq struct{ ch chan View }

type viewReq struct{ reply chan View }

func (pollResult) isMsg()     {}
func (pollNow) isMsg()        {}
func (paintReq) isMsg()       {}
func (paintDone) isMsg()      {}
func (joinReq) isMsg()        {}
func (joinDone) isMsg()       {}
func (joinSettled) isMsg()    {}
func (boostReq) isMsg()       {}
func (claimReq) isMsg()       {}
func (txDone) isMsg()         {}
func (createDone) isMsg()     {}
func (connectReq) isMsg()     {}
func (dismissReq) isMsg()     {}
func (subscribeReq) isMsg()   {}
func (unsubscribeReq) isMsg() {}
func (viewReq) isMsg()        {}

// Controller owns the game state. A single loop goroutine applies every
// user action, read result and timer tick, so State needs no locking.
type Controller struct {
	opts   Options
	clock  clock.Clock
	logger *zap.Logger

	inbox   chan msg
	ctx     context.Context
	cancel  context.CancelFunc
	started chan struct{} // closed once ctx and cancel are set
	done    chan struct{}
	start   sync.Once

	// gameMu guards gameID for GameID(); the loop is the only writer.
	gameMu sync.RWMutex
	gameID string

	// loop-owned
	state       *State
	subscribers map[chan View]struct{}
	pollTicker  *clock.Ticker
	gen         uint64
	inFlight    bool
	repoll      bool
	busy        int
	readError   bool
	endRecorded string
	unsubscribe func()
}

// New creates a controller. Call Start to run it.
func New(opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		opts:        opts,
		clock:       opts.Clock,
		logger:      opts.Logger.Named("game"),
		inbox:       make(chan msg, 64),
		started:     make(chan struct{}),
		done:        make(chan struct{}),
		gameID:      opts.GameID,
		state:       NewState(opts.Timings.CountdownTicks),
		subscribers: make(map[chan View]struct{}),
	}
}

// Start runs the loop until ctx is cancelled or Stop is called. It issues
// the first read immediately.
func (c *Controller) Start(ctx context.Context) {
	c.start.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.pollTicker = c.clock.Ticker(c.opts.Timings.Poll)
		countdown := c.clock.Ticker(c.opts.Timings.CountdownTick)

		if c.opts.AutoConnect && c.opts.Signer != nil {
			c.state.Account = c.opts.Signer.Address()
		}
		if c.opts.SubscribeEvents {
			c.subscribeEvents()
		}

		close(c.started)
		go c.loop(countdown)
	})
}

// Stop ends the loop and waits for it to exit.
func (c *Controller) Stop() {
	if !c.running() {
		return
	}
	c.cancel()
	<-c.done
}

// running reports whether Start has been called. Once it returns true, ctx
// and cancel are safe to read.
func (c *Controller) running() bool {
	select {
	case <-c.started:
		return true
	default:
		return false
	}
}

// Done is closed once the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// GameID returns the game object the controller currently follows.
func (c *Controller) GameID() string {
	c.gameMu.RLock()
	defer c.gameMu.RUnlock()
	return c.gameID
}

func (c *Controller) setGameID(id string) {
	c.gameMu.Lock()
	c.gameID = id
	c.gameMu.Unlock()
}

func (c *Controller) loop(countdown *clock.Ticker) {
	defer close(c.done)
	defer countdown.Stop()
	defer func() {
		c.pollTicker.Stop()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		for ch := range c.subscribers {
			close(ch)
		}
	}()

	c.startPoll()
	c.broadcast()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.pollTicker.C:
			c.requestPoll()
		case <-countdown.C:
			c.tick()
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

func (c *Controller) handle(m msg) {
	switch m := m.(type) {
	case pollNow:
		c.requestPoll()
	case pollResult:
		c.applyPoll(m)
	case paintReq:
		m.reply <- c.paint(m.coord)
	case paintDone:
		c.paintDone(m)
	case joinReq:
		m.reply <- c.join(m.team, m.stake)
	case joinDone:
		c.joinDone(m)
	case joinSettled:
		c.joinSettled(m)
	case boostReq:
		m.reply <- c.boost()
	case claimReq:
		m.reply <- c.claim()
	case txDone:
		c.txDone(m)
	case createDone:
		c.createDone(m)
	case connectReq:
		c.setConnected(m.connect)
		m.reply <- nil
	case dismissReq:
		c.state.Error = ""
		c.readError = false
		m.reply <- nil
	case subscribeReq:
		c.subscribers[m.ch] = struct{}{}
		m.ch <- c.view()
		m.reply <- nil
		return
	case unsubscribeReq:
		if _, ok := c.subscribers[m.ch]; ok {
			delete(c.subscribers, m.ch)
			close(m.ch)
		}
		return
	case viewReq:
		m.reply <- c.view()
		return
	}
	c.broadcast()
}

// post delivers m to the loop unless the controller has stopped.
func (c *Controller) post(m msg) {
	select {
	case c.inbox <- m:
	case <-c.ctx.Done():
	}
}

// after posts m once d has elapsed on the controller clock.
func (c *Controller) after(d time.Duration, m msg) {
	c.clock.AfterFunc(d, func() { c.post(m) })
}

func (c *Controller) request(build func(reply chan error) msg) error {
	if !c.running() {
		return ErrStopped
	}
	reply := make(chan error, 1)
	select {
	case c.inbox <- build(reply):
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) view() View {
	return buildView(c.state, c.gameID, c.opts.Network, c.busy > 0, c.clock.Now())
}

// broadcast pushes the current view to every subscriber. A subscriber that
// has not consumed the previous view gets it replaced.
func (c *Controller) broadcast() {
	if len(c.subscribers) == 0 {
		return
	}
	v := c.view()
	for ch := range c.subscribers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Polling

// requestPoll starts a read unless one is in flight, in which case another
// read follows as soon as it lands.
func (c *Controller) requestPoll() {
	if c.inFlight {
		c.repoll = true
		return
	}
	c.startPoll()
}

// startPoll issues a read that supersedes any read in flight. Only account
// and game changes call it directly.
func (c *Controller) startPoll() {
	c.gen++
	gen := c.gen
	gameID := c.gameID
	account := c.state.Account
	needPlayer := account != "" && c.state.Selection == nil
	c.inFlight = true
	c.repoll = false
	c.state.BeginLoad()

	go func() {
		ctx, cancel := c.clock.WithTimeout(c.ctx, c.opts.Timings.ReadTimeout)
		defer cancel()

		res := pollResult{gen: gen, gameID: gameID}
		res.snap, res.err = c.opts.Backend.FetchGame(ctx, gameID)
		if res.err == nil && needPlayer {
			player, err := c.opts.Backend.FetchPlayer(ctx, gameID, account)
			if err != nil {
				c.logger.Debug("player lookup failed", zap.String("account", account), zap.Error(err))
			}
			res.player = player
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && res.err != nil && !errors.Is(res.err, ledger.ErrTimeout) {
			res.err = fmt.Errorf("%v: %w", res.err, ledger.ErrTimeout)
		}
		c.post(res)
	}()
}

func (c *Controller) applyPoll(r pollResult) {
	if r.gen != c.gen || r.gameID != c.gameID {
		c.logger.Debug("dropping superseded read", zap.Uint64("gen", r.gen), zap.Uint64("current", c.gen))
		return
	}
	c.inFlight = false
	defer func() {
		if c.repoll {
			c.startPoll()
		}
	}()

	now := c.clock.Now()
	if r.err != nil {
		ae := ClassifyRead(r.err, c.opts.Network)
		c.logger.Warn("game read failed", zap.String("game", r.gameID), zap.String("kind", string(ae.Kind)), zap.Error(r.err))
		if ae.Kind == KindNetworkMismatch {
			c.state.Banner = NetworkBanner(c.opts.Network)
		}
		c.state.ApplyFallback(FallbackSnapshot(now), "⚠️ "+ae.Message)
		c.readError = true
		return
	}

	snap := CorrectClockSkew(*r.snap, now)
	if snap.StartTime != r.snap.StartTime {
		c.logger.Warn("game start time is in the future, adjusted to local clock",
			zap.Time("start", r.snap.StartTime), zap.Time("now", now))
	}
	c.state.ApplySnapshot(snap, now)
	c.state.Banner = ""
	if c.readError {
		c.state.Error = ""
		c.readError = false
	}
	if r.player != nil && c.state.Selection == nil {
		c.state.Selection = r.player
		c.logger.Info("player already joined", zap.String("team", r.player.Team.String()))
	}
	c.recordEnd(snap, now)
}

func (c *Controller) recordEnd(snap types.GameSnapshot, now time.Time) {
	if snap.IsActive && !snap.Ended(now) {
		return
	}
	if c.endRecorded == c.gameID || c.opts.Journal == nil {
		return
	}
	c.endRecorded = c.gameID
	rec := journal.GameRecord{
		GameID:     c.gameID,
		GameNumber: snap.GameNumber,
		Red:        snap.RedPixels,
		Blue:       snap.BluePixels,
		PrizePool:  snap.PrizePool,
		EndedAt:    snap.EndTime,
	}
	go func() {
		if err := c.opts.Journal.RecordGameEnd(context.Background(), rec); err != nil {
			c.logger.Warn("failed to record game end", zap.Error(err))
		}
	}()
}

// Lifecycle

func (c *Controller) tick() {
	if c.state.Phase == PhaseReady {
		c.state.Countdown.Observe(c.state.Snapshot, c.clock.Now())
		if c.state.Countdown.Tick() {
			c.createGame()
		}
	}
	c.broadcast()
}

func (c *Controller) createGame() {
	c.logger.Info("game over, creating a new game", zap.String("previous", c.gameID))
	c.busy++
	intent := c.opts.Backend.BuildCreateGame(c.opts.AdminCapID)
	signer := c.signer()
	gameID := c.gameID

	go func() {
		res, err := c.submit(OpCreate, gameID, intent, signer, 0)
		c.post(createDone{res: res, err: err})
	}()
}

func (c *Controller) createDone(m createDone) {
	c.busy--
	if m.err != nil {
		ae := Classify(OpCreate, m.err, 0)
		c.state.Error = ae.Message
		c.opts.Feed.Error(ae.Message)
		return
	}

	newID, ok := m.res.CreatedOfType(sdk.GameTypeSuffix)
	if !ok {
		c.logger.Warn("create_game succeeded without a new game object", zap.String("digest", m.res.Digest))
		return
	}

	c.logger.Info("new game created", zap.String("game", newID), zap.String("digest", m.res.Digest))
	c.setGameID(newID)
	c.gen++
	c.inFlight = false
	c.state.ResetForNewGame()
	c.after(c.opts.Timings.CreateSettle, pollNow{})
	c.opts.Feed.Info("🎮 New game created! Join a team to play!")
}

// Account

func (c *Controller) signer() *identity.Identity {
	if c.state.Account == "" {
		return nil
	}
	return c.opts.Signer
}

func (c *Controller) setConnected(connect bool) {
	account := ""
	if connect && c.opts.Signer != nil {
		account = c.opts.Signer.Address()
	}
	if account == c.state.Account {
		return
	}
	c.state.Account = account
	c.state.Selection = nil

	// restart the poll timer so only one poller runs per account
	c.pollTicker.Stop()
	c.pollTicker = c.clock.Ticker(c.opts.Timings.Poll)
	c.startPoll()
}

// Actions

func (c *Controller) fail(ae *ActionError) error {
	c.state.Error = ae.Message
	c.readError = false
	return ae
}

func (c *Controller) paint(coord types.Coord) error {
	team := c.state.Team()
	if c.state.Account == "" || !team.Valid() {
		return c.fail(&ActionError{Op: OpPaint, Kind: KindNotMember, Message: "Please join a team first"})
	}
	if c.state.HasSnapshot() && !c.state.Snapshot.Contains(coord) {
		return c.fail(&ActionError{Op: OpPaint, Kind: KindInvalidCoordinates, Message: "Invalid pixel coordinates"})
	}

	pending := c.state.ApplyPaint(coord, team, c.state.Account)
	intent := c.opts.Backend.BuildPaintPixel(c.gameID, coord.X, coord.Y)
	signer := c.signer()
	gameID := c.gameID

	go func() {
		_, err := c.submit(OpPaint, gameID, intent, signer, 0)
		c.post(paintDone{gameID: gameID, pending: pending, err: err})
	}()
	return nil
}

func (c *Controller) paintDone(m paintDone) {
	if m.err == nil {
		c.after(c.opts.Timings.PaintSettle, pollNow{})
		return
	}

	ae := Classify(OpPaint, m.err, 0)
	if m.gameID == c.gameID {
		c.state.RevertPaint(m.pending)
		if ae.Kind == KindNotMember {
			c.state.Selection = nil
		}
	}
	c.fail(ae)
}

func (c *Controller) join(team types.Team, stakeText string) error {
	if c.state.Account == "" {
		return c.fail(notConnected(OpJoin))
	}
	if !team.Valid() {
		return c.fail(&ActionError{Op: OpJoin, Kind: KindUnknown, Message: "Unknown team"})
	}
	stake, err := sdk.ParseMinorUnits(stakeText)
	if err != nil || stake < MinimumStake {
		return c.fail(&ActionError{Op: OpJoin, Kind: KindBelowMinimumStake, Message: "Minimum stake amount is 0.1 SUI"})
	}

	c.state.Error = ""
	c.busy++
	intent := c.opts.Backend.BuildJoinTeam(c.gameID, team, stake)
	signer := c.signer()
	gameID := c.gameID

	go func() {
		_, err := c.submit(OpJoin, gameID, intent, signer, stake)
		c.post(joinDone{gameID: gameID, team: team, stake: stake, err: err})
	}()
	return nil
}

func (c *Controller) joinDone(m joinDone) {
	if m.err == nil {
		c.after(c.opts.Timings.JoinSettle, joinSettled{gameID: m.gameID, team: m.team, stake: m.stake})
		return
	}

	c.busy--
	ae := Classify(OpJoin, m.err, m.stake)
	if ae.Kind == KindAlreadyJoined && m.gameID == c.gameID {
		c.state.Selection = &types.PlayerSelection{Team: m.team}
	}
	c.fail(ae)
}

func (c *Controller) joinSettled(m joinSettled) {
	c.busy--
	if m.gameID != c.gameID {
		return
	}
	c.state.Selection = &types.PlayerSelection{Team: m.team, StakeAmount: m.stake}
	c.requestPoll()
	c.opts.Feed.Info(fmt.Sprintf("✅ Successfully joined %s team!", m.team.Label()))
}

func (c *Controller) boost() error {
	if c.state.Account == "" {
		return c.fail(notConnected(OpBoost))
	}
	intent := c.opts.Backend.BuildBuySpeedBoost(c.gameID, sdk.SpeedBoostCost)
	c.spawn(OpBoost, intent)
	return nil
}

func (c *Controller) claim() error {
	if c.state.Account == "" {
		return c.fail(notConnected(OpClaim))
	}
	c.busy++
	intent := c.opts.Backend.BuildClaimReward(c.gameID)
	c.spawn(OpClaim, intent)
	return nil
}

func (c *Controller) spawn(op Op, intent *types.TransactionIntent) {
	signer := c.signer()
	gameID := c.gameID
	go func() {
		_, err := c.submit(op, gameID, intent, signer, 0)
		c.post(txDone{op: op, err: err})
	}()
}

func (c *Controller) txDone(m txDone) {
	if m.op == OpClaim {
		c.busy--
	}
	if m.err != nil {
		ae := Classify(m.op, m.err, 0)
		c.fail(ae)
		c.opts.Feed.Error(ae.Message)
		return
	}

	switch m.op {
	case OpBoost:
		c.opts.Feed.Info("Speed Boost activated for 30 seconds!")
	case OpClaim:
		c.opts.Feed.Info("Reward claimed successfully!")
		c.requestPoll()
	}
}

// submit signs and executes intent, bounded by the submit timeout, and
// journals the outcome. It runs off the loop.
func (c *Controller) submit(op Op, gameID string, intent *types.TransactionIntent, signer *identity.Identity, stake uint64) (*ledger.TxResult, error) {
	ctx, cancel := c.clock.WithTimeout(c.ctx, c.opts.Timings.SubmitTimeout)
	defer cancel()

	res, err := c.opts.Backend.Submit(ctx, intent, signer)
	if err == nil && res == nil {
		err = errors.New("empty transaction result")
	}

	rec := journal.TxRecord{Kind: string(op), GameID: gameID, Status: journal.StatusSuccess, CreatedAt: c.clock.Now()}
	if err != nil {
		rec.Status = journal.StatusFailure
		rec.Message = Classify(op, err, stake).Message
		c.logger.Warn("transaction failed", zap.String("op", string(op)), zap.Error(err))
	} else {
		rec.Digest = res.Digest
		c.logger.Info("transaction confirmed", zap.String("op", string(op)), zap.String("digest", res.Digest))
	}
	if c.opts.Journal != nil {
		if jerr := c.opts.Journal.RecordTx(context.Background(), rec); jerr != nil {
			c.logger.Warn("failed to journal transaction", zap.Error(jerr))
		}
	}
	return res, err
}

// Events

func (c *Controller) subscribeEvents() {
	unsubscribe, err := c.opts.Backend.SubscribeEvents(c.ctx, watchedEvents, func(ev ledger.Event) {
		c.logger.Debug("contract event", zap.String("type", ev.Type))
		c.post(pollNow{})
	})
	if err != nil {
		c.logger.Warn("event subscription unavailable, relying on polling", zap.Error(err))
		return
	}
	c.unsubscribe = unsubscribe
}

// Public API

// Paint optimistically paints (x, y) for the player's team and submits the
// transaction. A rejection reverts the pixel and the counters.
func (c *Controller) Paint(x, y uint32) error {
	return c.request(func(reply chan error) msg {
		return paintReq{coord: types.Coord{X: x, Y: y}, reply: reply}
	})
}

// JoinTeam stakes the display amount stake on team.
func (c *Controller) JoinTeam(team types.Team, stake string) error {
	return c.request(func(reply chan error) msg {
		return joinReq{team: team, stake: stake, reply: reply}
	})
}

// BuySpeedBoost buys the speed boost power-up.
func (c *Controller) BuySpeedBoost() error {
	return c.request(func(reply chan error) msg { return boostReq{reply: reply} })
}

// ClaimReward claims the player's share of a finished game.
func (c *Controller) ClaimReward() error {
	return c.request(func(reply chan error) msg { return claimReq{reply: reply} })
}

// Connect enables signing with the process wallet.
func (c *Controller) Connect() error {
	return c.request(func(reply chan error) msg { return connectReq{connect: true, reply: reply} })
}

// Disconnect disables signing and forgets the team selection.
func (c *Controller) Disconnect() error {
	return c.request(func(reply chan error) msg { return connectReq{connect: false, reply: reply} })
}

// DismissError clears the error banner.
func (c *Controller) DismissError() error {
	return c.request(func(reply chan error) msg { return dismissReq{reply: reply} })
}

// Refresh reads the game now.
func (c *Controller) Refresh() {
	if c.running() {
		c.post(pollNow{})
	}
}

// View returns the current view.
func (c *Controller) View() (View, error) {
	if !c.running() {
		return View{}, ErrStopped
	}
	reply := make(chan View, 1)
	select {
	case c.inbox <- viewReq{reply: reply}:
	case <-c.done:
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return View{}, ErrStopped
	}
}

// Subscribe returns a channel of views, starting with the current one, and
// a function that ends the subscription. Slow readers only see the latest
// view. The channel is closed when the controller stops.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	if err := c.request(func(reply chan error) msg { return subscribeReq{ch: ch, reply: reply} }); err != nil {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case c.inbox <- unsubscribeReq{ch: ch}:
			case <-c.done:
			}
		})
	}
}
