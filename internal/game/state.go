// Package game is the client-side state controller for a pixel war game.
// It mirrors the ledger's game object, applies optimistic pixel paints
// with exact rollback, watches the game lifecycle to trigger a new game,
// and classifies contract rejections into user-facing messages. The
// contract remains the source of truth for every rule.
package game

import (
	"time"

	"pixelwar.app/pxw/internal/types"
)

// Phase is the lifecycle of the current-game slot.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseErrorFallback
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseErrorFallback:
		return "error_fallback"
	default:
		return "uninitialized"
	}
}

// PendingPaint records one optimistic paint so it can be reverted exactly.
// The deltas are the amounts actually applied to the counters.
type PendingPaint struct {
	Coord       types.Coord
	Mark        types.PixelMark
	Previous    types.PixelMark
	HadPrevious bool
	RedDelta    int
	BlueDelta   int
}

// State is the controller's single-owner model. It is not safe for
// concurrent use; the controller loop is its only writer.
type State struct {
	Phase     Phase
	Snapshot  types.GameSnapshot
	Pixels    map[types.Coord]types.PixelMark
	Red       uint64
	Blue      uint64
	Selection *types.PlayerSelection
	Account   string
	Error     string
	Banner    string
	Countdown Countdown
}

// NewState returns an empty, uninitialized state.
func NewState(countdownTicks int) *State {
	return &State{
		Phase:     PhaseUninitialized,
		Pixels:    make(map[types.Coord]types.PixelMark),
		Countdown: NewCountdown(countdownTicks),
	}
}

// BeginLoad marks a poll in flight. A state that already shows a snapshot
// keeps showing it.
func (s *State) BeginLoad() {
	if s.Phase == PhaseUninitialized {
		s.Phase = PhaseLoading
	}
}

// HasSnapshot reports whether any snapshot, real or synthetic, is shown.
func (s *State) HasSnapshot() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseErrorFallback
}

// ApplySnapshot installs a confirmed snapshot. The counters are reset to
// its counts; the pixel cache is kept.
func (s *State) ApplySnapshot(snap types.GameSnapshot, now time.Time) {
	s.Snapshot = snap
	s.Red = snap.RedPixels
	s.Blue = snap.BluePixels
	s.Phase = PhaseReady
	s.Countdown.Observe(snap, now)
}

// ApplyFallback installs a synthetic snapshot after a failed read.
func (s *State) ApplyFallback(snap types.GameSnapshot, message string) {
	s.Snapshot = snap
	s.Red = snap.RedPixels
	s.Blue = snap.BluePixels
	s.Phase = PhaseErrorFallback
	s.Error = message
}

// ApplyPaint marks c for team and moves the counters. Painting over the
// other team swings one pixel from it; painting an empty pixel adds one;
// repainting an own pixel changes nothing.
func (s *State) ApplyPaint(c types.Coord, team types.Team, painter string) PendingPaint {
	prev, had := s.Pixels[c]
	p := PendingPaint{
		Coord:       c,
		Mark:        types.PixelMark{Team: team, Painter: painter},
		Previous:    prev,
		HadPrevious: had,
	}

	switch {
	case !had:
		p.add(team, 1, s)
	case prev.Team != team:
		p.add(prev.Team, -1, s)
		p.add(team, 1, s)
	}

	s.Pixels[c] = p.Mark
	return p
}

// RevertPaint undoes p: the previous mark (or no mark) is restored at p's
// coordinate only and the applied counter deltas are inverted.
func (s *State) RevertPaint(p PendingPaint) {
	if p.HadPrevious {
		s.Pixels[p.Coord] = p.Previous
	} else {
		delete(s.Pixels, p.Coord)
	}
	s.Red = shift(s.Red, -p.RedDelta)
	s.Blue = shift(s.Blue, -p.BlueDelta)
}

func (p *PendingPaint) add(team types.Team, delta int, s *State) {
	switch team {
	case types.TeamRed:
		before := s.Red
		s.Red = shift(s.Red, delta)
		p.RedDelta += int(int64(s.Red) - int64(before))
	case types.TeamBlue:
		before := s.Blue
		s.Blue = shift(s.Blue, delta)
		p.BlueDelta += int(int64(s.Blue) - int64(before))
	}
}

// shift adds delta to v, saturating at zero.
func shift(v uint64, delta int) uint64 {
	if delta < 0 && uint64(-delta) > v {
		return 0
	}
	return uint64(int64(v) + int64(delta))
}

// ResetForNewGame drops everything tied to the previous game.
func (s *State) ResetForNewGame() {
	s.Pixels = make(map[types.Coord]types.PixelMark)
	s.Selection = nil
	s.Red, s.Blue = 0, 0
}

// Team is the team the local player is known to have joined.
func (s *State) Team() types.Team {
	if s.Selection == nil {
		return types.TeamNone
	}
	return s.Selection.Team
}
