package game

import (
	"time"

	"pixelwar.app/pxw/internal/sdk"
	"pixelwar.app/pxw/internal/types"
)

// View is an immutable rendering of the controller state, pushed to
// subscribers after every change.
type View struct {
	Phase         string                `json:"phase"`
	GameID        string                `json:"game_id"`
	HasSnapshot   bool                  `json:"has_snapshot"`
	Snapshot      types.GameSnapshot    `json:"snapshot"`
	PrizePool     string                `json:"prize_pool"`
	Red           uint64                `json:"red"`
	Blue          uint64                `json:"blue"`
	RedShare      int                   `json:"red_share"`
	BlueShare     int                   `json:"blue_share"`
	TimeRemaining string                `json:"time_remaining"`
	Ended         bool                  `json:"ended"`
	AutoCreateIn  int                   `json:"auto_create_in"`
	Creating      bool                  `json:"creating"`
	Pixels        map[string]types.Team `json:"pixels"`
	Team          types.Team            `json:"team"`
	TeamLabel     string                `json:"team_label"`
	Account       string                `json:"account"`
	Connected     bool                  `json:"connected"`
	Error         string                `json:"error"`
	Banner        string                `json:"banner"`
	Loading       bool                  `json:"loading"`
	CanClaim      bool                  `json:"can_claim"`
	Network       string                `json:"network"`
}

// Width and Height are the canvas dimensions, for templates.
func (v View) Width() int  { return int(v.Snapshot.CanvasWidth) }
func (v View) Height() int { return int(v.Snapshot.CanvasHeight) }

// PixelClass is the CSS class of the cell at x, y.
func (v View) PixelClass(x, y int) string {
	switch v.Pixels[types.Coord{X: uint32(x), Y: uint32(y)}.Key()] {
	case types.TeamRed:
		return "pixel pixel-red"
	case types.TeamBlue:
		return "pixel pixel-blue"
	default:
		return "pixel pixel-empty"
	}
}

func buildView(s *State, gameID, network string, busy bool, now time.Time) View {
	v := View{
		Phase:       s.Phase.String(),
		GameID:      gameID,
		HasSnapshot: s.HasSnapshot(),
		Snapshot:    s.Snapshot,
		Red:         s.Red,
		Blue:        s.Blue,
		Team:        s.Team(),
		Account:     s.Account,
		Connected:   s.Account != "",
		Error:       s.Error,
		Banner:      s.Banner,
		Loading:     busy,
		Network:     network,
		Pixels:      make(map[string]types.Team, len(s.Pixels)),
	}
	if v.Team.Valid() {
		v.TeamLabel = v.Team.Label()
	}
	for c, m := range s.Pixels {
		v.Pixels[c.Key()] = m.Team
	}

	if v.HasSnapshot {
		v.PrizePool = sdk.FormatDisplay(s.Snapshot.PrizePool)
		v.RedShare, v.BlueShare = sdk.TeamShares(s.Red, s.Blue)
		v.TimeRemaining = sdk.FormatCountdown(sdk.TimeRemaining(s.Snapshot, now))
		v.Ended = !s.Snapshot.IsActive || s.Snapshot.Ended(now)
		v.CanClaim = !s.Snapshot.IsActive
	}
	if s.Countdown.Counting() {
		v.AutoCreateIn = s.Countdown.Remaining()
	}
	v.Creating = s.Countdown.Fired()
	return v
}
