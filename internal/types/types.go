// Package types defines the core domain models for pixelwar (pxw).
// It contains the game snapshot read from the ledger, the local pixel and
// team models, and the transaction intents submitted to the pixel_war
// contract. None of these types interpret game rules; the contract owns
// them.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Version is the current version of pxw
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Team is the contract's team tag.
type Team uint8

const (
	TeamNone Team = 0
	TeamRed  Team = 1
	TeamBlue Team = 2
)

func (t Team) String() string {
	switch t {
	case TeamRed:
		return "red"
	case TeamBlue:
		return "blue"
	default:
		return "none"
	}
}

// Label is the capitalised team name shown in the UI.
func (t Team) Label() string {
	switch t {
	case TeamRed:
		return "Red"
	case TeamBlue:
		return "Blue"
	default:
		return "None"
	}
}

// Valid reports whether t is one of the two playable teams.
func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue
}

// Other returns the opposing team. TeamNone has no opponent.
func (t Team) Other() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamNone
	}
}

// ParseTeam accepts "red"/"blue" (any case) or the numeric tags "1"/"2".
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "1":
		return TeamRed, nil
	case "blue", "2":
		return TeamBlue, nil
	}
	return TeamNone, fmt.Errorf("unknown team %q", s)
}

// Coord is a canvas coordinate in [0, width) x [0, height).
type Coord struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// Key returns the "x,y" form used by the browser canvas.
func (c Coord) Key() string {
	return strconv.FormatUint(uint64(c.X), 10) + "," + strconv.FormatUint(uint64(c.Y), 10)
}

// PixelMark is the locally cached owner of a pixel.
type PixelMark struct {
	Team    Team   `json:"team"`
	Painter string `json:"painter"`
}

// GameSnapshot is an immutable point-in-time read of the game object.
// Times are carried at millisecond precision, as the ledger clock reports them.
type GameSnapshot struct {
	GameNumber   uint64    `json:"game_number"`
	CanvasWidth  uint32    `json:"canvas_width"`
	CanvasHeight uint32    `json:"canvas_height"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsActive     bool      `json:"is_active"`
	PrizePool    uint64    `json:"prize_pool"` // minor units
	RedPixels    uint64    `json:"red_team_pixels"`
	BluePixels   uint64    `json:"blue_team_pixels"`
}

// Duration is the length of the game window.
func (g GameSnapshot) Duration() time.Duration {
	return g.EndTime.Sub(g.StartTime)
}

// Ended reports whether the end time has been reached at now.
func (g GameSnapshot) Ended(now time.Time) bool {
	return !g.EndTime.After(now)
}

// TimeRemaining is the time left until EndTime, never negative.
func (g GameSnapshot) TimeRemaining(now time.Time) time.Duration {
	d := g.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Contains reports whether c lies on the canvas.
func (g GameSnapshot) Contains(c Coord) bool {
	return c.X < g.CanvasWidth && c.Y < g.CanvasHeight
}

// PlayerSelection is the per-account side record the contract keeps for a
// player that joined the current game.
type PlayerSelection struct {
	Team          Team   `json:"team"`
	StakeAmount   uint64 `json:"stake_amount"`
	PixelsPainted uint64 `json:"pixels_painted"`
	HasClaimed    bool   `json:"has_claimed"`
}

// MillisToTime converts a ledger millisecond timestamp.
func MillisToTime(ms uint64) time.Time {
	return time.UnixMilli(int64(ms))
}
