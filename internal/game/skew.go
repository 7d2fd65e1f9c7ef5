package game

import (
	"time"

	"pixelwar.app/pxw/internal/types"
)

// FallbackCanvasSize is the canvas edge used when no game could be read.
const FallbackCanvasSize = 50

// FallbackDuration is the window length of the synthetic snapshot.
const FallbackDuration = 10 * time.Minute

// CorrectClockSkew shifts a game window that starts in the future so it
// starts at now and keeps its length. Display only; nothing is sent back.
func CorrectClockSkew(snap types.GameSnapshot, now time.Time) types.GameSnapshot {
	if !snap.StartTime.After(now) {
		return snap
	}
	d := snap.Duration()
	now = now.Truncate(time.Millisecond)
	snap.StartTime = now
	snap.EndTime = now.Add(d)
	return snap
}

// FallbackSnapshot is the placeholder shown when the game cannot be read:
// game 1, an empty active canvas and a full window from now.
func FallbackSnapshot(now time.Time) types.GameSnapshot {
	now = now.Truncate(time.Millisecond)
	return types.GameSnapshot{
		GameNumber:   1,
		CanvasWidth:  FallbackCanvasSize,
		CanvasHeight: FallbackCanvasSize,
		StartTime:    now,
		EndTime:      now.Add(FallbackDuration),
		IsActive:     true,
	}
}
