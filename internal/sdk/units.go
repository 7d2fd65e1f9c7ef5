package sdk

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"pixelwar.app/pxw/internal/types"
)

// MistPerSui is the number of minor units in one display unit.
const MistPerSui uint64 = 1_000_000_000

// FormatDisplay renders minor units with two decimals, truncating.
func FormatDisplay(minor uint64) string {
	whole := minor / MistPerSui
	frac := (minor % MistPerSui) / (MistPerSui / 100)
	return fmt.Sprintf("%d.%02d", whole, frac)
}

var (
	bigScale  = new(big.Int).SetUint64(MistPerSui)
	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)
)

// ParseMinorUnits converts a decimal display amount to minor units,
// rounding toward zero.
func ParseMinorUnits(display string) (uint64, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || strings.ContainsAny(s, "/eExXpPbBoO_") {
		return 0, fmt.Errorf("invalid amount %q", display)
	}
	if r.Sign() < 0 {
		return 0, fmt.Errorf("negative amount %q", display)
	}

	r.Mul(r, new(big.Rat).SetInt(bigScale))
	minor := new(big.Int).Quo(r.Num(), r.Denom())
	if minor.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("amount %q out of range", display)
	}
	return minor.Uint64(), nil
}

// TimeRemaining is the time left in the game window at now.
func TimeRemaining(snap types.GameSnapshot, now time.Time) time.Duration {
	return snap.TimeRemaining(now)
}

// FormatCountdown renders d as m:ss, dropping fractional seconds.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// TeamShares returns the rounded percentage of pixels each team holds.
func TeamShares(red, blue uint64) (int, int) {
	total := red + blue
	if total == 0 {
		total = 1
	}
	r := int(math.Round(float64(red) / float64(total) * 100))
	b := int(math.Round(float64(blue) / float64(total) * 100))
	return r, b
}
