// Package reputation derives a provider's trust score from the number of
// readings it has published.
package reputation

import "math"

// Tier is the named band a score falls into.
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Tier boundaries, expressed as the first reading count of each tier.
const (
	silverFloor   = 11
	goldFloor     = 51
	platinumFloor = 100

	// platinumSpan is how many readings past platinumFloor still earn points.
	platinumSpan = 100

	MaxScore = 100
)

// Reputation is a derived snapshot and is never stored on its own.
type Reputation struct {
	Score         int    `json:"score"`
	Tier          Tier   `json:"rank"`
	TotalReadings uint64 `json:"totalReadings"`
}

// FromReadings computes the reputation for a provider with n readings.
// The score is piecewise linear within each tier and continuous across tier
// boundaries, so it never decreases as n grows.
func FromReadings(n uint64) Reputation {
	var (
		raw  float64
		tier Tier
	)

	switch {
	case n >= platinumFloor:
		extra := min(n-platinumFloor, platinumSpan)
		raw = 75 + float64(extra)/4
		tier = TierPlatinum
	case n >= goldFloor:
		raw = 50 + float64(n-goldFloor)/49*25
		tier = TierGold
	case n >= silverFloor:
		raw = 25 + float64(n-silverFloor)/40*25
		tier = TierSilver
	default:
		raw = float64(n) / 10 * 25
		tier = TierBronze
	}

	return Reputation{
		Score:         clamp(int(math.Floor(raw + 0.5))),
		Tier:          tier,
		TotalReadings: n,
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
