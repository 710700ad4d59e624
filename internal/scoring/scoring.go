// Package scoring converts a recorded workout into experience points.
//
// Scoring is pure and deterministic: the same activity always yields the same
// XP and the same bonus labels, in rule order.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Rules holds the tunable scoring constants.
type Rules struct {
	XPPerKM             float64
	XPFloor             int64
	MinDistanceKM       float64
	EarlyBirdFromHour   int
	EarlyBirdUntilHour  int
	EarlyBirdBonus      int64
	ElevationThresholdM float64
	XPPerMeterElevation float64
	PaceThresholdMPS    float64
	PaceBonus           int64
}

// DefaultRules returns the production economy.
func DefaultRules() Rules {
	return Rules{
		XPPerKM:             10,
		XPFloor:             10,
		MinDistanceKM:       0.1,
		EarlyBirdFromHour:   4,
		EarlyBirdUntilHour:  8,
		EarlyBirdBonus:      50,
		ElevationThresholdM: 50,
		XPPerMeterElevation: 2,
		PaceThresholdMPS:    2.78,
		PaceBonus:           30,
	}
}

// fallbackHour is used when the local start timestamp cannot be parsed.
// Noon never earns the early-bird bonus.
const fallbackHour = 12

// Activity is the subset of a provider workout the engine reads.
type Activity struct {
	DistanceM       float64
	ElevationGainM  float64
	AverageSpeedMPS float64
	StartDateLocal  string
}

// Score is the engine output.
type Score struct {
	XP      int64
	Bonuses []string
}

// Engine applies Rules to activities.
type Engine struct {
	rules Rules
}

// NewEngine constructs an Engine.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine configuration.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Score computes XP and the bonus labels for an activity.
func (e *Engine) Score(a Activity) Score {
	r := e.rules
	score := Score{Bonuses: []string{}}

	km := nonNegative(a.DistanceM) / 1000
	base := int64(math.Floor(km * r.XPPerKM))
	if base < r.XPFloor && km > r.MinDistanceKM {
		base = r.XPFloor
	}
	if base > 0 {
		score.XP += base
		score.Bonuses = append(score.Bonuses, fmt.Sprintf("Distância (%.1fkm)", math.Floor(km*10)/10))
	}

	hour := LocalHour(a.StartDateLocal)
	if hour >= r.EarlyBirdFromHour && hour < r.EarlyBirdUntilHour {
		score.XP += r.EarlyBirdBonus
		score.Bonuses = append(score.Bonuses, fmt.Sprintf("Madrugador (+%d XP)", r.EarlyBirdBonus))
	}

	elevation := nonNegative(a.ElevationGainM)
	if elevation > r.ElevationThresholdM {
		bonus := int64(math.Floor(elevation * r.XPPerMeterElevation))
		score.XP += bonus
		score.Bonuses = append(score.Bonuses, fmt.Sprintf("Elevação (%dm, +%d XP)", int64(elevation), bonus))
	}

	if nonNegative(a.AverageSpeedMPS) > r.PaceThresholdMPS {
		score.XP += r.PaceBonus
		score.Bonuses = append(score.Bonuses, fmt.Sprintf("Ritmo forte (+%d XP)", r.PaceBonus))
	}

	if score.XP < 0 {
		score.XP = 0
	}
	return score
}

var localLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LocalHour extracts the wall-clock hour from a provider-local timestamp,
// returning noon when it cannot be parsed.
func LocalHour(ts string) int {
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Hour()
		}
	}
	// "YYYY-MM-DDTHH..." with an unknown tail.
	if len(ts) >= 13 && (ts[10] == 'T' || ts[10] == ' ') {
		if h, err := strconv.Atoi(ts[11:13]); err == nil && h >= 0 && h < 24 {
			return h
		}
	}
	return fallbackHour
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
