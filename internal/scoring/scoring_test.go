package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreFloorForShortActivity(t *testing.T) {
	engine := NewEngine(DefaultRules())

	score := engine.Score(Activity{DistanceM: 150})

	require.Equal(t, int64(10), score.XP)
	require.Equal(t, []string{"Distância (0.1km)"}, score.Bonuses)
}

func TestScoreIgnoresGPSNoise(t *testing.T) {
	engine := NewEngine(DefaultRules())

	score := engine.Score(Activity{DistanceM: 80, StartDateLocal: "2024-05-01T12:00:00Z"})

	require.Zero(t, score.XP)
	require.Empty(t, score.Bonuses)
}

func TestScoreStacksAllBonusesInRuleOrder(t *testing.T) {
	engine := NewEngine(DefaultRules())

	score := engine.Score(Activity{
		DistanceM:       10500,
		ElevationGainM:  120.7,
		AverageSpeedMPS: 3.1,
		StartDateLocal:  "2024-05-01T06:15:00Z",
	})

	// 105 distance + 50 early bird + 241 elevation + 30 pace
	require.Equal(t, int64(426), score.XP)
	require.Equal(t, []string{
		"Distância (10.5km)",
		"Madrugador (+50 XP)",
		"Elevação (120m, +241 XP)",
		"Ritmo forte (+30 XP)",
	}, score.Bonuses)
}

func TestScoreIsDeterministic(t *testing.T) {
	engine := NewEngine(DefaultRules())
	activity := Activity{DistanceM: 5230, ElevationGainM: 60, AverageSpeedMPS: 2.9, StartDateLocal: "2024-05-01T05:00:00Z"}

	first := engine.Score(activity)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, engine.Score(activity))
	}
}

func TestEarlyBirdBoundaries(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cases := map[string]bool{
		"2024-05-01T03:59:00Z": false,
		"2024-05-01T04:00:00Z": true,
		"2024-05-01T07:59:00Z": true,
		"2024-05-01T08:00:00Z": false,
		"not-a-timestamp":      false,
	}

	for ts, want := range cases {
		score := engine.Score(Activity{StartDateLocal: ts})
		if want {
			require.Equal(t, int64(50), score.XP, ts)
			require.Equal(t, []string{"Madrugador (+50 XP)"}, score.Bonuses, ts)
		} else {
			require.Zero(t, score.XP, ts)
		}
	}
}

func TestElevationAndPaceThresholdsAreStrict(t *testing.T) {
	engine := NewEngine(DefaultRules())

	score := engine.Score(Activity{ElevationGainM: 50, AverageSpeedMPS: 2.78})

	require.Zero(t, score.XP)
	require.Empty(t, score.Bonuses)
}

func TestScoreClampsNegativeInputs(t *testing.T) {
	engine := NewEngine(DefaultRules())

	score := engine.Score(Activity{DistanceM: -4000, ElevationGainM: -300, AverageSpeedMPS: -5})

	require.Zero(t, score.XP)
}

func TestLocalHourFallbacks(t *testing.T) {
	require.Equal(t, 6, LocalHour("2024-05-01T06:52:54"))
	require.Equal(t, 21, LocalHour("2024-05-01 21:00:00"))
	require.Equal(t, 5, LocalHour("2024-05-01T05:10:00.000+0300"))
	require.Equal(t, 12, LocalHour(""))
}
