package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"example.com/aura/internal/ledger"
	"example.com/aura/internal/scoring"
)

// economy mirrors the ECONOMY_FILE layout. Keys absent from the file keep
// their defaults.
//
//	scoring:
//	  xp_per_km: 10
//	  pace_bonus: 50
//	ledger:
//	  base_level_xp: 1000
//	  coin_rate: 20
//	missions_per_day: 3
type economy struct {
	Scoring        scoringYAML `yaml:"scoring"`
	Ledger         ledgerYAML  `yaml:"ledger"`
	MissionsPerDay int         `yaml:"missions_per_day"`
}

type scoringYAML struct {
	XPPerKM             float64 `yaml:"xp_per_km"`
	XPFloor             int64   `yaml:"xp_floor"`
	MinDistanceKM       float64 `yaml:"min_distance_km"`
	EarlyBirdFromHour   int     `yaml:"early_bird_from_hour"`
	EarlyBirdUntilHour  int     `yaml:"early_bird_until_hour"`
	EarlyBirdBonus      int64   `yaml:"early_bird_bonus"`
	ElevationThresholdM float64 `yaml:"elevation_threshold_m"`
	XPPerMeterElevation float64 `yaml:"xp_per_meter_elevation"`
	PaceThresholdMPS    float64 `yaml:"pace_threshold_mps"`
	PaceBonus           int64   `yaml:"pace_bonus"`
}

type ledgerYAML struct {
	BaseLevelXP      int64 `yaml:"base_level_xp"`
	CrystalsPerLevel int64 `yaml:"crystals_per_level"`
	CoinRate         int64 `yaml:"coin_rate"`
}

func defaultEconomy() economy {
	return economy{
		Scoring:        scoringYAML(scoring.DefaultRules()),
		Ledger:         ledgerYAML(ledger.DefaultRules()),
		MissionsPerDay: 3,
	}
}

func (e *economy) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("economy file: %w", err)
	}
	if err := yaml.Unmarshal(data, e); err != nil {
		return fmt.Errorf("economy file %s: %w", path, err)
	}
	return nil
}
