package api

import (
	"time"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/leaderboard"
	"example.com/aura/internal/ledger"
)

// WebhookResponse acknowledges a provider notification.
type WebhookResponse struct {
	Status string `json:"status"`
}

// LinkResponse is returned once an athlete is linked to an account.
type LinkResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PlayerView is the player status card.
type PlayerView struct {
	AccountID       string `json:"account_id"`
	DisplayName     string `json:"display_name"`
	Level           int    `json:"level"`
	XP              int64  `json:"xp"`
	XPToNextLevel   int64  `json:"xp_to_next_level"`
	ProgressPercent int    `json:"progress_percent"`
	LifetimeXP      int64  `json:"lifetime_xp"`
	Coins           int64  `json:"coins"`
	Crystals        int64  `json:"crystals"`
	StravaConnected bool   `json:"strava_connected"`
}

// ActivityView is one activity history entry.
type ActivityView struct {
	RecordID        string    `json:"record_id"`
	Provider        string    `json:"provider"`
	ExternalID      int64     `json:"external_id"`
	ActivityType    string    `json:"activity_type"`
	Name            string    `json:"name"`
	DistanceM       float64   `json:"distance_m"`
	MovingTimeS     int64     `json:"moving_time_s"`
	ElevationGainM  float64   `json:"elevation_gain_m"`
	AverageSpeedMPS float64   `json:"average_speed_mps"`
	StartDateLocal  string    `json:"start_date_local"`
	XPAwarded       int64     `json:"xp_awarded"`
	CoinsAwarded    int64     `json:"coins_awarded"`
	Bonuses         []string  `json:"bonuses"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// VerifyResponse answers the activity-on-day check.
type VerifyResponse struct {
	Date     string `json:"date"`
	Approved bool   `json:"approved"`
}

// MissionView is one daily mission.
type MissionView struct {
	MissionID   string     `json:"mission_id"`
	TemplateID  string     `json:"template_id"`
	Description string     `json:"description"`
	XP          int64      `json:"xp"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MissionsResponse lists today's missions.
type MissionsResponse struct {
	Day      string        `json:"day"`
	Missions []MissionView `json:"missions"`
}

// CompleteMissionResponse reports the paid-out mission and ledger effect.
type CompleteMissionResponse struct {
	Mission MissionView   `json:"mission"`
	Ledger  ledger.Result `json:"ledger"`
}

// RankingResponse lists the top players and the caller's position.
type RankingResponse struct {
	Items    []leaderboard.Entry `json:"items"`
	Position int                 `json:"position"`
}

func toPlayerView(s domain.Standing) PlayerView {
	a := s.Account
	return PlayerView{
		AccountID:       a.ID,
		DisplayName:     a.DisplayName,
		Level:           a.Progress.Level,
		XP:              a.Progress.XP,
		XPToNextLevel:   s.XPToNext,
		ProgressPercent: s.ProgressPercent,
		LifetimeXP:      a.Progress.LifetimeXP,
		Coins:           a.Coins,
		Crystals:        a.Progress.Crystals,
		StravaConnected: s.StravaConnected,
	}
}

func toActivityView(rec domain.ActivityRecord) ActivityView {
	bonuses := rec.Bonuses
	if bonuses == nil {
		bonuses = []string{}
	}
	return ActivityView{
		RecordID:        rec.ID,
		Provider:        string(rec.Provider),
		ExternalID:      rec.ExternalID,
		ActivityType:    rec.ActivityType,
		Name:            rec.Name,
		DistanceM:       rec.DistanceM,
		MovingTimeS:     rec.MovingTimeS,
		ElevationGainM:  rec.ElevationGainM,
		AverageSpeedMPS: rec.AverageSpeedMPS,
		StartDateLocal:  rec.StartDateLocal,
		XPAwarded:       rec.XPAwarded,
		CoinsAwarded:    rec.CoinsAwarded,
		Bonuses:         bonuses,
		CreatedAt:       rec.CreatedAt,
	}
}

func toMissionView(m domain.MissionInstance) MissionView {
	return MissionView{
		MissionID:   m.ID,
		TemplateID:  m.TemplateID,
		Description: m.Description,
		XP:          m.XP,
		Completed:   m.Completed,
		CompletedAt: m.CompletedAt,
	}
}
