// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types.
const (
	TypeActivityScored = "activity.scored"
	TypeLevelUp        = "ledger.level_up"
	TypeXPApplied      = "ledger.xp_applied"
)

// Topics.
const (
	TopicActivity = "aura_activity_events"
	TopicLedger   = "aura_ledger_events"
)

// XP sources carried by XPApplied.
const (
	SourceActivity = "activity"
	SourceMission  = "mission"
	SourceGrant    = "grant"
)

// ActivityScored is emitted once per recorded provider activity.
type ActivityScored struct {
	AccountID  string    `json:"account_id"`
	RecordID   string    `json:"record_id"`
	Provider   string    `json:"provider"`
	ExternalID int64     `json:"external_id"`
	XP         int64     `json:"xp"`
	Coins      int64     `json:"coins"`
	Bonuses    []string  `json:"bonuses"`
	OccurredAt time.Time `json:"occurred_at"`
}
