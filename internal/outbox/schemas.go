package outbox

import "example.com/aura/internal/events"

// Route describes where an event type is published and which schema frames it.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]Route{
	events.TypeActivityScored: {
		Topic:         events.TopicActivity,
		SchemaSubject: events.TopicActivity + "-activity.scored",
		Schema:        activityScoredSchema,
	},
	events.TypeXPApplied: {
		Topic:         events.TopicLedger,
		SchemaSubject: events.TopicLedger + "-ledger.xp_applied",
		Schema:        xpAppliedSchema,
	},
	events.TypeLevelUp: {
		Topic:         events.TopicLedger,
		SchemaSubject: events.TopicLedger + "-ledger.level_up",
		Schema:        levelUpSchema,
	},
}

// Lookup returns the route of an event type.
func Lookup(eventType string) (Route, bool) {
	route, ok := catalog[eventType]
	return route, ok
}

const activityScoredSchema = `{
  "type": "object",
  "title": "ActivityScored",
  "properties": {
    "account_id": {"type": "string"},
    "record_id": {"type": "string"},
    "provider": {"type": "string"},
    "external_id": {"type": "integer"},
    "xp": {"type": "integer", "minimum": 0},
    "coins": {"type": "integer", "minimum": 0},
    "bonuses": {"type": "array", "items": {"type": "string"}},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["account_id", "record_id", "provider", "external_id", "xp", "coins", "occurred_at"],
  "additionalProperties": false
}`

const xpAppliedSchema = `{
  "type": "object",
  "title": "XPApplied",
  "properties": {
    "account_id": {"type": "string"},
    "display_name": {"type": "string"},
    "source": {"type": "string", "enum": ["activity", "mission", "grant"]},
    "delta": {"type": "integer", "minimum": 0},
    "level": {"type": "integer", "minimum": 1},
    "lifetime_xp": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["account_id", "source", "delta", "level", "lifetime_xp", "occurred_at"],
  "additionalProperties": false
}`

const levelUpSchema = `{
  "type": "object",
  "title": "LevelUp",
  "properties": {
    "account_id": {"type": "string"},
    "display_name": {"type": "string"},
    "level": {"type": "integer", "minimum": 2},
    "levels_gained": {"type": "integer", "minimum": 1},
    "lifetime_xp": {"type": "integer", "minimum": 0},
    "crystals_granted": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["account_id", "level", "levels_gained", "lifetime_xp", "crystals_granted", "occurred_at"],
  "additionalProperties": false
}`
