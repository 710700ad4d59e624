package domain

import "time"

// Pipeline stages that record failures.
const (
	StageTokenRefresh  = "token_refresh"
	StageProviderFetch = "provider_fetch"
	StagePersistence   = "persistence"
)

// WebhookFailure is an operational record of a notification that could not
// be turned into an activity credit.
type WebhookFailure struct {
	ID         int64
	Stage      string
	Reason     string
	OwnerID    int64
	ObjectID   int64
	Payload    []byte
	Attempts   int
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
