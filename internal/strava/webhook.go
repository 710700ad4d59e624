// Package strava talks to the Strava API: OAuth token exchange, activity
// detail fetches and push-subscription webhooks.
package strava

const (
	objectTypeActivity = "activity"
	aspectTypeCreate   = "create"
	modeSubscribe      = "subscribe"
)

// WebhookEvent is the push-subscription notification body.
type WebhookEvent struct {
	ObjectType     string            `json:"object_type"`
	AspectType     string            `json:"aspect_type"`
	ObjectID       int64             `json:"object_id"`
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id,omitempty"`
	EventTime      int64             `json:"event_time,omitempty"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// IsActivityCreate reports whether the event announces a new activity.
func (e WebhookEvent) IsActivityCreate() bool {
	return e.ObjectType == objectTypeActivity && e.AspectType == aspectTypeCreate && e.ObjectID > 0 && e.OwnerID > 0
}

// VerifySubscription validates the subscription handshake parameters.
func VerifySubscription(mode, token, expected string) bool {
	return mode == modeSubscribe && expected != "" && token == expected
}
