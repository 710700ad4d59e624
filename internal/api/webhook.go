package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"example.com/aura/internal/ingest"
	"example.com/aura/internal/observability"
	"example.com/aura/internal/strava"
)

const maxWebhookBody = 64 << 10

// webhookHandshake answers the push-subscription challenge.
func (h *Handler) webhookHandshake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !strava.VerifySubscription(q.Get("hub.mode"), q.Get("hub.verify_token"), h.deps.WebhookVerifyToken) {
		writeError(w, http.StatusForbidden, "forbidden", "subscription verification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": q.Get("hub.challenge")})
}

// webhookEvent always acknowledges with 200 so the provider does not
// redeliver; the outcome is reported in the body.
func (h *Handler) webhookEvent(w http.ResponseWriter, r *http.Request) {
	observability.RecordWebhookReceived(h.now())

	var evt strava.WebhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&evt); err != nil {
		h.logger.Debug("undecodable webhook body", zap.Error(err))
		writeJSON(w, http.StatusOK, WebhookResponse{Status: string(ingest.OutcomeInvalidEvent)})
		return
	}

	// The provider connection may drop before processing ends; the pipeline
	// applies its own bound.
	outcome, _ := h.deps.Webhooks.Process(context.WithoutCancel(r.Context()), evt)
	writeJSON(w, http.StatusOK, WebhookResponse{Status: string(outcome)})
}
