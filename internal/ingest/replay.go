package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"example.com/aura/internal/strava"
)

// ErrNoFailureStore is returned by Replay when the pipeline has no failure store.
var ErrNoFailureStore = errors.New("ingest: failure store not configured")

// ReplayReport summarises one Replay run.
type ReplayReport struct {
	Attempted int             `json:"attempted"`
	Resolved  int             `json:"resolved"`
	Failed    int             `json:"failed"`
	Outcomes  map[Outcome]int `json:"outcomes"`
}

// Replay re-submits up to limit unresolved failures through the pipeline.
// Failures that reach a terminal outcome are resolved; the rest get their
// attempt counter bumped.
func (p *Pipeline) Replay(ctx context.Context, limit int) (ReplayReport, error) {
	report := ReplayReport{Outcomes: map[Outcome]int{}}
	if p.failures == nil {
		return report, ErrNoFailureStore
	}

	failures, err := p.failures.ListFailures(ctx, limit)
	if err != nil {
		return report, err
	}

	for _, f := range failures {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Attempted++

		var evt strava.WebhookEvent
		if err := json.Unmarshal(f.Payload, &evt); err != nil || evt.ObjectID == 0 {
			// Payload is unusable; rebuild the notification from the ids.
			evt = strava.WebhookEvent{ObjectType: "activity", AspectType: "create", ObjectID: f.ObjectID, OwnerID: f.OwnerID}
		}

		outcome, cause := p.process(ctx, evt)
		report.Outcomes[outcome]++

		if outcome.Terminal() {
			if err := p.failures.ResolveFailure(ctx, f.ID); err != nil {
				return report, err
			}
			report.Resolved++
			continue
		}

		report.Failed++
		reason := string(outcome)
		if cause != nil {
			reason = cause.Error()
		}
		if err := p.failures.RecordFailureAttempt(ctx, f.ID, reason); err != nil {
			return report, err
		}
		p.logger.Warn("replay still failing",
			zap.Int64("failure_id", f.ID),
			zap.Int("attempts", f.Attempts+1),
			zap.String("outcome", string(outcome)),
		)
	}
	return report, nil
}
