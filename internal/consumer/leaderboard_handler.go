package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/aura/internal/events"
	"example.com/aura/internal/leaderboard"
)

// Ranker is the leaderboard write side.
type Ranker interface {
	Record(ctx context.Context, s leaderboard.Standing) (bool, error)
}

// LeaderboardHandler keeps the ranking current from ledger events.
type LeaderboardHandler struct {
	ranker Ranker
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(ranker Ranker) *LeaderboardHandler {
	return &LeaderboardHandler{ranker: ranker}
}

// EventTypes lists the events the handler consumes.
func (h *LeaderboardHandler) EventTypes() []string {
	return []string{events.TypeXPApplied, events.TypeLevelUp}
}

// Handle implements Handler.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	var standing leaderboard.Standing
	switch msg.EventType {
	case events.TypeXPApplied:
		var evt events.XPApplied
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		standing = leaderboard.Standing{AccountID: evt.AccountID, DisplayName: evt.DisplayName, Level: evt.Level, LifetimeXP: evt.LifetimeXP}
	case events.TypeLevelUp:
		var evt events.LevelUp
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		standing = leaderboard.Standing{AccountID: evt.AccountID, DisplayName: evt.DisplayName, Level: evt.Level, LifetimeXP: evt.LifetimeXP}
	default:
		return nil
	}

	if standing.AccountID == "" {
		standing.AccountID = msg.AggregateID
	}
	_, err := h.ranker.Record(ctx, standing)
	return err
}
