// Package leaderboard ranks players by lifetime XP.
//
// The ranking lives in a Redis sorted set kept current by the event consumer.
// Reads fall back to the primary store when Redis is unavailable or cold.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"example.com/aura/internal/domain"
)

const (
	// KeyScores is the sorted set of account ids scored by lifetime XP.
	KeyScores = "aura:leaderboard"
	// KeyProfiles holds the display profile of every ranked account.
	KeyProfiles = "aura:leaderboard:profiles"

	DefaultLimit = 20
	MaxLimit     = 50
)

// Only move a score forward so late events never roll a player back.
var recordScript = redis.NewScript(`
local current = redis.call("ZSCORE", KEYS[1], ARGV[1])
if current and tonumber(current) > tonumber(ARGV[2]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// Standing is one player's ranking input.
type Standing struct {
	AccountID   string
	DisplayName string
	Level       int
	LifetimeXP  int64
}

// Entry is one ranked row.
type Entry struct {
	Position    int    `json:"position"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	LifetimeXP  int64  `json:"lifetime_xp"`
}

type profile struct {
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
}

// Source is the authoritative ranking used when Redis cannot serve.
type Source interface {
	TopAccounts(ctx context.Context, limit int) ([]domain.Account, error)
	// RankAccount returns the 1-based position of an account in TopAccounts
	// order, or 0 when the account does not exist.
	RankAccount(ctx context.Context, accountID string) (int, error)
}

// Board reads and writes the ranking.
type Board struct {
	client *redis.Client
	source Source
	logger *zap.Logger
}

// NewBoard constructs a Board. client may be nil, in which case every read
// goes to source.
func NewBoard(client *redis.Client, source Source, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{client: client, source: source, logger: logger}
}

// ClampLimit applies DefaultLimit and MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Record stores a player's current standing. Older standings than the one
// already ranked are ignored.
func (b *Board) Record(ctx context.Context, s Standing) (bool, error) {
	if b.client == nil {
		return false, nil
	}
	raw, err := json.Marshal(profile{DisplayName: s.DisplayName, Level: s.Level})
	if err != nil {
		return false, err
	}
	applied, err := recordScript.Run(ctx, b.client, []string{KeyScores, KeyProfiles}, s.AccountID, s.LifetimeXP, string(raw)).Int()
	if err != nil {
		return false, fmt.Errorf("record standing: %w", err)
	}
	return applied == 1, nil
}

// Top returns the highest ranked players.
func (b *Board) Top(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)
	if b.client != nil {
		entries, err := b.topFromRedis(ctx, limit)
		switch {
		case err != nil:
			b.logger.Warn("leaderboard cache unavailable, reading store", zap.Error(err))
		case len(entries) > 0:
			return entries, nil
		}
	}
	return b.topFromSource(ctx, limit)
}

func (b *Board) topFromRedis(ctx context.Context, limit int) ([]Entry, error) {
	scores, err := b.client.ZRevRangeWithScores(ctx, KeyScores, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	ids := make([]string, len(scores))
	for i, z := range scores {
		ids[i] = fmt.Sprint(z.Member)
	}
	profiles, err := b.client.HMGet(ctx, KeyProfiles, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(scores))
	for i, z := range scores {
		entry := Entry{Position: i + 1, AccountID: ids[i], LifetimeXP: int64(z.Score), Level: 1}
		if raw, ok := profiles[i].(string); ok {
			var p profile
			if err := json.Unmarshal([]byte(raw), &p); err == nil {
				entry.DisplayName = p.DisplayName
				entry.Level = p.Level
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (b *Board) topFromSource(ctx context.Context, limit int) ([]Entry, error) {
	accounts, err := b.source.TopAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(accounts))
	for i, a := range accounts {
		entries = append(entries, Entry{
			Position:    i + 1,
			AccountID:   a.ID,
			DisplayName: a.DisplayName,
			Level:       a.Progress.Level,
			LifetimeXP:  a.Progress.LifetimeXP,
		})
	}
	return entries, nil
}

// Warm seeds Redis from the store. It is used at consumer start so reads do
// not wait for the next XP event of every player.
func (b *Board) Warm(ctx context.Context, limit int) (int, error) {
	if b.client == nil {
		return 0, nil
	}
	accounts, err := b.source.TopAccounts(ctx, limit)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if _, err := b.Record(ctx, Standing{
			AccountID:   a.ID,
			DisplayName: a.DisplayName,
			Level:       a.Progress.Level,
			LifetimeXP:  a.Progress.LifetimeXP,
		}); err != nil {
			return 0, err
		}
	}
	b.logger.Info("leaderboard warmed", zap.Int("accounts", len(accounts)))
	return len(accounts), nil
}

// Rank returns the 1-based position of an account, or 0 when unranked.
func (b *Board) Rank(ctx context.Context, accountID string) (int, error) {
	if b.client != nil {
		pos, err := b.client.ZRevRank(ctx, KeyScores, accountID).Result()
		switch {
		case err == nil:
			return int(pos) + 1, nil
		case err != redis.Nil:
			b.logger.Warn("leaderboard cache unavailable, ranking from store", zap.Error(err))
		}
	}
	return b.source.RankAccount(ctx, accountID)
}
