package domain

import (
	"context"
	"time"
)

// PlayerRepository captures the read operations behind the player API.
type PlayerRepository interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	GetCredential(ctx context.Context, accountID string, provider Provider) (*Credential, error)
	ListActivities(ctx context.Context, accountID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error)
	HasActivityOn(ctx context.Context, accountID, day string) (bool, error)
}

// LevelRules exposes the level threshold ladder.
type LevelRules interface {
	Threshold(level int) int64
}

// Standing is the player status view.
type Standing struct {
	Account         Account
	XPToNext        int64
	ProgressPercent int
	StravaConnected bool
}

// Service serves player-facing reads.
type Service struct {
	repo  PlayerRepository
	rules LevelRules
}

// NewService constructs a Service.
func NewService(repo PlayerRepository, rules LevelRules) *Service {
	return &Service{repo: repo, rules: rules}
}

// GetStanding returns level progress and balances for an account.
func (s *Service) GetStanding(ctx context.Context, accountID string) (*Standing, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	threshold := s.rules.Threshold(account.Progress.Level)
	standing := &Standing{Account: *account}
	if threshold > 0 {
		standing.XPToNext = threshold - account.Progress.XP
		standing.ProgressPercent = int(account.Progress.XP * 100 / threshold)
	}

	cred, err := s.repo.GetCredential(ctx, accountID, ProviderStrava)
	if err != nil {
		return nil, err
	}
	standing.StravaConnected = cred != nil && cred.Connected
	return standing, nil
}

// ListActivities fetches the activity history with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, accountID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error) {
	return s.repo.ListActivities(ctx, accountID, cursor, limit)
}

// VerifyActivityOn reports whether a recorded activity started on the given local day.
// It backs the anti-fraud check for self-declared workouts.
func (s *Service) VerifyActivityOn(ctx context.Context, accountID, day string) (bool, error) {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return false, err
	}
	return s.repo.HasActivityOn(ctx, accountID, day)
}
