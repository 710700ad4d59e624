package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"example.com/aura/internal/domain"
)

// ActivityExists reports whether the provider activity already has a record.
func (s *Store) ActivityExists(_ context.Context, provider domain.Provider, externalID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.activities[activityKey{provider, externalID}]
	return ok, nil
}

// CommitActivity stores the record and applies the ledger mutation atomically.
func (s *Store) CommitActivity(_ context.Context, record domain.ActivityRecord, apply func(*domain.Progress) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[record.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	key := activityKey{record.Provider, record.ExternalID}
	if _, exists := s.activities[key]; exists {
		return domain.ErrDuplicateActivity
	}

	progress := account.Progress
	if err := apply(&progress); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.Bonuses = append([]string(nil), record.Bonuses...)
	s.activities[key] = record

	account.Progress = progress
	account.Coins += record.CoinsAwarded
	account.UpdatedAt = s.now()
	s.accounts[account.ID] = account
	return nil
}

// ListActivities returns an account's activity history, newest first.
func (s *Store) ListActivities(_ context.Context, accountID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	if limit <= 0 {
		return []domain.ActivityRecord{}, nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.ActivityRecord, 0)
	for _, rec := range s.activities {
		if rec.AccountID == accountID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return newer(records[i], records[j]) })

	results := make([]domain.ActivityRecord, 0, limit)
	for _, rec := range records {
		if cursor != nil && !olderThanCursor(rec, cursor) {
			continue
		}
		results = append(results, rec)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

func newer(a, b domain.ActivityRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func olderThanCursor(rec domain.ActivityRecord, cursor *domain.Cursor) bool {
	if !rec.CreatedAt.Equal(cursor.CreatedAt) {
		return rec.CreatedAt.Before(cursor.CreatedAt)
	}
	return rec.ID < cursor.ID
}

// HasActivityOn reports whether an activity started on the provider-local day.
func (s *Store) HasActivityOn(_ context.Context, accountID, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.activities {
		if rec.AccountID == accountID && rec.LocalDay() == day {
			return true, nil
		}
	}
	return false, nil
}
