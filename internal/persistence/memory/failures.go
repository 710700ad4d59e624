package memory

import (
	"context"

	"example.com/aura/internal/domain"
)

// RecordFailure stores a failed webhook notification.
func (s *Store) RecordFailure(_ context.Context, f domain.WebhookFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFailure++
	f.ID = s.nextFailure
	f.Attempts = 1
	f.CreatedAt = s.now()
	f.ResolvedAt = nil
	s.failures = append(s.failures, f)
	return nil
}

// ListFailures returns unresolved failures, oldest first.
func (s *Store) ListFailures(_ context.Context, limit int) ([]domain.WebhookFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WebhookFailure, 0)
	for _, f := range s.failures {
		if f.ResolvedAt != nil {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ResolveFailure marks a failure as handled.
func (s *Store) ResolveFailure(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.failures {
		if s.failures[i].ID == id {
			now := s.now()
			s.failures[i].ResolvedAt = &now
		}
	}
	return nil
}

// RecordFailureAttempt bumps the attempt counter after an unsuccessful replay.
func (s *Store) RecordFailureAttempt(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.failures {
		if s.failures[i].ID == id {
			s.failures[i].Attempts++
			s.failures[i].Reason = reason
		}
	}
	return nil
}
