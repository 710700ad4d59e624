package memory

import (
	"context"

	"example.com/aura/internal/domain"
)

// ListMissionTemplates returns the mission catalog.
func (s *Store) ListMissionTemplates(_ context.Context) ([]domain.MissionTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MissionTemplate(nil), s.templates...), nil
}

// SyncMissions hands the stored mission state to fn and stores its replacement.
// The stored day never moves backwards and a set holding completed missions
// is never replaced.
func (s *Store) SyncMissions(_ context.Context, accountID string, fn func(domain.MissionState) (*domain.MissionState, error)) (domain.MissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return domain.MissionState{}, domain.ErrAccountNotFound
	}
	current := cloneState(s.missions[accountID])
	next, err := fn(current)
	if err != nil {
		return domain.MissionState{}, err
	}
	if next == nil || next.Day < current.Day || (next.Day == current.Day && anyCompleted(current.Missions)) {
		return current, nil
	}
	s.missions[accountID] = cloneState(*next)
	return *next, nil
}

// CompleteMission marks a mission completed and applies its reward.
func (s *Store) CompleteMission(_ context.Context, accountID, missionID string, apply func(p *domain.Progress, xp int64) error) (*domain.MissionInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	state := cloneState(s.missions[accountID])
	idx := -1
	for i, m := range state.Missions {
		if m.ID == missionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrMissionNotFound
	}
	if state.Missions[idx].Completed {
		return nil, domain.ErrMissionAlreadyCompleted
	}

	progress := account.Progress
	if err := apply(&progress, state.Missions[idx].XP); err != nil {
		return nil, err
	}

	now := s.now()
	state.Missions[idx].Completed = true
	state.Missions[idx].CompletedAt = &now
	s.missions[accountID] = state

	account.Progress = progress
	account.UpdatedAt = now
	s.accounts[accountID] = account

	mission := state.Missions[idx]
	return &mission, nil
}

func anyCompleted(missions []domain.MissionInstance) bool {
	for _, m := range missions {
		if m.Completed {
			return true
		}
	}
	return false
}

func cloneState(state domain.MissionState) domain.MissionState {
	return domain.MissionState{
		Day:      state.Day,
		Missions: append([]domain.MissionInstance(nil), state.Missions...),
	}
}
