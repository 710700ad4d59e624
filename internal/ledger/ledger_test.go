package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/aura/internal/domain"
)

func TestLedgerApplyXPPersistsProgress(t *testing.T) {
	store := &lockingStore{progress: map[string]*domain.Progress{"acc-1": {Level: 1, XP: 950}}}
	l := New(store, DefaultRules(), zaptest.NewLogger(t))

	result, err := l.ApplyXP(context.Background(), "acc-1", 200)
	require.NoError(t, err)

	require.Equal(t, 2, result.NewLevel)
	require.Equal(t, domain.Progress{Level: 2, XP: 150, Crystals: 10, LifetimeXP: 200}, *store.progress["acc-1"])
}

func TestLedgerApplyXPUnknownAccount(t *testing.T) {
	store := &lockingStore{progress: map[string]*domain.Progress{}}
	l := New(store, DefaultRules(), nil)

	_, err := l.ApplyXP(context.Background(), "missing", 10)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLedgerApplyXPConcurrentCreditsAreNotLost(t *testing.T) {
	store := &lockingStore{progress: map[string]*domain.Progress{"acc-1": {Level: 1}}}
	l := New(store, DefaultRules(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyXP(context.Background(), "acc-1", 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 5000 XP: 1000 + 2000 to reach level 3 with 2000 carried.
	p := store.progress["acc-1"]
	require.Equal(t, int64(5000), p.LifetimeXP)
	require.Equal(t, 3, p.Level)
	require.Equal(t, int64(2000), p.XP)
	require.Equal(t, int64(20), p.Crystals)
}

type lockingStore struct {
	mu       sync.Mutex
	progress map[string]*domain.Progress
}

func (s *lockingStore) UpdateProgress(_ context.Context, accountID string, fn func(*domain.Progress) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.progress[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	next := *current
	if err := fn(&next); err != nil {
		return err
	}
	if next.Level < current.Level {
		return errors.New("level decreased")
	}
	*current = next
	return nil
}
