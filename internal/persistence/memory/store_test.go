package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/aura/internal/domain"
)

func TestLinkAccountReusesAthleteAccount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.LinkAccount(ctx, "Ana", domain.Credential{Provider: domain.ProviderStrava, AthleteID: 7, AccessToken: "a1"})
	require.NoError(t, err)
	require.Equal(t, 1, first.Progress.Level)

	second, err := store.LinkAccount(ctx, "Ana Lima", domain.Credential{Provider: domain.ProviderStrava, AthleteID: 7, AccessToken: "a2"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ana Lima", second.DisplayName)

	cred, err := store.FindCredentialByAthlete(ctx, domain.ProviderStrava, 7)
	require.NoError(t, err)
	require.Equal(t, "a2", cred.AccessToken)
	require.Equal(t, first.ID, cred.AccountID)
}

func TestCommitActivityRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.PutAccount(domain.Account{DisplayName: "Ana"})

	record := domain.ActivityRecord{Provider: domain.ProviderStrava, ExternalID: 1, AccountID: account.ID, XPAwarded: 100, CoinsAwarded: 5}
	credit := func(p *domain.Progress) error {
		p.XP += 100
		p.LifetimeXP += 100
		return nil
	}

	require.NoError(t, store.CommitActivity(ctx, record, credit))
	require.ErrorIs(t, store.CommitActivity(ctx, record, credit), domain.ErrDuplicateActivity)

	stored, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), stored.Progress.XP)
	require.Equal(t, int64(5), stored.Coins)
}

func TestCommitActivityLeavesStateOnApplyError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.PutAccount(domain.Account{})

	err := store.CommitActivity(ctx, domain.ActivityRecord{Provider: domain.ProviderStrava, ExternalID: 9, AccountID: account.ID, CoinsAwarded: 3},
		func(*domain.Progress) error { return domain.ErrNegativeXP })
	require.ErrorIs(t, err, domain.ErrNegativeXP)

	exists, err := store.ActivityExists(ctx, domain.ProviderStrava, 9)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListActivitiesPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.PutAccount(domain.Account{})

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CommitActivity(ctx, domain.ActivityRecord{
			ID:         fmt.Sprintf("rec-%d", i),
			Provider:   domain.ProviderStrava,
			ExternalID: int64(i),
			AccountID:  account.ID,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}, func(*domain.Progress) error { return nil }))
	}

	page, cursor, err := store.ListActivities(ctx, account.ID, nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"rec-4", "rec-3"}, ids(page))
	require.NotNil(t, cursor)

	page, cursor, err = store.ListActivities(ctx, account.ID, cursor, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"rec-2", "rec-1"}, ids(page))

	page, cursor, err = store.ListActivities(ctx, account.ID, cursor, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"rec-0"}, ids(page))
	require.Nil(t, cursor)
}

func TestHasActivityOn(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.PutAccount(domain.Account{})
	require.NoError(t, store.CommitActivity(ctx, domain.ActivityRecord{
		Provider: domain.ProviderStrava, ExternalID: 3, AccountID: account.ID, StartDateLocal: "2024-05-01T06:15:00Z",
	}, func(*domain.Progress) error { return nil }))

	ok, err := store.HasActivityOn(ctx, account.ID, "2024-05-01")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.HasActivityOn(ctx, account.ID, "2024-05-02")
	require.NoError(t, err)
	require.False(t, ok)
}

func ids(records []domain.ActivityRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
