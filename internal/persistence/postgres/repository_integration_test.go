//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/events"
	"example.com/aura/internal/ledger"
	"example.com/aura/internal/testsupport"
)

func newRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)
	pool, _ := testsupport.StartPostgres(ctx, t)
	return NewRepository(pool), pool
}

func linkAthlete(t *testing.T, repo *Repository, athleteID int64, name string) *domain.Account {
	t.Helper()
	account, err := repo.LinkAccount(context.Background(), name, domain.Credential{
		Provider:     domain.ProviderStrava,
		AthleteID:    athleteID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return account
}

func countOutbox(t *testing.T, pool *pgxpool.Pool, aggregateID, eventType string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1 AND event_type=$2`, aggregateID, eventType).Scan(&n))
	return n
}

func TestLinkAccountReusesAccountForAthlete(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	first := linkAthlete(t, repo, 101, "Ana Lima")
	require.Equal(t, 1, first.Progress.Level)
	require.Zero(t, first.Coins)

	cred, err := repo.FindCredentialByAthlete(ctx, domain.ProviderStrava, 101)
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, first.ID, cred.AccountID)

	second, err := repo.LinkAccount(ctx, "", domain.Credential{
		Provider: domain.ProviderStrava, AthleteID: 101, AccessToken: "a2", RefreshToken: "r2", ExpiresAt: 42,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ana Lima", second.DisplayName)

	cred, err = repo.GetCredential(ctx, first.ID, domain.ProviderStrava)
	require.NoError(t, err)
	require.Equal(t, "a2", cred.AccessToken)
	require.Equal(t, int64(42), cred.ExpiresAt)

	missing, err := repo.GetAccount(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateTokens(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 202, "Bia")

	require.NoError(t, repo.UpdateTokens(ctx, account.ID, domain.ProviderStrava, domain.TokenSet{
		AccessToken: "fresh", RefreshToken: "rotated", ExpiresAt: 9999999999,
	}))
	cred, err := repo.GetCredential(ctx, account.ID, domain.ProviderStrava)
	require.NoError(t, err)
	require.Equal(t, "fresh", cred.AccessToken)
	require.Equal(t, "rotated", cred.RefreshToken)

	err = repo.UpdateTokens(ctx, uuid.NewString(), domain.ProviderStrava, domain.TokenSet{AccessToken: "x"})
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestCommitActivityCreditsOnce(t *testing.T) {
	repo, pool := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 303, "Caio")
	l := ledger.New(repo, ledger.DefaultRules(), zaptest.NewLogger(t))

	record := domain.ActivityRecord{
		Provider:       domain.ProviderStrava,
		ExternalID:     9001,
		AccountID:      account.ID,
		ActivityType:   "Run",
		Name:           "Morning Run",
		DistanceM:      10000,
		StartDateLocal: "2024-05-01T06:30:00Z",
		XPAwarded:      1050,
		CoinsAwarded:   52,
		Bonuses:        []string{"early_bird"},
	}

	var result ledger.Result
	require.NoError(t, repo.CommitActivity(ctx, record, l.Mutation(record.XPAwarded, &result)))
	require.True(t, result.LeveledUp)

	err := repo.CommitActivity(ctx, record, l.Mutation(record.XPAwarded, &result))
	require.ErrorIs(t, err, domain.ErrDuplicateActivity)

	exists, err := repo.ActivityExists(ctx, domain.ProviderStrava, 9001)
	require.NoError(t, err)
	require.True(t, exists)

	stored, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Progress.Level)
	require.Equal(t, int64(50), stored.Progress.XP)
	require.Equal(t, int64(1050), stored.Progress.LifetimeXP)
	require.Equal(t, int64(10), stored.Progress.Crystals)
	require.Equal(t, int64(52), stored.Coins)

	require.Equal(t, 1, countOutbox(t, pool, account.ID, events.TypeActivityScored))
	require.Equal(t, 1, countOutbox(t, pool, account.ID, events.TypeXPApplied))
	require.Equal(t, 1, countOutbox(t, pool, account.ID, events.TypeLevelUp))

	ok, err := repo.HasActivityOn(ctx, account.ID, "2024-05-01")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.HasActivityOn(ctx, account.ID, "2024-05-02")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommitActivityUnknownAccount(t *testing.T) {
	repo, _ := newRepository(t)
	err := repo.CommitActivity(context.Background(), domain.ActivityRecord{
		Provider: domain.ProviderStrava, ExternalID: 1, AccountID: uuid.NewString(),
	}, func(*domain.Progress) error { return nil })
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestConcurrentCreditsSerialise(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 404, "Duda")
	l := ledger.New(repo, ledger.DefaultRules(), zaptest.NewLogger(t))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			var result ledger.Result
			errs <- repo.CommitActivity(ctx, domain.ActivityRecord{
				Provider: domain.ProviderStrava, ExternalID: int64(5000 + i), AccountID: account.ID,
				XPAwarded: 100, CoinsAwarded: 5, StartDateLocal: "2024-05-01T10:00:00Z",
			}, l.Mutation(100, &result))
		}(i)
		go func() {
			defer wg.Done()
			_, err := l.ApplyXP(ctx, account.ID, 50)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(workers*150), stored.Progress.LifetimeXP)
	require.Equal(t, int64(workers*5), stored.Coins)
	require.Equal(t, 2, stored.Progress.Level)
	require.Equal(t, int64(workers*150-1000), stored.Progress.XP)
}

func TestListActivitiesPaginates(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 505, "Eva")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CommitActivity(ctx, domain.ActivityRecord{
			Provider: domain.ProviderStrava, ExternalID: int64(100 + i), AccountID: account.ID,
			XPAwarded: 10, CoinsAwarded: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, func(p *domain.Progress) error { p.XP += 10; p.LifetimeXP += 10; return nil }))
	}

	var seen []int64
	var cursor *domain.Cursor
	for page := 0; page < 3; page++ {
		records, next, err := repo.ListActivities(ctx, account.ID, cursor, 2)
		require.NoError(t, err)
		for _, r := range records {
			seen = append(seen, r.ExternalID)
		}
		cursor = next
		if cursor == nil {
			break
		}
	}
	require.Equal(t, []int64{104, 103, 102, 101, 100}, seen)
}

func TestMissionLifecycle(t *testing.T) {
	repo, pool := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 606, "Fabi")
	l := ledger.New(repo, ledger.DefaultRules(), zaptest.NewLogger(t))

	templates, err := repo.ListMissionTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 3)

	const day = "2024-05-01"
	state, err := repo.SyncMissions(ctx, account.ID, func(current domain.MissionState) (*domain.MissionState, error) {
		require.False(t, current.Active(day))
		missions := make([]domain.MissionInstance, 0, len(templates))
		for i, tpl := range templates {
			missions = append(missions, domain.MissionInstance{
				ID: uuid.NewString(), AccountID: account.ID, Day: day, Slot: i,
				TemplateID: tpl.ID, Description: tpl.Description, XP: tpl.XP,
			})
		}
		return &domain.MissionState{Day: day, Missions: missions}, nil
	})
	require.NoError(t, err)
	require.Len(t, state.Missions, 3)

	again, err := repo.SyncMissions(ctx, account.ID, func(current domain.MissionState) (*domain.MissionState, error) {
		require.True(t, current.Active(day))
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, state.Missions[0].ID, again.Missions[0].ID)

	target := state.Missions[0]
	var result ledger.Result
	mission, err := repo.CompleteMission(ctx, account.ID, target.ID, func(p *domain.Progress, xp int64) error {
		return l.Mutation(xp, &result)(p)
	})
	require.NoError(t, err)
	require.True(t, mission.Completed)
	require.Equal(t, target.XP, result.LifetimeXP)

	_, err = repo.CompleteMission(ctx, account.ID, target.ID, func(p *domain.Progress, xp int64) error {
		return l.Mutation(xp, &result)(p)
	})
	require.ErrorIs(t, err, domain.ErrMissionAlreadyCompleted)

	_, err = repo.CompleteMission(ctx, account.ID, uuid.NewString(), func(*domain.Progress, int64) error { return nil })
	require.ErrorIs(t, err, domain.ErrMissionNotFound)

	stored, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, target.XP, stored.Progress.LifetimeXP)
	require.Equal(t, 1, countOutbox(t, pool, account.ID, events.TypeXPApplied))
}

func TestSyncMissionsNeverRewindsDay(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	account := linkAthlete(t, repo, 607, "Gabi")

	templates, err := repo.ListMissionTemplates(ctx)
	require.NoError(t, err)
	build := func(day string) func(domain.MissionState) (*domain.MissionState, error) {
		return func(domain.MissionState) (*domain.MissionState, error) {
			missions := make([]domain.MissionInstance, 0, len(templates))
			for i, tpl := range templates {
				missions = append(missions, domain.MissionInstance{
					ID: uuid.NewString(), AccountID: account.ID, Day: day, Slot: i,
					TemplateID: tpl.ID, Description: tpl.Description, XP: tpl.XP,
				})
			}
			return &domain.MissionState{Day: day, Missions: missions}, nil
		}
	}

	state, err := repo.SyncMissions(ctx, account.ID, build("2024-05-02"))
	require.NoError(t, err)
	_, err = repo.CompleteMission(ctx, account.ID, state.Missions[0].ID, func(*domain.Progress, int64) error { return nil })
	require.NoError(t, err)

	rewound, err := repo.SyncMissions(ctx, account.ID, build("2024-05-01"))
	require.NoError(t, err)
	require.Equal(t, "2024-05-02", rewound.Day)

	replaced, err := repo.SyncMissions(ctx, account.ID, build("2024-05-02"))
	require.NoError(t, err)
	require.Equal(t, state.Missions[0].ID, replaced.Missions[0].ID)
	require.True(t, replaced.Missions[0].Completed)

	_, err = repo.CompleteMission(ctx, account.ID, state.Missions[0].ID, func(*domain.Progress, int64) error { return nil })
	require.ErrorIs(t, err, domain.ErrMissionAlreadyCompleted)
}

func TestRankAccountMatchesTopAccounts(t *testing.T) {
	repo, pool := newRepository(t)
	ctx := context.Background()
	high := linkAthlete(t, repo, 701, "Hana")
	low := linkAthlete(t, repo, 702, "Igor")
	_, err := pool.Exec(ctx, `UPDATE accounts SET lifetime_xp=$2 WHERE account_id=$1`, high.ID, 5000)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE accounts SET lifetime_xp=$2 WHERE account_id=$1`, low.ID, 10)
	require.NoError(t, err)

	top, err := repo.TopAccounts(ctx, 10)
	require.NoError(t, err)
	for i, a := range top {
		rank, err := repo.RankAccount(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, i+1, rank)
	}

	rank, err := repo.RankAccount(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Zero(t, rank)
}

func TestWebhookFailures(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordFailure(ctx, domain.WebhookFailure{
		Stage: domain.StageProviderFetch, Reason: "status 500", OwnerID: 7, ObjectID: 70,
		Payload: []byte(`{"object_type":"activity"}`),
	}))
	require.NoError(t, repo.RecordFailure(ctx, domain.WebhookFailure{
		Stage: domain.StageTokenRefresh, Reason: "invalid_grant", OwnerID: 8, ObjectID: 80,
	}))

	failures, err := repo.ListFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	require.Equal(t, domain.StageProviderFetch, failures[0].Stage)
	require.JSONEq(t, `{"object_type":"activity"}`, string(failures[0].Payload))

	require.NoError(t, repo.RecordFailureAttempt(ctx, failures[1].ID, "still failing"))
	require.NoError(t, repo.ResolveFailure(ctx, failures[0].ID))

	remaining, err := repo.ListFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "still failing", remaining[0].Reason)
	require.Equal(t, 1, remaining[0].Attempts)
}
