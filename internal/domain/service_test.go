package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePlayers struct {
	accounts map[string]*Account
	creds    map[string]*Credential
	days     map[string]bool
}

func (f *fakePlayers) GetAccount(_ context.Context, id string) (*Account, error) {
	return f.accounts[id], nil
}

func (f *fakePlayers) GetCredential(_ context.Context, id string, _ Provider) (*Credential, error) {
	return f.creds[id], nil
}

func (f *fakePlayers) ListActivities(context.Context, string, *Cursor, int) ([]ActivityRecord, *Cursor, error) {
	return nil, nil, nil
}

func (f *fakePlayers) HasActivityOn(_ context.Context, id, day string) (bool, error) {
	return f.days[id+"/"+day], nil
}

type flatRules int64

func (r flatRules) Threshold(int) int64 { return int64(r) }

func TestGetStanding(t *testing.T) {
	repo := &fakePlayers{
		accounts: map[string]*Account{
			"a": {ID: "a", Progress: Progress{Level: 3, XP: 250}},
			"b": {ID: "b", Progress: Progress{Level: 1}},
		},
		creds: map[string]*Credential{"a": {AccountID: "a", Connected: true}},
	}
	svc := NewService(repo, flatRules(1000))

	standing, err := svc.GetStanding(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, int64(750), standing.XPToNext)
	require.Equal(t, 25, standing.ProgressPercent)
	require.True(t, standing.StravaConnected)

	standing, err = svc.GetStanding(context.Background(), "b")
	require.NoError(t, err)
	require.False(t, standing.StravaConnected)
	require.Zero(t, standing.ProgressPercent)

	_, err = svc.GetStanding(context.Background(), "missing")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestVerifyActivityOn(t *testing.T) {
	repo := &fakePlayers{days: map[string]bool{"a/2026-03-01": true}}
	svc := NewService(repo, flatRules(1000))

	ok, err := svc.VerifyActivityOn(context.Background(), "a", "2026-03-01")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.VerifyActivityOn(context.Background(), "a", "2026-03-02")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.VerifyActivityOn(context.Background(), "a", "03/01/2026")
	require.Error(t, err)
}
