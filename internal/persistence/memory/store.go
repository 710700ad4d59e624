// Package memory implements the stores in process for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/aura/internal/domain"
)

// DefaultTemplates mirrors the seeded Postgres catalog.
func DefaultTemplates() []domain.MissionTemplate {
	return []domain.MissionTemplate{
		{ID: "m1", Description: "Beber 2L de água", XP: 50},
		{ID: "m2", Description: "Dormir 8h", XP: 100},
		{ID: "m3", Description: "Treinar 30min", XP: 80},
	}
}

type credentialKey struct {
	accountID string
	provider  domain.Provider
}

type activityKey struct {
	provider   domain.Provider
	externalID int64
}

// Store keeps every aggregate behind one mutex, which also serialises
// progress mutations per account.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]domain.Account
	credentials map[credentialKey]domain.Credential
	activities  map[activityKey]domain.ActivityRecord
	templates   []domain.MissionTemplate
	missions    map[string]domain.MissionState
	failures    []domain.WebhookFailure
	nextFailure int64
	now         func() time.Time
}

// NewStore constructs an empty Store seeded with DefaultTemplates.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]domain.Account),
		credentials: make(map[credentialKey]domain.Credential),
		activities:  make(map[activityKey]domain.ActivityRecord),
		templates:   DefaultTemplates(),
		missions:    make(map[string]domain.MissionState),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetTemplates replaces the mission catalog.
func (s *Store) SetTemplates(templates []domain.MissionTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append([]domain.MissionTemplate(nil), templates...)
}

// PutAccount inserts or replaces an account, assigning an ID when empty.
func (s *Store) PutAccount(account domain.Account) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(account.ID) == "" {
		account.ID = uuid.NewString()
	}
	if account.Progress.Level < 1 {
		account.Progress.Level = 1
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	account.UpdatedAt = s.now()
	s.accounts[account.ID] = account
	return account
}

// PutCredential inserts or replaces a credential.
func (s *Store) PutCredential(cred domain.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred.UpdatedAt = s.now()
	s.credentials[credentialKey{cred.AccountID, cred.Provider}] = cred
}

// GetAccount implements domain.PlayerRepository.
func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// TopAccounts returns accounts ordered by lifetime XP.
func (s *Store) TopAccounts(_ context.Context, limit int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Progress.LifetimeXP != accounts[j].Progress.LifetimeXP {
			return accounts[i].Progress.LifetimeXP > accounts[j].Progress.LifetimeXP
		}
		return accounts[i].ID < accounts[j].ID
	})
	if limit >= 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// RankAccount returns the account's position in TopAccounts order, or 0 when
// it does not exist.
func (s *Store) RankAccount(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return 0, nil
	}
	pos := 1
	for id, a := range s.accounts {
		xp := a.Progress.LifetimeXP
		if xp > account.Progress.LifetimeXP || (xp == account.Progress.LifetimeXP && id < accountID) {
			pos++
		}
	}
	return pos, nil
}

// GetCredential returns the credential linking accountID to provider.
func (s *Store) GetCredential(_ context.Context, accountID string, provider domain.Provider) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[credentialKey{accountID, provider}]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// FindCredentialByAthlete resolves the connected credential of a provider athlete.
func (s *Store) FindCredentialByAthlete(_ context.Context, provider domain.Provider, athleteID int64) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.Provider == provider && cred.AthleteID == athleteID && cred.Connected {
			c := cred
			return &c, nil
		}
	}
	return nil, nil
}

// UpdateTokens overwrites the token fields of a credential.
func (s *Store) UpdateTokens(_ context.Context, accountID string, provider domain.Provider, set domain.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credentialKey{accountID, provider}
	cred, ok := s.credentials[key]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	cred.AccessToken = set.AccessToken
	cred.RefreshToken = set.RefreshToken
	cred.ExpiresAt = set.ExpiresAt
	cred.UpdatedAt = s.now()
	s.credentials[key] = cred
	return nil
}

// LinkAccount upserts the account owning cred's provider athlete.
func (s *Store) LinkAccount(_ context.Context, displayName string, cred domain.Credential) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accountID string
	for key, existing := range s.credentials {
		if existing.Provider == cred.Provider && existing.AthleteID == cred.AthleteID {
			accountID = key.accountID
			break
		}
	}

	now := s.now()
	if accountID == "" {
		accountID = uuid.NewString()
		s.accounts[accountID] = domain.Account{
			ID:          accountID,
			DisplayName: displayName,
			Progress:    domain.NewProgress(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	} else if displayName != "" {
		account := s.accounts[accountID]
		account.DisplayName = displayName
		account.UpdatedAt = now
		s.accounts[accountID] = account
	}

	cred.AccountID = accountID
	cred.Connected = true
	cred.UpdatedAt = now
	s.credentials[credentialKey{accountID, cred.Provider}] = cred

	account := s.accounts[accountID]
	return &account, nil
}

// UpdateProgress applies fn to the account's progress.
func (s *Store) UpdateProgress(_ context.Context, accountID string, fn func(*domain.Progress) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	progress := account.Progress
	if err := fn(&progress); err != nil {
		return err
	}
	account.Progress = progress
	account.UpdatedAt = s.now()
	s.accounts[accountID] = account
	return nil
}
