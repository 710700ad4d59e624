// Package token keeps provider access tokens valid, refreshing them shortly
// before expiry.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"example.com/aura/internal/domain"
)

// DefaultSafetyMargin is how long before expiry a token is considered stale.
const DefaultSafetyMargin = 300 * time.Second

const (
	lockTTL          = 15 * time.Second
	peerPollInterval = 200 * time.Millisecond
	peerPollAttempts = 10
	refreshTimeout   = 15 * time.Second
)

// Store reads credentials and overwrites token fields in one atomic statement.
type Store interface {
	GetCredential(ctx context.Context, accountID string, provider domain.Provider) (*domain.Credential, error)
	UpdateTokens(ctx context.Context, accountID string, provider domain.Provider, set domain.TokenSet) error
}

// Refresher exchanges a refresh token at the provider.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error)
}

// Locker coordinates refreshes across service instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables cross-instance refresh coordination.
func WithLocker(l Locker) Option {
	return func(m *Manager) {
		m.locker = l
	}
}

// WithLogger sets the Manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(margin time.Duration) Option {
	return func(m *Manager) {
		if margin >= 0 {
			m.margin = margin
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager returns usable access tokens for linked credentials.
type Manager struct {
	store     Store
	refresher Refresher
	locker    Locker
	margin    time.Duration
	now       func() time.Time
	logger    *zap.Logger
	group     singleflight.Group
}

// NewManager constructs a Manager.
func NewManager(store Store, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		margin:    DefaultSafetyMargin,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidToken returns the stored access token while it is outside the safety
// margin, otherwise refreshes it and persists the new token set. Refresh
// failures leave the stored credential untouched and wrap
// domain.ErrTokenRefreshFailed.
func (m *Manager) ValidToken(ctx context.Context, cred *domain.Credential) (string, error) {
	if cred == nil {
		return "", domain.ErrCredentialNotFound
	}
	if m.fresh(cred) {
		tokenRequests.WithLabelValues("cached").Inc()
		return cred.AccessToken, nil
	}

	// The shared refresh is detached from each caller's cancellation.
	key := fmt.Sprintf("%s:%s", cred.Provider, cred.AccountID)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(refreshCtx, key, cred)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			tokenRequests.WithLabelValues("shared").Inc()
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) fresh(cred *domain.Credential) bool {
	return cred.AccessToken != "" && m.now().Unix() < cred.ExpiresAt-int64(m.margin/time.Second)
}

func (m *Manager) refresh(ctx context.Context, key string, cred *domain.Credential) (string, error) {
	// The caller's copy may predate a refresh that already landed.
	current, err := m.store.GetCredential(ctx, cred.AccountID, cred.Provider)
	switch {
	case err != nil:
		m.logger.Warn("reload credential failed", zap.String("account_id", cred.AccountID), zap.Error(err))
	case current != nil:
		if m.fresh(current) {
			tokenRequests.WithLabelValues("reloaded").Inc()
			return current.AccessToken, nil
		}
		cred = current
	}

	if m.locker != nil {
		unlock, acquired, err := m.locker.TryLock(ctx, "aura:token-refresh:"+key, lockTTL)
		switch {
		case err != nil:
			m.logger.Warn("refresh lock unavailable", zap.String("account_id", cred.AccountID), zap.Error(err))
		case acquired:
			defer unlock()
		default:
			if token, ok := m.awaitPeer(ctx, cred); ok {
				tokenRequests.WithLabelValues("peer").Inc()
				return token, nil
			}
		}
	}

	set, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err == nil && set.AccessToken == "" {
		err = errors.New("empty access token in refresh response")
	}
	if err != nil {
		tokenRefreshes.WithLabelValues("failure").Inc()
		m.logger.Error("token refresh failed", zap.String("account_id", cred.AccountID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}
	if set.RefreshToken == "" {
		set.RefreshToken = cred.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, cred.AccountID, cred.Provider, set); err != nil {
		tokenRefreshes.WithLabelValues("failure").Inc()
		m.logger.Error("persist refreshed token failed", zap.String("account_id", cred.AccountID), zap.Error(err))
		return "", fmt.Errorf("%w: persist tokens: %v", domain.ErrTokenRefreshFailed, err)
	}

	tokenRefreshes.WithLabelValues("success").Inc()
	m.logger.Debug("token refreshed",
		zap.String("account_id", cred.AccountID),
		zap.Time("expires_at", time.Unix(set.ExpiresAt, 0).UTC()),
	)
	return set.AccessToken, nil
}

// awaitPeer polls the store while another instance holds the refresh lock.
func (m *Manager) awaitPeer(ctx context.Context, cred *domain.Credential) (string, bool) {
	ticker := time.NewTicker(peerPollInterval)
	defer ticker.Stop()

	for i := 0; i < peerPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}
		current, err := m.store.GetCredential(ctx, cred.AccountID, cred.Provider)
		if err != nil || current == nil {
			continue
		}
		if m.fresh(current) {
			return current.AccessToken, true
		}
	}
	return "", false
}
