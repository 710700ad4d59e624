package domain

import "errors"

var (
	// ErrInvalidEvent marks a webhook payload that is malformed or not an activity creation.
	ErrInvalidEvent = errors.New("invalid or irrelevant event")
	// ErrAccountNotFound is returned when no account matches the lookup key.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateActivity indicates the external activity already has a record.
	ErrDuplicateActivity = errors.New("activity already recorded")
	// ErrTokenRefreshFailed wraps any failure of the refresh-token exchange.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
	// ErrProviderFetchFailed wraps failures fetching activity detail from the provider.
	ErrProviderFetchFailed = errors.New("provider fetch failed")
	// ErrPersistenceFailure wraps store rejections while committing an activity.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrCredentialNotFound is returned when an account has no linked credential.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrMissionNotFound is returned when a mission id is unknown for the account.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrMissionAlreadyCompleted is returned when a mission reward was already claimed.
	ErrMissionAlreadyCompleted = errors.New("mission already completed")
	// ErrNegativeXP rejects negative ledger deltas.
	ErrNegativeXP = errors.New("xp delta must not be negative")
)
