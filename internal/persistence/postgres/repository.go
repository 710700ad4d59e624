// Package postgres implements the stores on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/aura/internal/domain"
)

// Repository provides Postgres-backed persistence for accounts, credentials,
// activity history, missions and their outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const accountColumns = `account_id, display_name, xp, level, lifetime_xp, coins, crystals, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.DisplayName, &a.Progress.XP, &a.Progress.Level, &a.Progress.LifetimeXP, &a.Coins, &a.Progress.Crystals, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetAccount retrieves an account by ID.
func (r *Repository) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, nil
	}

	account, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id=$1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// TopAccounts returns accounts ordered by lifetime XP.
func (r *Repository) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY lifetime_xp DESC, account_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// RankAccount returns the account's position in TopAccounts order, or 0 when
// it does not exist.
func (r *Repository) RankAccount(ctx context.Context, accountID string) (int, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return 0, nil
	}
	var pos int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 + (SELECT COUNT(*) FROM accounts a
                      WHERE a.lifetime_xp > me.lifetime_xp
                         OR (a.lifetime_xp = me.lifetime_xp AND a.account_id < me.account_id))
           FROM accounts me WHERE me.account_id = $1`, accountID).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return pos, err
}

const credentialColumns = `account_id, provider, athlete_id, access_token, refresh_token, expires_at, connected, updated_at`

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var c domain.Credential
	var provider string
	if err := row.Scan(&c.AccountID, &provider, &c.AthleteID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.Connected, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Provider = domain.Provider(provider)
	return &c, nil
}

// GetCredential returns the credential linking accountID to provider.
func (r *Repository) GetCredential(ctx context.Context, accountID string, provider domain.Provider) (*domain.Credential, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, nil
	}
	return scanCredential(r.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM integration_credentials WHERE account_id=$1 AND provider=$2`,
		accountID, string(provider)))
}

// FindCredentialByAthlete resolves the account linked to a provider athlete.
func (r *Repository) FindCredentialByAthlete(ctx context.Context, provider domain.Provider, athleteID int64) (*domain.Credential, error) {
	return scanCredential(r.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM integration_credentials WHERE provider=$1 AND athlete_id=$2 AND connected`,
		string(provider), athleteID))
}

// UpdateTokens overwrites the token fields in a single statement.
func (r *Repository) UpdateTokens(ctx context.Context, accountID string, provider domain.Provider, set domain.TokenSet) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE integration_credentials
            SET access_token=$3, refresh_token=$4, expires_at=$5, updated_at=NOW()
          WHERE account_id=$1 AND provider=$2`,
		accountID, string(provider), set.AccessToken, set.RefreshToken, set.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// LinkAccount upserts the account owning cred's provider athlete and stores
// the credential. New athletes get a fresh account at level 1.
func (r *Repository) LinkAccount(ctx context.Context, displayName string, cred domain.Credential) (*domain.Account, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var accountID string
	err = tx.QueryRow(ctx,
		`SELECT account_id FROM integration_credentials WHERE provider=$1 AND athlete_id=$2 FOR UPDATE`,
		string(cred.Provider), cred.AthleteID).Scan(&accountID)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		accountID = uuid.NewString()
		progress := domain.NewProgress()
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (account_id, display_name, level) VALUES ($1,$2,$3)`,
			accountID, displayName, progress.Level); err != nil {
			return nil, fmt.Errorf("insert account: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO integration_credentials (account_id, provider, athlete_id, access_token, refresh_token, expires_at, connected)
             VALUES ($1,$2,$3,$4,$5,$6,TRUE)`,
			accountID, string(cred.Provider), cred.AthleteID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt); err != nil {
			return nil, fmt.Errorf("insert credential: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET display_name=COALESCE(NULLIF($2,''), display_name), updated_at=NOW() WHERE account_id=$1`,
			accountID, displayName); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE integration_credentials
                SET access_token=$3, refresh_token=$4, expires_at=$5, connected=TRUE, updated_at=NOW()
              WHERE provider=$1 AND athlete_id=$2`,
			string(cred.Provider), cred.AthleteID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt); err != nil {
			return nil, err
		}
	}

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id=$1`, accountID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &account, nil
}
