package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/events"
)

// ListMissionTemplates returns the mission catalog.
func (r *Repository) ListMissionTemplates(ctx context.Context) ([]domain.MissionTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT template_id, description, xp_reward FROM mission_templates ORDER BY template_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.MissionTemplate, 0)
	for rows.Next() {
		var tpl domain.MissionTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Description, &tpl.XP); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// SyncMissions locks the account's mission state and hands it to fn. A
// non-nil state returned by fn replaces the stored set for its day. The
// stored day only advances and completed rows are never deleted.
func (r *Repository) SyncMissions(ctx context.Context, accountID string, fn func(domain.MissionState) (*domain.MissionState, error)) (domain.MissionState, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return domain.MissionState{}, domain.ErrAccountNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.MissionState{}, err
	}
	defer tx.Rollback(ctx)

	var missionDay *time.Time
	if err := tx.QueryRow(ctx, `SELECT mission_day FROM accounts WHERE account_id=$1 FOR UPDATE`, accountID).Scan(&missionDay); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MissionState{}, domain.ErrAccountNotFound
		}
		return domain.MissionState{}, err
	}

	current := domain.MissionState{}
	if missionDay != nil {
		current.Day = missionDay.Format(domain.DayLayout)
		current.Missions, err = loadMissions(ctx, tx, accountID, *missionDay)
		if err != nil {
			return domain.MissionState{}, err
		}
	}

	next, err := fn(current)
	if err != nil {
		return domain.MissionState{}, err
	}
	if next == nil {
		return current, tx.Commit(ctx)
	}

	day, err := time.Parse(domain.DayLayout, next.Day)
	if err != nil {
		return domain.MissionState{}, fmt.Errorf("mission day: %w", err)
	}
	if missionDay != nil && day.Before(*missionDay) {
		return current, tx.Commit(ctx)
	}
	var completed int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM mission_instances WHERE account_id=$1 AND day=$2 AND completed`,
		accountID, day).Scan(&completed); err != nil {
		return domain.MissionState{}, err
	}
	if completed > 0 {
		return current, tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mission_instances WHERE account_id=$1 AND day=$2 AND NOT completed`, accountID, day); err != nil {
		return domain.MissionState{}, err
	}
	for _, m := range next.Missions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO mission_instances (mission_id, account_id, day, slot, template_id, description, xp_reward, completed, completed_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, accountID, day, m.Slot, m.TemplateID, m.Description, m.XP, m.Completed, m.CompletedAt); err != nil {
			return domain.MissionState{}, fmt.Errorf("insert mission: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET mission_day=$2, updated_at=NOW() WHERE account_id=$1 AND (mission_day IS NULL OR mission_day < $2)`,
		accountID, day); err != nil {
		return domain.MissionState{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.MissionState{}, err
	}
	return *next, nil
}

const missionColumns = `mission_id, account_id, day, slot, template_id, description, xp_reward, completed, completed_at`

func scanMission(row pgx.Row) (domain.MissionInstance, error) {
	var m domain.MissionInstance
	var day time.Time
	if err := row.Scan(&m.ID, &m.AccountID, &day, &m.Slot, &m.TemplateID, &m.Description, &m.XP, &m.Completed, &m.CompletedAt); err != nil {
		return domain.MissionInstance{}, err
	}
	m.Day = day.Format(domain.DayLayout)
	return m, nil
}

func loadMissions(ctx context.Context, tx pgx.Tx, accountID string, day time.Time) ([]domain.MissionInstance, error) {
	rows, err := tx.Query(ctx, `SELECT `+missionColumns+` FROM mission_instances WHERE account_id=$1 AND day=$2 ORDER BY slot`, accountID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missions := make([]domain.MissionInstance, 0)
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// CompleteMission marks a mission of the account's current set completed and
// applies its reward through apply, all in one transaction.
func (r *Repository) CompleteMission(ctx context.Context, accountID, missionID string, apply func(p *domain.Progress, xp int64) error) (*domain.MissionInstance, error) {
	if _, err := uuid.Parse(missionID); err != nil {
		return nil, domain.ErrMissionNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	mission, err := scanMission(tx.QueryRow(ctx,
		`UPDATE mission_instances m
            SET completed=TRUE, completed_at=NOW()
           FROM accounts a
          WHERE m.mission_id=$1 AND m.account_id=$2 AND a.account_id=m.account_id
            AND m.day=a.mission_day AND NOT m.completed
      RETURNING m.mission_id, m.account_id, m.day, m.slot, m.template_id, m.description, m.xp_reward, m.completed, m.completed_at`,
		missionID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missionConflict(ctx, tx, accountID, missionID)
	}
	if err != nil {
		return nil, err
	}

	before := account.Progress
	if err := apply(&account.Progress, mission.XP); err != nil {
		return nil, err
	}
	if err := saveProgress(ctx, tx, &account, 0); err != nil {
		return nil, err
	}
	if err := emitLedgerEvents(ctx, tx, account, before, events.SourceMission, "mission:"+mission.ID, r.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *Repository) missionConflict(ctx context.Context, tx pgx.Tx, accountID, missionID string) error {
	var completed bool
	err := tx.QueryRow(ctx,
		`SELECT m.completed FROM mission_instances m JOIN accounts a ON a.account_id=m.account_id
          WHERE m.mission_id=$1 AND m.account_id=$2 AND m.day=a.mission_day`,
		missionID, accountID).Scan(&completed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrMissionNotFound
	case err != nil:
		return err
	case completed:
		return domain.ErrMissionAlreadyCompleted
	default:
		return domain.ErrMissionNotFound
	}
}
