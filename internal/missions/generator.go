// Package missions samples the daily mission set of an account and pays out
// completed missions through the ledger.
package missions

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/ledger"
)

// DefaultPerDay is the size of a daily mission set.
const DefaultPerDay = 3

// FallbackCatalog is used when the stored catalog is empty.
func FallbackCatalog() []domain.MissionTemplate {
	return []domain.MissionTemplate{{ID: "fallback", Description: "Treinar hoje", XP: 50}}
}

// Store persists mission catalog and per-account mission state.
type Store interface {
	ListMissionTemplates(ctx context.Context) ([]domain.MissionTemplate, error)
	SyncMissions(ctx context.Context, accountID string, fn func(domain.MissionState) (*domain.MissionState, error)) (domain.MissionState, error)
	CompleteMission(ctx context.Context, accountID, missionID string, apply func(p *domain.Progress, xp int64) error) (*domain.MissionInstance, error)
}

// Option configures the Generator.
type Option func(*Generator)

// WithPerDay overrides DefaultPerDay.
func WithPerDay(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.perDay = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLocation sets the timezone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the Generator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator produces and completes daily missions.
type Generator struct {
	store  Store
	ledger *ledger.Ledger
	perDay int
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator constructs a Generator.
func NewGenerator(store Store, l *ledger.Ledger, opts ...Option) *Generator {
	g := &Generator{
		store:  store,
		ledger: l,
		perDay: DefaultPerDay,
		now:    time.Now,
		loc:    time.UTC,
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Today returns the current calendar day.
func (g *Generator) Today() string {
	return domain.DayOf(g.now().In(g.loc))
}

// GenerateOrFetch returns the account's mission set for today. A set already
// generated today is returned unchanged; otherwise min(perDay, |catalog|)
// templates are sampled without replacement and stored as today's set. A
// stored set for a later day is never replaced and is returned as is.
func (g *Generator) GenerateOrFetch(ctx context.Context, accountID, today string) ([]domain.MissionInstance, error) {
	if _, err := time.Parse(domain.DayLayout, today); err != nil {
		return nil, err
	}

	templates, err := g.store.ListMissionTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		g.logger.Warn("mission catalog empty, using fallback", zap.String("account_id", accountID))
		templates = FallbackCatalog()
	}

	generated := false
	state, err := g.store.SyncMissions(ctx, accountID, func(current domain.MissionState) (*domain.MissionState, error) {
		if current.Active(today) {
			return nil, nil
		}
		// Day strings sort chronologically.
		if current.Day > today {
			g.logger.Warn("mission day behind stored set, keeping stored set",
				zap.String("account_id", accountID),
				zap.String("day", today),
				zap.String("stored_day", current.Day),
			)
			return nil, nil
		}
		generated = true
		return &domain.MissionState{Day: today, Missions: g.instantiate(accountID, today, g.sample(templates))}, nil
	})
	if err != nil {
		return nil, err
	}

	if generated {
		missionsGenerated.Inc()
		g.logger.Info("daily missions generated",
			zap.String("account_id", accountID),
			zap.String("day", today),
			zap.Int("count", len(state.Missions)),
		)
	}
	return state.Missions, nil
}

// Complete marks a mission of today's set completed and credits its XP.
func (g *Generator) Complete(ctx context.Context, accountID, missionID string) (*domain.MissionInstance, ledger.Result, error) {
	var result ledger.Result
	var reward int64
	mission, err := g.store.CompleteMission(ctx, accountID, missionID, func(p *domain.Progress, xp int64) error {
		reward = xp
		return g.ledger.Mutation(xp, &result)(p)
	})
	if err != nil {
		return nil, ledger.Result{}, err
	}

	g.ledger.Committed(accountID, reward, result)
	missionsCompleted.Inc()
	return mission, result, nil
}

func (g *Generator) sample(templates []domain.MissionTemplate) []domain.MissionTemplate {
	n := g.perDay
	if len(templates) < n {
		n = len(templates)
	}

	g.mu.Lock()
	perm := g.rng.Perm(len(templates))
	g.mu.Unlock()

	picked := make([]domain.MissionTemplate, 0, n)
	for _, idx := range perm[:n] {
		picked = append(picked, templates[idx])
	}
	return picked
}

func (g *Generator) instantiate(accountID, day string, templates []domain.MissionTemplate) []domain.MissionInstance {
	instances := make([]domain.MissionInstance, 0, len(templates))
	for slot, tpl := range templates {
		instances = append(instances, domain.MissionInstance{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Day:         day,
			Slot:        slot,
			TemplateID:  tpl.ID,
			Description: tpl.Description,
			XP:          tpl.XP,
		})
	}
	return instances
}
