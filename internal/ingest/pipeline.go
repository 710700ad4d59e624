// Package ingest turns provider webhook notifications into credited activity
// records.
//
// A notification moves through filter, account resolution, duplicate check,
// token validation, activity fetch, scoring and a single persistence commit.
// Every stage ends in an Outcome; no error escapes as anything else.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/ledger"
	"example.com/aura/internal/observability"
	"example.com/aura/internal/scoring"
	"example.com/aura/internal/strava"
)

// DefaultTimeout bounds the network stages of one notification.
const DefaultTimeout = 10 * time.Second

// Outcome is the terminal state of one processed notification.
type Outcome string

const (
	OutcomeCredited            Outcome = "credited"
	OutcomeInvalidEvent        Outcome = "invalid_event"
	OutcomeAccountNotFound     Outcome = "account_not_found"
	OutcomeDuplicate           Outcome = "duplicate"
	OutcomeTokenRefreshFailed  Outcome = "token_refresh_failed"
	OutcomeProviderFetchFailed Outcome = "provider_fetch_failed"
	OutcomePersistenceFailure  Outcome = "persistence_failure"
)

// Succeeded reports whether the activity is credited, now or by an earlier delivery.
func (o Outcome) Succeeded() bool {
	return o == OutcomeCredited || o == OutcomeDuplicate
}

// Terminal reports whether processing the same notification again cannot
// change the result.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeTokenRefreshFailed, OutcomeProviderFetchFailed, OutcomePersistenceFailure:
		return false
	default:
		return true
	}
}

// Store is the persistence the pipeline needs.
type Store interface {
	FindCredentialByAthlete(ctx context.Context, provider domain.Provider, athleteID int64) (*domain.Credential, error)
	ActivityExists(ctx context.Context, provider domain.Provider, externalID int64) (bool, error)
	CommitActivity(ctx context.Context, record domain.ActivityRecord, apply func(*domain.Progress) error) error
}

// FailureStore keeps failed notifications for operator replay.
type FailureStore interface {
	RecordFailure(ctx context.Context, f domain.WebhookFailure) error
	ListFailures(ctx context.Context, limit int) ([]domain.WebhookFailure, error)
	ResolveFailure(ctx context.Context, id int64) error
	RecordFailureAttempt(ctx context.Context, id int64, reason string) error
}

// TokenSource yields a usable access token for a credential.
type TokenSource interface {
	ValidToken(ctx context.Context, cred *domain.Credential) (string, error)
}

// ActivityFetcher loads activity detail from the provider.
type ActivityFetcher interface {
	GetActivity(ctx context.Context, accessToken string, id int64) (*strava.Activity, error)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithFailureStore enables failure recording and replay.
func WithFailureStore(fs FailureStore) Option {
	return func(p *Pipeline) {
		p.failures = fs
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTimeout overrides DefaultTimeout. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline processes provider notifications.
type Pipeline struct {
	store    Store
	tokens   TokenSource
	fetcher  ActivityFetcher
	engine   *scoring.Engine
	ledger   *ledger.Ledger
	failures FailureStore
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(store Store, tokens TokenSource, fetcher ActivityFetcher, engine *scoring.Engine, l *ledger.Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		tokens:  tokens,
		fetcher: fetcher,
		engine:  engine,
		ledger:  l,
		logger:  zap.NewNop(),
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes evt and reports whether the activity ended up credited.
func (p *Pipeline) Handle(ctx context.Context, evt strava.WebhookEvent) bool {
	outcome, _ := p.Process(ctx, evt)
	return outcome.Succeeded()
}

// Process runs evt through every stage. The returned error carries the cause
// of any outcome other than OutcomeCredited and wraps the matching domain
// sentinel.
func (p *Pipeline) Process(ctx context.Context, evt strava.WebhookEvent) (Outcome, error) {
	outcome, err := p.process(ctx, evt)
	if outcome.Terminal() {
		return outcome, err
	}
	p.recordFailure(ctx, evt, outcome, err)
	return outcome, err
}

func (p *Pipeline) process(ctx context.Context, evt strava.WebhookEvent) (outcome Outcome, err error) {
	start := time.Now()
	logger := p.logger.With(zap.Int64("owner_id", evt.OwnerID), zap.Int64("object_id", evt.ObjectID))
	defer func() {
		observe(outcome, time.Since(start))
		logOutcome(logger, outcome, err)
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if !evt.IsActivityCreate() {
		return OutcomeInvalidEvent, fmt.Errorf("%w: %s/%s", domain.ErrInvalidEvent, evt.ObjectType, evt.AspectType)
	}

	cred, err := p.store.FindCredentialByAthlete(ctx, domain.ProviderStrava, evt.OwnerID)
	if err != nil {
		return OutcomePersistenceFailure, fmt.Errorf("%w: resolve athlete: %v", domain.ErrPersistenceFailure, err)
	}
	if cred == nil {
		return OutcomeAccountNotFound, fmt.Errorf("%w: athlete %d", domain.ErrAccountNotFound, evt.OwnerID)
	}
	logger = logger.With(zap.String("account_id", cred.AccountID))

	exists, err := p.store.ActivityExists(ctx, domain.ProviderStrava, evt.ObjectID)
	if err != nil {
		return OutcomePersistenceFailure, fmt.Errorf("%w: duplicate check: %v", domain.ErrPersistenceFailure, err)
	}
	if exists {
		return OutcomeDuplicate, domain.ErrDuplicateActivity
	}

	token, err := p.tokens.ValidToken(ctx, cred)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenRefreshFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
		}
		return OutcomeTokenRefreshFailed, err
	}

	activity, err := p.fetcher.GetActivity(ctx, token, evt.ObjectID)
	if err != nil {
		return OutcomeProviderFetchFailed, fmt.Errorf("%w: %w", domain.ErrProviderFetchFailed, err)
	}

	score := p.engine.Score(scoring.Activity{
		DistanceM:       activity.Distance,
		ElevationGainM:  activity.TotalElevationGain,
		AverageSpeedMPS: activity.AverageSpeed,
		StartDateLocal:  activity.StartDateLocal,
	})
	record := domain.ActivityRecord{
		ID:              uuid.NewString(),
		Provider:        domain.ProviderStrava,
		ExternalID:      evt.ObjectID,
		AccountID:       cred.AccountID,
		ActivityType:    activity.Type,
		Name:            activity.Name,
		DistanceM:       activity.Distance,
		MovingTimeS:     activity.MovingTime,
		ElevationGainM:  activity.TotalElevationGain,
		AverageSpeedMPS: activity.AverageSpeed,
		StartDateLocal:  activity.StartDateLocal,
		XPAwarded:       score.XP,
		CoinsAwarded:    p.ledger.Rules().Coins(score.XP),
		Bonuses:         score.Bonuses,
		CreatedAt:       p.now(),
	}

	var result ledger.Result
	err = p.store.CommitActivity(ctx, record, p.ledger.Mutation(record.XPAwarded, &result))
	switch {
	case errors.Is(err, domain.ErrDuplicateActivity):
		return OutcomeDuplicate, err
	case errors.Is(err, domain.ErrAccountNotFound):
		return OutcomeAccountNotFound, err
	case err != nil:
		return OutcomePersistenceFailure, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	p.ledger.Committed(cred.AccountID, record.XPAwarded, result)
	xpAwarded.Add(float64(record.XPAwarded))
	observability.RecordActivityCredited(record.CreatedAt)
	logger.Info("activity credited",
		zap.String("record_id", record.ID),
		zap.Int64("xp", record.XPAwarded),
		zap.Int64("coins", record.CoinsAwarded),
		zap.Strings("bonuses", record.Bonuses),
		zap.Int("level", result.NewLevel),
	)
	return OutcomeCredited, nil
}

func logOutcome(logger *zap.Logger, outcome Outcome, err error) {
	switch outcome {
	case OutcomeCredited:
	case OutcomeInvalidEvent:
		logger.Debug("webhook ignored", zap.Error(err))
	case OutcomeAccountNotFound:
		logger.Warn("webhook for unknown athlete", zap.Error(err))
	case OutcomeDuplicate:
		logger.Info("activity already recorded")
	case OutcomePersistenceFailure:
		logger.Error("activity commit failed", zap.Error(err), zap.Bool("critical", true))
	default:
		logger.Error("webhook processing aborted", zap.String("outcome", string(outcome)), zap.Error(err))
	}
}

func stageOf(outcome Outcome) string {
	switch outcome {
	case OutcomeTokenRefreshFailed:
		return domain.StageTokenRefresh
	case OutcomeProviderFetchFailed:
		return domain.StageProviderFetch
	default:
		return domain.StagePersistence
	}
}

// recordFailure is best-effort; recorder errors are logged only.
func (p *Pipeline) recordFailure(ctx context.Context, evt strava.WebhookEvent, outcome Outcome, cause error) {
	if p.failures == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Warn("encode failed webhook", zap.Error(err))
		return
	}
	reason := string(outcome)
	if cause != nil {
		reason = cause.Error()
	}
	failure := domain.WebhookFailure{
		Stage:    stageOf(outcome),
		Reason:   reason,
		OwnerID:  evt.OwnerID,
		ObjectID: evt.ObjectID,
		Payload:  payload,
	}
	// The caller's context may already be done when a network stage timed out.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.failures.RecordFailure(recordCtx, failure); err != nil {
		p.logger.Error("record webhook failure", zap.Error(err), zap.String("stage", failure.Stage))
		return
	}
	failuresRecorded.WithLabelValues(failure.Stage).Inc()
}
