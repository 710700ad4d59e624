// Package api exposes the HTTP surface of the aura service: the provider
// webhook, account linking and the player API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"example.com/aura/internal/auth"
	"example.com/aura/internal/domain"
	"example.com/aura/internal/ingest"
	"example.com/aura/internal/leaderboard"
	"example.com/aura/internal/ledger"
	"example.com/aura/internal/strava"
)

// WebhookProcessor runs provider notifications through ingestion.
type WebhookProcessor interface {
	Process(ctx context.Context, evt strava.WebhookEvent) (ingest.Outcome, error)
}

// AccountLinker creates or updates the account behind a provider athlete.
type AccountLinker interface {
	LinkAccount(ctx context.Context, displayName string, cred domain.Credential) (*domain.Account, error)
}

// OAuthProvider drives the provider authorization-code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (strava.Athlete, domain.TokenSet, error)
}

// MissionService serves daily missions.
type MissionService interface {
	Today() string
	GenerateOrFetch(ctx context.Context, accountID, today string) ([]domain.MissionInstance, error)
	Complete(ctx context.Context, accountID, missionID string) (*domain.MissionInstance, ledger.Result, error)
}

// Ranking reads the leaderboard.
type Ranking interface {
	Top(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	Rank(ctx context.Context, accountID string) (int, error)
}

// Dependencies wires the handler collaborators.
type Dependencies struct {
	Players  *domain.Service
	Webhooks WebhookProcessor
	Accounts AccountLinker
	OAuth    OAuthProvider
	Missions MissionService
	Ranking  Ranking

	Auth               auth.Config
	TokenTTL           time.Duration
	WebhookVerifyToken string
	Logger             *zap.Logger
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 24 * time.Hour
	}
	return &Handler{deps: deps, logger: logger, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /webhook", h.webhookHandshake)
	mux.HandleFunc("POST /webhook", h.webhookEvent)

	mux.HandleFunc("GET /auth/strava/login", h.stravaLogin)
	mux.HandleFunc("GET /auth/strava/callback", h.stravaCallback)

	mux.HandleFunc("GET /v1/players/me", h.requireScope(auth.ScopePlayerRead, h.me))
	mux.HandleFunc("GET /v1/players/me/activities", h.requireScope(auth.ScopePlayerRead, h.listActivities))
	mux.HandleFunc("GET /v1/players/me/activities/verify", h.requireScope(auth.ScopePlayerRead, h.verifyActivity))
	mux.HandleFunc("GET /v1/missions", h.requireScope(auth.ScopePlayerWrite, h.listMissions))
	mux.HandleFunc("POST /v1/missions/{id}/complete", h.requireScope(auth.ScopePlayerWrite, h.completeMission))
	mux.HandleFunc("GET /v1/ranking", h.requireScope(auth.ScopePlayerRead, h.ranking))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type accountHandler func(w http.ResponseWriter, r *http.Request, accountID string)

func (h *Handler) requireScope(scope string, next accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
			return
		}
		next(w, r, claims.AccountID)
	}
}

func queryInt(r *http.Request, key string, fallback, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if max > 0 && parsed > max {
		return max
	}
	return parsed
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
