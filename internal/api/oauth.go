package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/aura/internal/auth"
	"example.com/aura/internal/domain"
)

const stateCookie = "aura_oauth_state"

func newState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// stravaLogin redirects to the provider consent page.
func (h *Handler) stravaLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "unable to start authorization")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/strava",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.deps.OAuth.AuthCodeURL(state), http.StatusFound)
}

// stravaCallback finishes the authorization-code flow, links the athlete to an
// account and returns a player token.
func (h *Handler) stravaCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		writeError(w, http.StatusBadRequest, "authorization_denied", reason)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing code")
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "invalid_state", "authorization state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/strava", MaxAge: -1})

	athlete, tokens, err := h.deps.OAuth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("strava code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "exchange_failed", "unable to exchange authorization code")
		return
	}

	account, err := h.deps.Accounts.LinkAccount(r.Context(), athlete.DisplayName(), domain.Credential{
		Provider:     domain.ProviderStrava,
		AthleteID:    athlete.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Connected:    true,
	})
	if err != nil {
		h.logger.Error("link account failed", zap.Int64("athlete_id", athlete.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "unable to link account")
		return
	}

	token, err := auth.IssuePlayerToken(h.deps.Auth, account.ID, h.deps.TokenTTL, h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "unable to issue token")
		return
	}

	h.logger.Info("strava account linked", zap.String("account_id", account.ID), zap.Int64("athlete_id", athlete.ID))
	writeJSON(w, http.StatusOK, LinkResponse{
		AccountID:   account.ID,
		DisplayName: account.DisplayName,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.deps.TokenTTL / time.Second),
	})
}
