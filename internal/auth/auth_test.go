package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "aura.test"}

func TestIssueAndParse(t *testing.T) {
	token, err := Issue(testConfig, "acct-1", []string{ScopePlayerWrite, ScopePlayerRead, ScopePlayerRead}, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.AccountID)
	require.Equal(t, []string{ScopePlayerRead, ScopePlayerWrite}, claims.Scopes)
	require.True(t, claims.HasScope(ScopePlayerRead))
	require.False(t, claims.HasScope("admin"))
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestParseRejects(t *testing.T) {
	expired, err := Issue(testConfig, "acct-1", nil, -time.Minute, time.Now())
	require.NoError(t, err)
	otherIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, "acct-1", nil, time.Hour, time.Now())
	require.NoError(t, err)
	wrongKey, err := Issue(Config{Secret: "other", Issuer: testConfig.Issuer}, "acct-1", nil, time.Hour, time.Now())
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "acct-1", "iss": testConfig.Issuer}).
		SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testConfig.Issuer, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"other issuer": otherIssuer,
		"wrong key":    wrongKey,
		"no expiry":    noExpiry,
		"no subject":   noSubject,
		"garbage":      "not-a-jwt",
	} {
		_, err := Parse(token, testConfig)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err = Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Issue(testConfig, "", nil, time.Hour, time.Now())
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	handler := Middleware(testConfig)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/healthz", "/webhook", "/auth/strava/login"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNoContent, rr.Code, path)
		require.Nil(t, seen)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/players/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
	require.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, rr.Body.String())

	token, err := IssuePlayerToken(testConfig, "acct-3", time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/players/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "acct-3", seen.AccountID)
}
