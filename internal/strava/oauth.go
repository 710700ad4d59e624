package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"example.com/aura/internal/domain"
)

// DefaultOAuthBaseURL hosts the authorize and token endpoints.
const DefaultOAuthBaseURL = "https://www.strava.com"

// Scopes requested when linking an account.
const Scopes = "activity:read_all,profile:read_all"

// Athlete is the summary athlete returned alongside an authorization-code exchange.
type Athlete struct {
	ID        int64
	FirstName string
	LastName  string
}

// DisplayName joins the athlete names.
func (a Athlete) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// OAuthConfig configures OAuth.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string
	Timeout      time.Duration
}

// OAuth performs code exchange and refresh-token grants.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth constructs OAuth against the configured token endpoint.
func NewOAuth(cfg OAuthConfig) *OAuth {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultOAuthBaseURL
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{Scopes},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// AuthCodeURL builds the authorize redirect.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for tokens and the athlete profile.
func (o *OAuth) Exchange(ctx context.Context, code string) (Athlete, domain.TokenSet, error) {
	tok, err := o.config.Exchange(o.withClient(ctx), code)
	if err != nil {
		return Athlete{}, domain.TokenSet{}, fmt.Errorf("exchange code: %w", err)
	}

	athlete, err := athleteFromToken(tok)
	if err != nil {
		return Athlete{}, domain.TokenSet{}, err
	}
	return athlete, tokenSet(tok), nil
}

// Refresh trades a refresh token for a new token set.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	if refreshToken == "" {
		return domain.TokenSet{}, errors.New("empty refresh token")
	}
	// An empty access token forces the source to hit the token endpoint.
	src := o.config.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("refresh token: %w", err)
	}
	return tokenSet(tok), nil
}

func (o *OAuth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func tokenSet(tok *oauth2.Token) domain.TokenSet {
	set := domain.TokenSet{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		set.ExpiresAt = tok.Expiry.Unix()
	}
	if v, ok := int64Extra(tok.Extra("expires_at")); ok {
		set.ExpiresAt = v
	}
	return set
}

func athleteFromToken(tok *oauth2.Token) (Athlete, error) {
	raw, ok := tok.Extra("athlete").(map[string]interface{})
	if !ok {
		return Athlete{}, errors.New("token response missing athlete")
	}
	id, ok := int64Extra(raw["id"])
	if !ok || id <= 0 {
		return Athlete{}, errors.New("token response missing athlete id")
	}
	first, _ := raw["firstname"].(string)
	last, _ := raw["lastname"].(string)
	return Athlete{ID: id, FirstName: first, LastName: last}, nil
}

func int64Extra(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
