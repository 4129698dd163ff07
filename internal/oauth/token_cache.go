// Package oauth exchanges the Google refresh token for access tokens and caches them.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenURL     = "https://oauth2.googleapis.com/token"
	DefaultExpiryBuffer = 55 * time.Minute
)

// Config holds the refresh-token credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	// A cached token is reused only while more than ExpiryBuffer of validity remains
	ExpiryBuffer time.Duration
}

// Configured reports whether all credentials are present
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// TokenCache hands out access tokens, refreshing them through the token endpoint
type TokenCache struct {
	conf         *oauth2.Config
	client       *http.Client
	buffer       time.Duration
	refreshToken string

	mu      sync.Mutex
	source  oauth2.TokenSource
	last    *oauth2.Token
	callCtx context.Context
}

// NewTokenCache validates cfg and builds a cache that refreshes with client
func NewTokenCache(cfg Config, client *http.Client) (*TokenCache, error) {
	if !cfg.Configured() {
		return nil, apperrors.NewConfigurationError(
			"Google OAuth credentials not configured (client id, client secret and refresh token required)", nil)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ExpiryBuffer <= 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	tc := &TokenCache{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client:       client,
		buffer:       cfg.ExpiryBuffer,
		refreshToken: cfg.RefreshToken,
	}
	tc.reset()
	return tc, nil
}

func (tc *TokenCache) reset() {
	tc.source = oauth2.ReuseTokenSourceWithExpiry(nil, refresher{tc}, tc.buffer)
	tc.last = nil
}

// refresher performs one refresh-token exchange per call
type refresher struct {
	tc *TokenCache
}

func (r refresher) Token() (*oauth2.Token, error) {
	ctx := context.WithValue(r.tc.callCtx, oauth2.HTTPClient, r.tc.client)
	start := time.Now()

	tok, err := r.tc.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: r.tc.refreshToken}).Token()
	if err != nil {
		slog.Warn("OAuth token refresh failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	if tok.RefreshToken != "" && tok.RefreshToken != r.tc.refreshToken {
		r.tc.refreshToken = tok.RefreshToken
	}
	slog.Info("OAuth access token refreshed",
		"expires_at", tok.Expiry,
		"duration_ms", time.Since(start).Milliseconds())
	return tok, nil
}

// Token returns a valid access token, refreshing when the cached one is inside the buffer
func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.callCtx = ctx
	defer func() { tc.callCtx = nil }()

	tok, err := tc.source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", apperrors.NewExternalAPIError("Google OAuth", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperrors.NewTimeoutError("OAuth token refresh cancelled", ctxErr)
		}
		return "", apperrors.NewNetworkError("OAuth token refresh failed", err)
	}

	tc.last = tok
	return tok.AccessToken, nil
}

// Cached reports whether a token is held that is still outside the expiry buffer
func (tc *TokenCache) Cached() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.last == nil || tc.last.AccessToken == "" {
		return false
	}
	return tc.last.Expiry.IsZero() || time.Until(tc.last.Expiry) > tc.buffer
}

// Invalidate drops the cached token, e.g. after the API answered 401
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reset()
}
