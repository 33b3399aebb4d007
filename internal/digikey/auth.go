package digikey

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/config"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
)

// expiryMargin is subtracted from the advertised token lifetime so a token
// is refreshed before the upstream actually rejects it.
const expiryMargin = 5 * time.Minute

// Credential is a bearer token with its effective expiry. Credentials are
// replaced on refresh, never mutated in place.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Authenticator obtains and lazily refreshes a bearer credential for one
// API key. Safe for concurrent use: the fetch is mutex-serialized so only
// one network round trip happens per expiry cycle.
type Authenticator struct {
	httpClient *http.Client
	tokenURL   string
	key        config.APIKey
	logger     observability.Logger

	mu   sync.Mutex
	cred *Credential

	now func() time.Time
}

// NewAuthenticator creates an authenticator for the given API key.
func NewAuthenticator(httpClient *http.Client, tokenURL string, key config.APIKey, logger observability.Logger) *Authenticator {
	return &Authenticator{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		key:        key,
		logger:     logger,
		now:        time.Now,
	}
}

// Token returns a valid bearer token, fetching a fresh credential when
// none exists or the current one has expired. Returns ErrThrottled when
// the token endpoint reports rate limiting, so callers back off instead
// of failing the item.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cred != nil && a.now().Before(a.cred.ExpiresAt) {
		return a.cred.AccessToken, nil
	}

	cred, err := a.fetch(ctx)
	if err != nil {
		return "", err
	}
	a.cred = cred
	return cred.AccessToken, nil
}

// ClientID exposes the key's client id, sent alongside the bearer token
// on every search request.
func (a *Authenticator) ClientID() string {
	return a.key.ClientID
}

func (a *Authenticator) fetch(ctx context.Context) (*Credential, error) {
	form := url.Values{
		"client_id":     {a.key.ClientID},
		"client_secret": {a.key.ClientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusTooManyRequests:
		a.logger.Warn(ctx, "Token endpoint throttled", observability.Fields{
			"client_id": a.key.ClientID,
		})
		return nil, ErrThrottled
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		a.logger.Error(ctx, "Token fetch rejected", ErrAuthFailed, observability.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuthFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}
	if token.ExpiresIn == 0 {
		token.ExpiresIn = 3600
	}

	expiresAt := a.now().Add(time.Duration(token.ExpiresIn)*time.Second - expiryMargin)

	a.logger.Debug(ctx, "Credential refreshed", observability.Fields{
		"client_id":  a.key.ClientID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	return &Credential{AccessToken: token.AccessToken, ExpiresAt: expiresAt}, nil
}
