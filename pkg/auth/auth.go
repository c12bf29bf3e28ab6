// Package auth resolves authenticated request sessions for MDS providers.
//
// Two strategies are supported, selected by the provider's AuthStrategy:
// a static bearer token (no network round-trip at resolve time) and the
// OAuth2 client-credentials grant against the provider's token endpoint.
// A resolved session is reusable for every page of one logical request.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/openmobility/mds-provider-client/pkg/provider"
)

// AuthError reports failed token acquisition for a provider. It is fatal
// for single-provider calls and scoped to the provider in aggregate calls.
type AuthError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for provider %s: %v", e.Provider, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Session issues authenticated GET requests with a fixed bearer token.
type Session struct {
	httpClient *http.Client
	token      string
}

// Get issues an authenticated GET to rawURL with params attached as the
// query string. Params may be nil (used when following self-contained
// next links).
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	return s.httpClient.Do(req)
}

// Resolver turns a provider's auth descriptor into a ready Session.
type Resolver struct {
	httpClient *http.Client
	cache      *TokenCache
	logger     zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for token exchanges and by the
// sessions the resolver produces.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// WithTokenCache enables reuse of unexpired OAuth tokens across logical
// requests.
func WithTokenCache(cache *TokenCache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// NewResolver creates a session resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With().Str("component", "auth-resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces an authenticated session for the provider. Static-token
// providers never touch the network here; OAuth providers exchange
// credentials at the token endpoint (or reuse a cached token) and fail with
// *AuthError if the exchange does.
func (r *Resolver) Resolve(ctx context.Context, p provider.Provider) (*Session, error) {
	switch strategy := p.Auth.(type) {
	case provider.StaticToken:
		return &Session{httpClient: r.httpClient, token: strategy.Token}, nil

	case provider.OAuthClientCredentials:
		token, err := r.oauthToken(ctx, p, strategy)
		if err != nil {
			return nil, err
		}
		return &Session{httpClient: r.httpClient, token: token}, nil

	default:
		return nil, &AuthError{Provider: p.Name, Err: fmt.Errorf("no auth strategy configured")}
	}
}

// oauthToken performs the client-credentials exchange, consulting the token
// cache first when one is configured.
func (r *Resolver) oauthToken(ctx context.Context, p provider.Provider, creds provider.OAuthClientCredentials) (string, error) {
	cacheKey := p.ID.String()

	if r.cache != nil {
		token, err := r.cache.Get(ctx, cacheKey)
		if err == nil {
			r.logger.Debug().Str("provider", p.Name).Msg("Using cached token")
			return token.AccessToken, nil
		}
		if err != ErrCacheMiss {
			r.logger.Warn().Err(err).Str("provider", p.Name).Msg("Token cache get error")
		}
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}

	token, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, r.httpClient))
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("provider", p.Name).
			Str("token_url", creds.TokenURL).
			Msg("Token exchange failed")
		return "", &AuthError{Provider: p.Name, Err: err}
	}

	r.logger.Debug().Str("provider", p.Name).Msg("Token exchange succeeded")

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, token); err != nil {
			r.logger.Warn().Err(err).Str("provider", p.Name).Msg("Token cache set error")
		}
	}

	return token.AccessToken, nil
}
