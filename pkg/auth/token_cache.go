package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var (
	// ErrCacheMiss indicates no usable token is cached for the provider.
	ErrCacheMiss = errors.New("token cache miss")
)

// Prometheus metrics for token cache operations.
var (
	tokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mds_token_cache_hits_total",
		Help: "Total number of token cache hits",
	})

	tokenCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mds_token_cache_misses_total",
		Help: "Total number of token cache misses",
	})

	tokenCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mds_token_cache_errors_total",
		Help: "Total number of token cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)

// expirySkew is how long before its expiry a cached token stops being
// served, so a token never dies mid-walk.
const expirySkew = 30 * time.Second

// cachedToken is the stored shape of an OAuth token.
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// TokenCache stores OAuth access tokens in Redis, keyed by provider id,
// with TTLs derived from each token's expiry.
type TokenCache struct {
	redis *redis.Client
}

// NewTokenCache creates a token cache with a Redis backend.
func NewTokenCache(redisClient *redis.Client) *TokenCache {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &TokenCache{redis: redisClient}
}

func cacheKey(providerID string) string {
	return "mds:token:" + providerID
}

// Get retrieves the cached token for a provider. Returns ErrCacheMiss when
// no token is stored or the stored token is about to expire.
func (c *TokenCache) Get(ctx context.Context, providerID string) (*oauth2.Token, error) {
	data, err := c.redis.Get(ctx, cacheKey(providerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			tokenCacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		tokenCacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		tokenCacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal cached token: %w", err)
	}

	if !cached.Expiry.IsZero() && time.Until(cached.Expiry) < expirySkew {
		_ = c.Delete(ctx, providerID)
		tokenCacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	tokenCacheHits.Inc()
	return &oauth2.Token{AccessToken: cached.AccessToken, Expiry: cached.Expiry}, nil
}

// Set stores a token with a TTL ending at the token's expiry. Tokens
// without an expiry, or already within the skew window, are not cached.
func (c *TokenCache) Set(ctx context.Context, providerID string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	if token.Expiry.IsZero() {
		return nil
	}
	ttl := time.Until(token.Expiry)
	if ttl <= expirySkew {
		return nil
	}

	data, err := json.Marshal(cachedToken{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	})
	if err != nil {
		tokenCacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cached token: %w", err)
	}

	if err := c.redis.Set(ctx, cacheKey(providerID), data, ttl).Err(); err != nil {
		tokenCacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a provider's cached token.
func (c *TokenCache) Delete(ctx context.Context, providerID string) error {
	if err := c.redis.Del(ctx, cacheKey(providerID)).Err(); err != nil {
		tokenCacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
