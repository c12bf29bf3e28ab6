package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/openmobility/mds-provider-client/pkg/provider"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestTokenCache_Miss(t *testing.T) {
	cache := NewTokenCache(setupTestRedis(t))

	_, err := cache.Get(context.Background(), uuid.NewString())
	if err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestTokenCache_SetGet(t *testing.T) {
	cache := NewTokenCache(setupTestRedis(t))
	ctx := context.Background()
	key := uuid.NewString()

	stored := &oauth2.Token{
		AccessToken: "cached-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	if err := cache.Set(ctx, key, stored); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.AccessToken != "cached-token" {
		t.Errorf("AccessToken = %q, want cached-token", got.AccessToken)
	}
}

func TestTokenCache_NearExpiryNotServed(t *testing.T) {
	cache := NewTokenCache(setupTestRedis(t))
	ctx := context.Background()
	key := uuid.NewString()

	// Within the skew window: Set refuses to store it at all.
	if err := cache.Set(ctx, key, &oauth2.Token{
		AccessToken: "dying-token",
		Expiry:      time.Now().Add(10 * time.Second),
	}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, err := cache.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss for near-expiry token", err)
	}
}

func TestTokenCache_NoExpiryNotCached(t *testing.T) {
	cache := NewTokenCache(setupTestRedis(t))
	ctx := context.Background()
	key := uuid.NewString()

	if err := cache.Set(ctx, key, &oauth2.Token{AccessToken: "no-expiry"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, err := cache.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestTokenCache_Delete(t *testing.T) {
	cache := NewTokenCache(setupTestRedis(t))
	ctx := context.Background()
	key := uuid.NewString()

	if err := cache.Set(ctx, key, &oauth2.Token{
		AccessToken: "tok",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := cache.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss after delete", err)
	}
}

func TestResolve_TokenCacheAvoidsSecondExchange(t *testing.T) {
	redisClient := setupTestRedis(t)

	tokenRequests := 0
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"cached","token_type":"bearer","expires_in":3600}`))
	}))
	defer authServer.Close()

	resolver := NewResolver(WithTokenCache(NewTokenCache(redisClient)))
	prov := provider.Provider{
		Name: "cached",
		ID:   uuid.New(),
		Auth: provider.OAuthClientCredentials{
			TokenURL:     authServer.URL,
			ClientID:     "client",
			ClientSecret: "secret",
		},
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := resolver.Resolve(ctx, prov); err != nil {
			t.Fatalf("Resolve() #%d failed: %v", i+1, err)
		}
	}

	if tokenRequests != 1 {
		t.Errorf("Token requests = %d, want 1 (later resolves served from cache)", tokenRequests)
	}
}
