// mds-fetch loads a provider registry, fans a trips or status_changes
// query out to every provider, and logs per-provider results.
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/openmobility/mds-provider-client/pkg/aggregate"
	"github.com/openmobility/mds-provider-client/pkg/auth"
	"github.com/openmobility/mds-provider-client/pkg/logging"
	"github.com/openmobility/mds-provider-client/pkg/metrics"
	"github.com/openmobility/mds-provider-client/pkg/provider"
	"github.com/openmobility/mds-provider-client/pkg/query"
)

func main() {
	// Configuration from environment
	registryPath := getEnv("REGISTRY_PATH", "providers.yaml")
	registryRef := getEnv("REGISTRY_REF", "")
	endpoint := query.Endpoint(getEnv("ENDPOINT", "trips"))
	redisURL := getEnv("REDIS_URL", "")
	metricsAddr := getEnv("METRICS_ADDR", "")

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})
	logger := logging.NewLogger("mds-fetch")

	filters, err := filtersFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid filter configuration")
	}

	ctx := context.Background()

	// Optional Redis-backed token cache
	resolverOpts := []auth.Option{}
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis", redisURL).Msg("Token cache enabled")
		resolverOpts = append(resolverOpts, auth.WithTokenCache(auth.NewTokenCache(redisClient)))
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	registry := provider.NewFileRegistry(registryPath)
	client := aggregate.New(
		aggregate.WithRegistry(registry, registryRef),
		aggregate.WithResolver(auth.NewResolver(resolverOpts...)),
	)

	start := time.Now()
	results, err := client.Fetch(ctx, endpoint, nil, filters, getEnv("FOLLOW_PAGES", "true") == "true")
	if err != nil {
		logger.Fatal().Err(err).Msg("Fetch failed")
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
			logger.Warn().
				Str("provider", res.Provider.Name).
				Err(res.Err).
				Msg("Provider failed")
			continue
		}

		items := 0
		for _, page := range res.Pages {
			items += len(page.Items(string(endpoint)))
		}
		logger.Info().
			Str("provider", res.Provider.Name).
			Int("pages", len(res.Pages)).
			Int("items", items).
			Msg("Provider fetched")
	}

	logger.Info().
		Str("endpoint", string(endpoint)).
		Int("providers", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	if failed == len(results) && len(results) > 0 {
		os.Exit(1)
	}
}

// filtersFromEnv builds query filters from START_TIME / END_TIME (Unix
// seconds), BBOX, DEVICE_ID, and VEHICLE_ID.
func filtersFromEnv() (query.Filters, error) {
	filters := query.Filters{
		DeviceID:  getEnv("DEVICE_ID", ""),
		VehicleID: getEnv("VEHICLE_ID", ""),
		BBox:      getEnv("BBOX", ""),
	}

	if raw := getEnv("START_TIME", ""); raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query.Filters{}, err
		}
		filters.StartTime = query.Unix(sec)
	}
	if raw := getEnv("END_TIME", ""); raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query.Filters{}, err
		}
		filters.EndTime = query.Unix(sec)
	}

	return filters, nil
}

func serveMetrics(addr string) {
	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", healthHandler)

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
