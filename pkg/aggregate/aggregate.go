// Package aggregate fans a single MDS query out to many providers and
// collects per-provider results.
//
// Each provider is fetched by an independent task with no shared mutable
// state; one provider's authentication or transport failure never disturbs
// the others. Results come back in the same order the providers went in.
package aggregate

import (
	"context"
	"errors"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/openmobility/mds-provider-client/pkg/auth"
	"github.com/openmobility/mds-provider-client/pkg/client"
	"github.com/openmobility/mds-provider-client/pkg/paging"
	"github.com/openmobility/mds-provider-client/pkg/provider"
	"github.com/openmobility/mds-provider-client/pkg/query"
)

// Prometheus metrics for aggregate fetches.
var (
	providerFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mds_provider_fetches_total",
		Help: "Total per-provider fetches by provider and outcome",
	}, []string{"provider", "outcome"})
)

// ErrNoRegistry is returned when Fetch is called with no provider list and
// no registry was configured.
var ErrNoRegistry = errors.New("no providers given and no registry configured")

// Result is one provider's slot in an aggregate fetch: its pages in
// arrival order, or the error that stopped it.
type Result struct {
	Provider provider.Provider
	Pages    []*paging.Page
	Err      error
}

// Failed reports whether this provider's fetch errored.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Client fans queries out to a set of MDS providers.
type Client struct {
	registry    provider.Registry
	registryRef string
	resolver    *auth.Resolver
	maxWorkers  int
	logger      zerolog.Logger
}

// Option configures an aggregate Client.
type Option func(*Client)

// WithRegistry sets the provider registry used when Fetch is called with a
// nil provider list. The ref pins an optional registry version.
func WithRegistry(registry provider.Registry, ref string) Option {
	return func(c *Client) {
		c.registry = registry
		c.registryRef = ref
	}
}

// WithResolver sets the shared auth-session resolver.
func WithResolver(resolver *auth.Resolver) Option {
	return func(c *Client) {
		c.resolver = resolver
	}
}

// WithMaxWorkers bounds how many providers are fetched concurrently.
// Defaults to GOMAXPROCS.
func WithMaxWorkers(n int) Option {
	return func(c *Client) {
		c.maxWorkers = n
	}
}

// New creates an aggregate client.
func New(opts ...Option) *Client {
	c := &Client{
		logger: log.With().Str("component", "aggregate-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = auth.NewResolver()
	}
	return c
}

// Fetch runs the query against every provider and returns one Result per
// provider, in input order. A nil provider list falls back to the
// configured registry. The returned error covers only setup failures
// (registry load, bad filters); per-provider failures land in their Result.
func (c *Client) Fetch(ctx context.Context, endpoint query.Endpoint, providers []provider.Provider, filters query.Filters, follow bool) ([]Result, error) {
	if providers == nil {
		if c.registry == nil {
			return nil, ErrNoRegistry
		}
		loaded, err := c.registry.Load(ctx, c.registryRef)
		if err != nil {
			return nil, err
		}
		providers = loaded
	}

	// Reject unusable filters once, before fanning out.
	if _, err := query.Build(endpoint, filters); err != nil {
		return nil, err
	}

	workers := c.maxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(providers) {
		workers = len(providers)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(providers))

	tasks := pool.New().WithMaxGoroutines(workers)
	for i, prov := range providers {
		tasks.Go(func() {
			results[i] = c.fetchOne(ctx, endpoint, prov, filters, follow)
		})
	}
	tasks.Wait()

	return results, nil
}

// GetTrips fans a trips query out to the providers (nil = registry set).
func (c *Client) GetTrips(ctx context.Context, providers []provider.Provider, filters query.Filters) ([]Result, error) {
	return c.Fetch(ctx, query.Trips, providers, filters, true)
}

// GetStatusChanges fans a status_changes query out to the providers
// (nil = registry set).
func (c *Client) GetStatusChanges(ctx context.Context, providers []provider.Provider, filters query.Filters) ([]Result, error) {
	return c.Fetch(ctx, query.StatusChanges, providers, filters, true)
}

// fetchOne runs one provider's fetch and folds any failure into its Result.
func (c *Client) fetchOne(ctx context.Context, endpoint query.Endpoint, prov provider.Provider, filters query.Filters, follow bool) Result {
	pc := client.New(prov, client.WithResolver(c.resolver))

	pages, err := pc.GetPages(ctx, endpoint, filters, follow)
	if err != nil {
		c.describeFailure(prov, err)
		providerFetchesTotal.WithLabelValues(prov.Name, "error").Inc()
		return Result{Provider: prov, Err: err}
	}

	providerFetchesTotal.WithLabelValues(prov.Name, "success").Inc()
	c.logger.Info().
		Str("provider", prov.Name).
		Str("endpoint", string(endpoint)).
		Int("pages", len(pages)).
		Msg("Provider fetch complete")

	return Result{Provider: prov, Pages: pages}
}

// describeFailure logs a failed provider's diagnostics, including response
// status, headers, and body when the failure was a transport error.
func (c *Client) describeFailure(prov provider.Provider, err error) {
	evt := c.logger.Warn().Str("provider", prov.Name).Err(err)

	var terr *paging.TransportError
	if errors.As(err, &terr) && terr.StatusCode != 0 {
		evt = evt.
			Str("url", terr.URL).
			Int("status", terr.StatusCode).
			Interface("headers", terr.Header).
			Str("body", string(terr.Body))
	}

	evt.Msg("Provider fetch failed")
}
