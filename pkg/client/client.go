// Package client provides the single-provider MDS Provider API client,
// composing auth-session resolution, query-parameter shaping, and
// next-link page traversal.
package client

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openmobility/mds-provider-client/pkg/auth"
	"github.com/openmobility/mds-provider-client/pkg/paging"
	"github.com/openmobility/mds-provider-client/pkg/provider"
	"github.com/openmobility/mds-provider-client/pkg/query"
)

// ProviderClient fetches trips and status_changes from one MDS provider.
type ProviderClient struct {
	provider provider.Provider
	resolver *auth.Resolver
	logger   zerolog.Logger
}

// Option configures a ProviderClient.
type Option func(*ProviderClient)

// WithResolver sets the auth-session resolver. Sharing one resolver across
// clients shares its HTTP client and token cache.
func WithResolver(resolver *auth.Resolver) Option {
	return func(c *ProviderClient) {
		c.resolver = resolver
	}
}

// New creates a client for the given provider.
func New(p provider.Provider, opts ...Option) *ProviderClient {
	c := &ProviderClient{
		provider: p,
		logger:   log.With().Str("component", "provider-client").Str("provider", p.Name).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = auth.NewResolver()
	}
	return c
}

// Provider returns the provider this client talks to.
func (c *ProviderClient) Provider() provider.Provider {
	return c.provider
}

// IteratePages starts a fresh lazy walk over the endpoint's pages.
// Authentication happens once here; pagination never re-authenticates.
// When follow is false at most the first page is fetched.
func (c *ProviderClient) IteratePages(ctx context.Context, endpoint query.Endpoint, filters query.Filters, follow bool) (*paging.Walker, error) {
	params, err := query.Build(endpoint, filters)
	if err != nil {
		return nil, err
	}

	session, err := c.resolver.Resolve(ctx, c.provider)
	if err != nil {
		return nil, err
	}

	url := c.provider.EndpointURL(string(endpoint))
	c.logger.Debug().Str("url", url).Str("endpoint", string(endpoint)).Msg("Starting page walk")

	return paging.NewWalker(session, string(endpoint), url, params, follow), nil
}

// GetPages collects the endpoint's pages into a slice, in arrival order.
func (c *ProviderClient) GetPages(ctx context.Context, endpoint query.Endpoint, filters query.Filters, follow bool) ([]*paging.Page, error) {
	walker, err := c.IteratePages(ctx, endpoint, filters, follow)
	if err != nil {
		return nil, err
	}

	var pages []*paging.Page
	for walker.Next(ctx) {
		pages = append(pages, walker.Page())
	}
	if err := walker.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// GetItems flattens all of the endpoint's pages into a single item slice,
// preserving page-arrival order and in-page order.
func (c *ProviderClient) GetItems(ctx context.Context, endpoint query.Endpoint, filters query.Filters) ([]json.RawMessage, error) {
	pages, err := c.GetPages(ctx, endpoint, filters, true)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	for _, page := range pages {
		items = append(items, page.Items(string(endpoint))...)
	}
	return items, nil
}

// GetTrips collects all trips pages matching the filters.
func (c *ProviderClient) GetTrips(ctx context.Context, filters query.Filters) ([]*paging.Page, error) {
	return c.GetPages(ctx, query.Trips, filters, true)
}

// GetStatusChanges collects all status_changes pages matching the filters.
func (c *ProviderClient) GetStatusChanges(ctx context.Context, filters query.Filters) ([]*paging.Page, error) {
	return c.GetPages(ctx, query.StatusChanges, filters, true)
}
