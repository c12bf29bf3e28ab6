// Package provider defines MDS provider records and the registry
// collaborator that supplies them.
package provider

import (
	"strings"

	"github.com/google/uuid"
)

// AuthStrategy selects how requests to a provider are authenticated.
// Exactly one concrete strategy is attached to each Provider.
type AuthStrategy interface {
	authStrategy()
}

// StaticToken authenticates with a fixed bearer token issued out of band.
type StaticToken struct {
	Token string
}

func (StaticToken) authStrategy() {}

// OAuthClientCredentials authenticates via the OAuth2 client-credentials
// grant against the provider's token endpoint.
type OAuthClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (OAuthClientCredentials) authStrategy() {}

// Provider describes a single MDS data source. Immutable once constructed;
// clients hold it by value and never mutate it.
type Provider struct {
	// Name is the provider's display name (e.g. "bird", "lime").
	Name string

	// ID is the provider's unique identifier from the registry.
	ID uuid.UUID

	// APIURL is the base URL of the provider's MDS Provider API.
	APIURL string

	// APISuffix is an optional path segment between the base URL and the
	// endpoint name (some providers version their API this way).
	APISuffix string

	// Auth is the authentication strategy for this provider.
	Auth AuthStrategy
}

// EndpointURL joins the base URL, optional suffix, and endpoint name with
// single slashes. Trailing slashes on the base and suffix are stripped.
func (p Provider) EndpointURL(endpoint string) string {
	url := strings.TrimRight(p.APIURL, "/")
	if p.APISuffix != "" {
		url += "/" + strings.TrimRight(p.APISuffix, "/")
	}
	return url + "/" + endpoint
}
