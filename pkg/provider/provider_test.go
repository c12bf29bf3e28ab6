package provider

import (
	"testing"

	"github.com/google/uuid"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		endpoint string
		want     string
	}{
		{
			name:     "base only",
			provider: Provider{APIURL: "https://mds.example.com"},
			endpoint: "trips",
			want:     "https://mds.example.com/trips",
		},
		{
			name:     "base with trailing slash",
			provider: Provider{APIURL: "https://mds.example.com/"},
			endpoint: "trips",
			want:     "https://mds.example.com/trips",
		},
		{
			name:     "with suffix",
			provider: Provider{APIURL: "https://mds.example.com", APISuffix: "v0.3"},
			endpoint: "status_changes",
			want:     "https://mds.example.com/v0.3/status_changes",
		},
		{
			name:     "suffix trailing slashes stripped",
			provider: Provider{APIURL: "https://mds.example.com", APISuffix: "v0.3//"},
			endpoint: "trips",
			want:     "https://mds.example.com/v0.3/trips",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.provider.EndpointURL(tt.endpoint)
			if got != tt.want {
				t.Errorf("EndpointURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthStrategyVariants(t *testing.T) {
	p := Provider{
		Name: "static",
		ID:   uuid.New(),
		Auth: StaticToken{Token: "secret"},
	}

	if _, ok := p.Auth.(StaticToken); !ok {
		t.Errorf("Auth = %T, want StaticToken", p.Auth)
	}

	p.Auth = OAuthClientCredentials{
		TokenURL:     "https://auth.example.com/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}
	if _, ok := p.Auth.(OAuthClientCredentials); !ok {
		t.Errorf("Auth = %T, want OAuthClientCredentials", p.Auth)
	}
}
