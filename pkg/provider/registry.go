package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Registry yields an ordered list of providers, optionally pinned to a
// version reference. Implementations decide what (if anything) the ref
// means; both implementations here ignore it.
type Registry interface {
	Load(ctx context.Context, ref string) ([]Provider, error)
}

// StaticRegistry is a fixed, in-memory provider list. The ref argument to
// Load is ignored.
type StaticRegistry []Provider

// Load returns a copy of the registry's providers in insertion order.
func (r StaticRegistry) Load(_ context.Context, _ string) ([]Provider, error) {
	out := make([]Provider, len(r))
	copy(out, r)
	return out, nil
}

// providerRecord is the YAML shape of one registry entry. A record carries
// either a static token or a complete OAuth client-credentials triple.
type providerRecord struct {
	Name         string   `yaml:"name" validate:"required"`
	ProviderID   string   `yaml:"provider_id" validate:"required,uuid4"`
	MDSAPIURL    string   `yaml:"mds_api_url" validate:"required,url"`
	MDSAPISuffix string   `yaml:"mds_api_suffix"`
	Token        string   `yaml:"token"`
	TokenURL     string   `yaml:"token_url" validate:"omitempty,url"`
	ClientID     string   `yaml:"client_id" validate:"required_with=TokenURL"`
	ClientSecret string   `yaml:"client_secret" validate:"required_with=TokenURL"`
	Scopes       []string `yaml:"scopes"`
}

// FileRegistry loads providers from a YAML snapshot of the registry.
// The ref argument to Load is ignored; pin a snapshot by pointing Path at
// the right file.
type FileRegistry struct {
	Path string

	validate *validator.Validate
}

// NewFileRegistry creates a registry backed by the YAML file at path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{
		Path:     path,
		validate: validator.New(),
	}
}

// Load reads, validates, and converts the registry file. Record order in
// the file is preserved.
func (r *FileRegistry) Load(_ context.Context, _ string) ([]Provider, error) {
	raw, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var records []providerRecord
	if err := yaml.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	if r.validate == nil {
		r.validate = validator.New()
	}

	providers := make([]Provider, 0, len(records))
	for i, rec := range records {
		if err := r.validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("registry record %d (%s): %w", i, rec.Name, err)
		}

		p, err := recordToProvider(rec)
		if err != nil {
			return nil, fmt.Errorf("registry record %d (%s): %w", i, rec.Name, err)
		}
		providers = append(providers, p)
	}

	return providers, nil
}

func recordToProvider(rec providerRecord) (Provider, error) {
	id, err := uuid.Parse(rec.ProviderID)
	if err != nil {
		return Provider{}, fmt.Errorf("parse provider_id: %w", err)
	}

	var auth AuthStrategy
	switch {
	case rec.TokenURL != "":
		auth = OAuthClientCredentials{
			TokenURL:     rec.TokenURL,
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			Scopes:       rec.Scopes,
		}
	case rec.Token != "":
		auth = StaticToken{Token: rec.Token}
	default:
		return Provider{}, fmt.Errorf("no auth strategy: need token or token_url")
	}

	return Provider{
		Name:      rec.Name,
		ID:        id,
		APIURL:    rec.MDSAPIURL,
		APISuffix: rec.MDSAPISuffix,
		Auth:      auth,
	}, nil
}
