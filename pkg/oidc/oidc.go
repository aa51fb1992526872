package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/internal/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type OidcConfig struct {
	ClientID          string
	ClientSecret      string
	DiscoveryEndpoint string
	Tokens            *oauth2.Token
}

type Client interface {
	Login(ctx context.Context) (*oauth2.Token, error)
	Client(ctx context.Context) (*http.Client, error)
}

// Endpoints are the parts of a discovery document ctxvault uses.
type Endpoints struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewOidcClient returns a client credentials client for conf. Interactive
// flows are not supported, so a client secret is required.
func NewOidcClient(ctx context.Context, conf OidcConfig) (Client, error) {
	if conf.ClientSecret == "" {
		return nil, errors.New("oidc client secret is required")
	}
	endpoints, err := Discover(ctx, conf.DiscoveryEndpoint)
	if err != nil {
		return nil, err
	}
	return &auth.ClientCredentials{
		Config: &clientcredentials.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			Scopes:       []string{"openid", "profile", "email"},
			TokenURL:     endpoints.TokenEndpoint,
		},
		Tokens: conf.Tokens,
	}, nil
}

// Discover fetches the discovery document at wellKnown.
func Discover(ctx context.Context, wellKnown string) (*Endpoints, error) {
	d := new(Endpoints)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not get discovery endpoint: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(d); err != nil {
		return nil, err
	}
	if d.TokenEndpoint == "" {
		return nil, fmt.Errorf("discovery document at %s has no token endpoint", wellKnown)
	}
	return d, nil
}
