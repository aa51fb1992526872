package auth

import (
	"context"
	"net/http"

	"github.com/opentdf/contextvault/internal/conf"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type ClientCredentials struct {
	Config *clientcredentials.Config
	Tokens *oauth2.Token
}

func (cc *ClientCredentials) Login(ctx context.Context) (*oauth2.Token, error) {
	hc := &http.Client{Transport: &userAgentTransport{}}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	tokens, err := cc.Config.Token(ctx)
	if err != nil {
		return nil, err
	}
	cc.Tokens = tokens
	return tokens, nil
}

// Client returns an http client that attaches and refreshes the access
// token. It fetches a first token so bad credentials fail here.
func (cc *ClientCredentials) Client(ctx context.Context) (*http.Client, error) {
	hc := &http.Client{Transport: &userAgentTransport{}}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	if _, err := cc.Config.Token(ctx); err != nil {
		return nil, err
	}
	return cc.Config.Client(ctx), nil
}

type userAgentTransport struct{}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", "ctxvault/"+conf.Version)
	return http.DefaultTransport.RoundTrip(req)
}
