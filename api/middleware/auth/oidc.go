package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type keySetFunc func(ctx context.Context) (jwk.Set, error)

func startJWKCache(ctx context.Context, jwksURI string) (*jwk.Cache, error) {
	c := jwk.NewCache(ctx)
	if err := c.Register(jwksURI, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	_, err := c.Refresh(ctx, jwksURI)
	if err != nil {
		return nil, err
	}
	slog.Info("jwk cache started", slog.String("jwks", jwksURI))
	return c, nil
}

// OidcAuth verifies bearer tokens against the key set published at jwksURI.
// The cache refreshes in the background until ctx is done.
func OidcAuth(ctx context.Context, jwksURI string) (func(next http.Handler) http.Handler, error) {
	c, err := startJWKCache(ctx, jwksURI)
	if err != nil {
		return nil, err
	}
	return bearerAuth(func(ctx context.Context) (jwk.Set, error) {
		return c.Get(ctx, jwksURI)
	}), nil
}

// StaticAuth verifies bearer tokens against a fixed key set.
func StaticAuth(keyset jwk.Set) func(next http.Handler) http.Handler {
	return bearerAuth(func(context.Context) (jwk.Set, error) {
		return keyset, nil
	})
}

func bearerAuth(keys keySetFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyset, err := keys(r.Context())
			if err != nil {
				slog.Error("could not retrieve keyset", slog.Any("error", err))
				http.Error(w, "internal server error validating authorization header", http.StatusInternalServerError)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				http.Error(w, "authorization header is not a bearer token", http.StatusUnauthorized)
				return
			}
			_, err = jwt.ParseString(token, jwt.WithKeySet(keyset), jwt.WithValidate(true))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if jwt.IsValidationError(err) {
				slog.Info("jwt could not be validated", slog.Any("error", err))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			slog.Info("jwt could not be parsed", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusUnauthorized)
		})
	}
}
