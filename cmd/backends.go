package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/opentdf/contextvault/internal/db"
	"github.com/opentdf/contextvault/internal/tui"
	"github.com/opentdf/contextvault/pkg/ledger"
	"github.com/opentdf/contextvault/pkg/oidc"
	"github.com/opentdf/contextvault/pkg/signer"
	"github.com/opentdf/contextvault/pkg/storage"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/opentdf/contextvault/pkg/vault/client"
	"github.com/sirupsen/logrus"
)

// backends holds the collaborators built from a profile. close releases
// all of them.
type backends struct {
	store  storage.Store
	ledger ledger.Ledger
	signer signer.IdentitySigner
	kdf    vault.KeyDerivation

	closers []io.Closer
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (b *backends) client() (*client.Client, error) {
	return client.NewClient(client.ClientOptions{
		Signer:        b.signer,
		Store:         b.store,
		Ledger:        b.ledger,
		KeyDerivation: &b.kdf,
	})
}

// badgerLogger forwards badger warnings and errors.
func badgerLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func openStore(ctx context.Context, p ProfileConfig) (storage.Store, io.Closer, error) {
	switch p.Storage.Backend {
	case "", "badger":
		s, err := storage.NewBadgerStore(storage.BadgerStoreConfig{Path: p.Storage.Path, Logger: badgerLogger()})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "http":
		endpoint, err := url.Parse(p.Storage.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
		hc, err := httpClient(ctx, p.Oidc)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewHTTPStore(storage.HTTPStoreOptions{HttpClient: hc, Endpoint: endpoint})
		return s, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", p.Storage.Backend)
	}
}

// httpClient authenticates with client credentials when the profile has
// OIDC settings and falls back to a plain client otherwise.
func httpClient(ctx context.Context, o OidcConfig) (*http.Client, error) {
	if o.DiscoveryEndpoint == "" {
		return http.DefaultClient, nil
	}
	oc, err := oidc.NewOidcClient(ctx, oidc.OidcConfig{
		ClientID:          o.ClientID,
		ClientSecret:      o.ClientSecret,
		DiscoveryEndpoint: o.DiscoveryEndpoint,
	})
	if err != nil {
		return nil, err
	}
	return oc.Client(ctx)
}

func openLedger(ctx context.Context, p ProfileConfig) (ledger.Ledger, error) {
	switch p.Ledger.Backend {
	case "", "badger":
		return ledger.NewBadgerLedger(ledger.BadgerLedgerConfig{Path: p.Ledger.DSN, Logger: badgerLogger()})
	case "postgres":
		dbClient, err := db.NewClient(ctx, p.Ledger.DSN)
		if err != nil {
			return nil, err
		}
		if err := dbClient.RunMigrations(ctx); err != nil {
			dbClient.Close()
			return nil, err
		}
		return ledger.NewPostgresLedger(dbClient), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", p.Ledger.Backend)
	}
}

func openSigner(p ProfileConfig) (signer.IdentitySigner, io.Closer, error) {
	switch p.Signer.Type {
	case "", "jwk":
		s, err := signer.LoadJWKSigner(p.Signer.KeyFile)
		return s, nil, err
	case "pkcs11":
		s, err := signer.NewPKCS11Signer(signer.PKCS11Config{
			Module: p.Signer.Module,
			Pin:    p.Signer.Pin,
			Label:  p.Signer.Label,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown signer type %q", p.Signer.Type)
	}
}

// confirmSignature shows the challenge and waits for the user to approve it.
func confirmSignature(identity string) signer.ConfirmFunc {
	return func(ctx context.Context, message []byte) (bool, error) {
		m, err := tea.NewProgram(tui.NewConfirmModel(identity, message), tea.WithContext(ctx)).Run()
		if err != nil {
			return false, err
		}
		cm, ok := m.(tui.ConfirmModel)
		return ok && cm.Approved, nil
	}
}

type openOptions struct {
	withSigner bool
	confirm    bool
}

func openBackends(ctx context.Context, p ProfileConfig, ops openOptions) (*backends, error) {
	b := &backends{}
	kdf := vault.DefaultKeyDerivation()
	if p.Kdf.Scheme != "" {
		scheme, err := vault.ParseScheme(p.Kdf.Scheme)
		if err != nil {
			return nil, err
		}
		kdf = kdf.WithScheme(scheme)
	}
	b.kdf = kdf

	store, closer, err := openStore(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("could not open blob storage: %w", err)
	}
	b.store = store
	if closer != nil {
		b.closers = append(b.closers, closer)
	}

	l, err := openLedger(ctx, p)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("could not open ledger: %w", err)
	}
	b.ledger = l
	b.closers = append(b.closers, l)

	if ops.withSigner {
		s, closer, err := openSigner(p)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("could not open signer: %w", err)
		}
		if closer != nil {
			b.closers = append(b.closers, closer)
		}
		if ops.confirm {
			s = signer.PromptSigner{IdentitySigner: s, Confirm: confirmSignature(s.Identity())}
		}
		b.signer = s
	}
	slog.Debug("opened backends",
		slog.String("storage", p.Storage.Backend),
		slog.String("ledger", p.Ledger.Backend),
		slog.String("scheme", string(kdf.Scheme)),
	)
	return b, nil
}
