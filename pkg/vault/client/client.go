// Package client composes a signer, a blob store and a ledger into the
// publish and consume workflows.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"github.com/opentdf/contextvault/pkg/ledger"
	"github.com/opentdf/contextvault/pkg/storage"
	"github.com/opentdf/contextvault/pkg/vault"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/opentdf/contextvault/pkg/vault/client"

type Client struct {
	signer vault.Signer
	store  storage.Store
	ledger ledger.Ledger
	kdf    vault.KeyDerivation
	logger *slog.Logger
}

type ClientOptions struct {
	Signer vault.Signer
	Store  storage.Store
	Ledger ledger.Ledger
	// KeyDerivation defaults to vault.DefaultKeyDerivation.
	KeyDerivation *vault.KeyDerivation
	Logger        *slog.Logger
}

type PublishOptions struct {
	// Owner defaults to the signer's identity when it has one.
	Owner         string
	Title         string
	PricePerQuery int64
}

// Sealed is an encrypted document together with the envelope fields needed
// to open it again.
type Sealed struct {
	Ciphertext []byte
	Salt       []byte
	Nonce      []byte
	Scheme     vault.ChallengeScheme
}

func NewClient(ops ClientOptions) (*Client, error) {
	if ops.Signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	if ops.Store == nil {
		return nil, errors.New("blob store cannot be nil")
	}
	if ops.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	c := &Client{
		signer: ops.Signer,
		store:  ops.Store,
		ledger: ops.Ledger,
		kdf:    vault.DefaultKeyDerivation(),
		logger: ops.Logger,
	}
	if ops.KeyDerivation != nil {
		c.kdf = *ops.KeyDerivation
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func (c *Client) tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Seal serializes and encrypts payload under a fresh salt and nonce. It has
// no side effects beyond asking the signer for a signature.
func (c *Client) Seal(ctx context.Context, payload vault.DocumentPayload) (Sealed, error) {
	plaintext, err := vault.Serialize(payload)
	if err != nil {
		return Sealed{}, err
	}
	salt, err := vault.NewSalt()
	if err != nil {
		return Sealed{}, err
	}
	nonce, err := vault.NewNonce()
	if err != nil {
		return Sealed{}, err
	}
	key, err := c.kdf.DeriveWithSigner(ctx, c.signer, salt)
	if err != nil {
		return Sealed{}, err
	}
	defer clear(key)

	ciphertext, err := vault.Encrypt(key, nonce, plaintext)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: ciphertext, Salt: salt, Nonce: nonce, Scheme: c.kdf.Scheme}, nil
}

// Publish seals payload, stores the ciphertext and records its envelope in a
// new listing. A failed put records nothing; a failed persist leaves an
// unreferenced blob behind.
func (c *Client) Publish(ctx context.Context, payload vault.DocumentPayload, ops PublishOptions) (listing vault.Listing, err error) {
	ctx, span := c.tracer().Start(ctx, "Publish")
	defer func() { endSpan(span, err) }()

	sealed, err := c.Seal(ctx, payload)
	if err != nil {
		return vault.Listing{}, err
	}
	contentID, err := c.store.Put(ctx, sealed.Ciphertext)
	if err != nil {
		return vault.Listing{}, fmt.Errorf("error storing sealed document: %w", err)
	}
	span.SetAttributes(attribute.String("content.id", contentID))

	owner := ops.Owner
	if owner == "" {
		if is, ok := c.signer.(interface{ Identity() string }); ok {
			owner = is.Identity()
		}
	}
	env := vault.CreateEnvelope(contentID, sealed.Salt, sealed.Nonce, owner, sealed.Scheme)
	title := ops.Title
	if title == "" {
		title = payload.FileName
	}
	listing, err = c.ledger.PersistEnvelope(ctx, env, vault.Listing{
		Title:         title,
		Category:      payload.Category,
		PricePerQuery: ops.PricePerQuery,
		Owner:         owner,
		CreatedAt:     payload.CreatedAt,
	})
	if err != nil {
		return vault.Listing{}, fmt.Errorf("error persisting envelope for %s: %w", contentID, err)
	}
	c.logger.Info("published document",
		slog.String("listingId", listing.ID),
		slog.String("contentId", contentID),
		slog.Int("chunks", len(payload.Chunks)),
		slog.Int("size", len(sealed.Ciphertext)),
	)
	return listing, nil
}

// Open decrypts the document behind env. It is the owner's read path and
// consults no grant.
func (c *Client) Open(ctx context.Context, env vault.AccessEnvelope) (payload vault.DocumentPayload, err error) {
	ctx, span := c.tracer().Start(ctx, "Open", trace.WithAttributes(attribute.String("content.id", env.ContentID)))
	defer func() { endSpan(span, err) }()
	return c.open(ctx, env)
}

func (c *Client) open(ctx context.Context, env vault.AccessEnvelope) (vault.DocumentPayload, error) {
	if err := env.Validate(); err != nil {
		return vault.DocumentPayload{}, err
	}
	salt, _ := env.SaltBytes()
	nonce, _ := env.NonceBytes()
	scheme, _ := env.ResolveScheme()

	ciphertext, err := c.store.Get(ctx, env.ContentID)
	if err != nil {
		return vault.DocumentPayload{}, err
	}
	if tdfCrypto.ContentID(ciphertext) != env.ContentID {
		// a store returning other bytes for the id cannot authenticate
		return vault.DocumentPayload{}, vault.ErrDecryptionFailed
	}

	key, err := c.kdf.WithScheme(scheme).DeriveWithSigner(ctx, c.signer, salt)
	if err != nil {
		return vault.DocumentPayload{}, err
	}
	defer clear(key)

	plaintext, err := vault.Decrypt(key, nonce, ciphertext)
	if err != nil {
		return vault.DocumentPayload{}, err
	}
	defer clear(plaintext)
	return vault.Deserialize(plaintext)
}

// Consume checks grant, decrypts the document and then spends one use of
// the grant. Attempts that fail before a successful decode spend nothing.
// On success grant.QuotaRemaining is updated from the ledger.
func (c *Client) Consume(ctx context.Context, grant *vault.Grant) (payload vault.DocumentPayload, err error) {
	ctx, span := c.tracer().Start(ctx, "Consume")
	defer func() { endSpan(span, err) }()

	auth, err := vault.Gate{Resolver: c.ledger}.Authorize(ctx, grant)
	if err != nil {
		return vault.DocumentPayload{}, err
	}
	span.SetAttributes(
		attribute.String("grant.id", auth.GrantID),
		attribute.String("content.id", auth.Envelope.ContentID),
	)

	payload, err = c.open(ctx, auth.Envelope)
	if err != nil {
		return vault.DocumentPayload{}, err
	}

	remaining, err := c.ledger.ApplyQuotaDecrement(ctx, auth.GrantID)
	if err != nil {
		if errors.Is(err, vault.ErrQuotaExhausted) {
			grant.QuotaRemaining = 0
		}
		return vault.DocumentPayload{}, err
	}
	grant.QuotaRemaining = remaining
	c.logger.Info("consumed grant",
		slog.String("grantId", auth.GrantID),
		slog.Int("remaining", remaining),
	)
	return payload, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
