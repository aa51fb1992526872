package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opentdf/contextvault/pkg/ledger"
	"github.com/opentdf/contextvault/pkg/signer"
	"github.com/opentdf/contextvault/pkg/storage"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var fastKDF = vault.KeyDerivation{Iterations: 1000, Scheme: vault.SchemeSalted}

func manual() vault.DocumentPayload {
	return vault.DocumentPayload{
		FileName: "manual.pdf",
		Chunks: []vault.Chunk{
			{Index: 0, Text: "intro"},
			{Index: 1, Text: "body"},
		},
		Category:  "General",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testSigner(t *testing.T, seed byte) *signer.JWKSigner {
	t.Helper()
	s, err := signer.NewEd25519Signer(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize)))
	require.NoError(t, err)
	return s
}

type fixture struct {
	store  *storage.MemoryStore
	ledger *ledger.MemoryLedger
}

func newFixture() fixture {
	return fixture{store: storage.NewMemoryStore(), ledger: ledger.NewMemoryLedger()}
}

func (f fixture) client(t *testing.T, s vault.Signer, kdf vault.KeyDerivation) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{Signer: s, Store: f.store, Ledger: f.ledger, KeyDerivation: &kdf})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCollaborators(t *testing.T) {
	_, err := NewClient(ClientOptions{Store: storage.NewMemoryStore(), Ledger: ledger.NewMemoryLedger()})
	assert.Error(t, err)
	_, err = NewClient(ClientOptions{Signer: testSigner(t, 1), Ledger: ledger.NewMemoryLedger()})
	assert.Error(t, err)
	_, err = NewClient(ClientOptions{Signer: testSigner(t, 1), Store: storage.NewMemoryStore()})
	assert.Error(t, err)
}

func TestPublishOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := testSigner(t, 1)
	c := f.client(t, owner, fastKDF)

	listing, err := c.Publish(ctx, manual(), PublishOptions{PricePerQuery: 100})
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", listing.Title)
	assert.Equal(t, "General", listing.Category)
	assert.Equal(t, owner.Identity(), listing.Owner)
	require.NotNil(t, listing.Envelope)
	assert.Equal(t, vault.SchemeSalted, listing.Envelope.Scheme)

	got, err := c.Open(ctx, *listing.Envelope)
	require.NoError(t, err)
	assert.Equal(t, manual(), got)
}

func TestSealFreshEveryTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, testSigner(t, 1), fastKDF)

	a, err := c.Seal(ctx, manual())
	require.NoError(t, err)
	b, err := c.Seal(ctx, manual())
	require.NoError(t, err)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)

	la, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	lb, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, *la.Envelope, *lb.Envelope)
	assert.NotEqual(t, la.Envelope.ContentID, lb.Envelope.ContentID)
}

func TestConsumeSingleUseGrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, testSigner(t, 1), fastKDF)

	listing, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 1)
	require.NoError(t, err)

	got, err := c.Consume(ctx, &grant)
	require.NoError(t, err)
	assert.Equal(t, manual(), got)
	assert.Equal(t, 0, grant.QuotaRemaining)
	assert.Equal(t, vault.GrantExhausted, grant.State())

	_, err = c.Consume(ctx, &grant)
	assert.ErrorIs(t, err, vault.ErrQuotaExhausted)

	// a stale copy still claiming a use is refused by the ledger
	stale, err := f.ledger.ReadGrant(ctx, grant.ID)
	require.NoError(t, err)
	stale.QuotaRemaining = 1
	_, err = c.Consume(ctx, &stale)
	assert.ErrorIs(t, err, vault.ErrQuotaExhausted)
	assert.Equal(t, 0, stale.QuotaRemaining)
}

func TestConsumeResolvesEnvelopeByListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, testSigner(t, 1), fastKDF)

	listing, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 3)
	require.NoError(t, err)
	grant.Envelope = nil

	_, err = c.Consume(ctx, &grant)
	require.NoError(t, err)
	assert.Equal(t, 2, grant.QuotaRemaining)
}

func TestOpenWithOtherSignerFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	listing, err := f.client(t, testSigner(t, 1), fastKDF).Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)

	_, err = f.client(t, testSigner(t, 2), fastKDF).Open(ctx, *listing.Envelope)
	assert.ErrorIs(t, err, vault.ErrDecryptionFailed)
}

func TestOpenFixedSchemeEnvelope(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := testSigner(t, 1)
	listing, err := f.client(t, s, fastKDF.WithScheme(vault.SchemeFixed)).Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, vault.SchemeFixed, listing.Envelope.Scheme)

	// envelopes without a recorded scheme are read as fixed
	env := *listing.Envelope
	env.Scheme = ""
	got, err := f.client(t, s, fastKDF).Open(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, manual(), got)
}

func TestConsumeFailuresSpendNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("signer unavailable", func(t *testing.T) {
		f := newFixture()
		listing, err := f.client(t, testSigner(t, 1), fastKDF).Publish(ctx, manual(), PublishOptions{})
		require.NoError(t, err)
		grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 2)
		require.NoError(t, err)

		broken := vault.SignerFunc(func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("wallet locked")
		})
		_, err = f.client(t, broken, fastKDF).Consume(ctx, &grant)
		assert.ErrorIs(t, err, vault.ErrSignerUnavailable)
		assertRemaining(t, f.ledger, grant.ID, 2)
	})

	t.Run("wrong signer", func(t *testing.T) {
		f := newFixture()
		listing, err := f.client(t, testSigner(t, 1), fastKDF).Publish(ctx, manual(), PublishOptions{})
		require.NoError(t, err)
		grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 2)
		require.NoError(t, err)

		_, err = f.client(t, testSigner(t, 2), fastKDF).Consume(ctx, &grant)
		assert.ErrorIs(t, err, vault.ErrDecryptionFailed)
		assertRemaining(t, f.ledger, grant.ID, 2)
	})

	t.Run("storage not found", func(t *testing.T) {
		f := newFixture()
		c := f.client(t, testSigner(t, 1), fastKDF)
		sealed, err := c.Seal(ctx, manual())
		require.NoError(t, err)
		env := vault.CreateEnvelope("00ff", sealed.Salt, sealed.Nonce, "o", sealed.Scheme)
		listing, err := f.ledger.PersistEnvelope(ctx, env, vault.Listing{Title: "missing"})
		require.NoError(t, err)
		grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 1)
		require.NoError(t, err)

		_, err = c.Consume(ctx, &grant)
		assert.ErrorIs(t, err, vault.ErrStorageNotFound)
		assertRemaining(t, f.ledger, grant.ID, 1)
	})

	t.Run("decode error", func(t *testing.T) {
		f := newFixture()
		s := testSigner(t, 1)
		c := f.client(t, s, fastKDF)

		salt, err := vault.NewSalt()
		require.NoError(t, err)
		nonce, err := vault.NewNonce()
		require.NoError(t, err)
		key, err := fastKDF.DeriveWithSigner(ctx, s, salt)
		require.NoError(t, err)
		ct, err := vault.Encrypt(key, nonce, []byte(`{"version":2}`))
		require.NoError(t, err)
		id, err := f.store.Put(ctx, ct)
		require.NoError(t, err)
		listing, err := f.ledger.PersistEnvelope(ctx, vault.CreateEnvelope(id, salt, nonce, "o", vault.SchemeSalted), vault.Listing{Title: "future"})
		require.NoError(t, err)
		grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 1)
		require.NoError(t, err)

		_, err = c.Consume(ctx, &grant)
		assert.ErrorIs(t, err, vault.ErrDecode)
		assert.NotErrorIs(t, err, vault.ErrDecryptionFailed)
		assertRemaining(t, f.ledger, grant.ID, 1)
	})

	t.Run("user rejected", func(t *testing.T) {
		f := newFixture()
		s := testSigner(t, 1)
		listing, err := f.client(t, s, fastKDF).Publish(ctx, manual(), PublishOptions{})
		require.NoError(t, err)
		grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", 1)
		require.NoError(t, err)

		declining := signer.PromptSigner{IdentitySigner: s, Confirm: func(context.Context, []byte) (bool, error) {
			return false, nil
		}}
		_, err = f.client(t, declining, fastKDF).Consume(ctx, &grant)
		assert.ErrorIs(t, err, vault.ErrSignerUnavailable)
		assert.ErrorIs(t, err, vault.ErrUserRejected)
		assertRemaining(t, f.ledger, grant.ID, 1)
	})

	t.Run("unknown grant", func(t *testing.T) {
		f := newFixture()
		_, err := f.client(t, testSigner(t, 1), fastKDF).Consume(ctx, nil)
		assert.ErrorIs(t, err, vault.ErrGrantNotFound)
	})
}

// tamperingStore flips one byte of every blob it returns.
type tamperingStore struct {
	storage.Store
}

func (s tamperingStore) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b[len(b)-1] ^= 0x01
	return b, nil
}

func TestOpenTamperedBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := testSigner(t, 1)
	listing, err := f.client(t, s, fastKDF).Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)

	c, err := NewClient(ClientOptions{Signer: s, Store: tamperingStore{f.store}, Ledger: f.ledger, KeyDerivation: &fastKDF})
	require.NoError(t, err)
	_, err = c.Open(ctx, *listing.Envelope)
	assert.Equal(t, vault.ErrDecryptionFailed, err)
}

func TestConcurrentConsume(t *testing.T) {
	const (
		quota   = 3
		holders = 12
	)
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, testSigner(t, 1), fastKDF)
	listing, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	grant, err := f.ledger.IssueGrant(ctx, listing.ID, "0xbuyer", quota)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(g vault.Grant) {
			defer wg.Done()
			_, err := c.Consume(ctx, &g)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, vault.ErrQuotaExhausted)
		}(grant)
	}
	wg.Wait()

	assert.Equal(t, quota, successes)
	assertRemaining(t, f.ledger, grant.ID, 0)
}

func TestWorkflowSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	f := newFixture()
	c := f.client(t, testSigner(t, 1), fastKDF)
	listing, err := c.Publish(ctx, manual(), PublishOptions{})
	require.NoError(t, err)
	_, err = f.client(t, testSigner(t, 2), fastKDF).Open(ctx, *listing.Envelope)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "Publish", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "Open", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func assertRemaining(t *testing.T, l ledger.Ledger, grantID string, want int) {
	t.Helper()
	g, err := l.ReadGrant(context.Background(), grantID)
	require.NoError(t, err)
	assert.Equal(t, want, g.QuotaRemaining)
}
