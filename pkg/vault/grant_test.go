package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(ctx context.Context, listingID string) (AccessEnvelope, error)

func (f resolverFunc) ReadEnvelope(ctx context.Context, listingID string) (AccessEnvelope, error) {
	return f(ctx, listingID)
}

func testEnvelope() AccessEnvelope {
	return CreateEnvelope("c0ffee", make([]byte, 16), make([]byte, 12), "owner", SchemeSalted)
}

func TestGrantState(t *testing.T) {
	assert.Equal(t, GrantActive, Grant{QuotaTotal: 2, QuotaRemaining: 1}.State())
	assert.Equal(t, GrantExhausted, Grant{QuotaTotal: 2, QuotaRemaining: 0}.State())
	assert.Equal(t, GrantExhausted, Grant{}.State())
}

func TestGrantValidate(t *testing.T) {
	assert.NoError(t, Grant{QuotaTotal: 3, QuotaRemaining: 3}.Validate())
	assert.ErrorIs(t, Grant{QuotaTotal: -1}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{QuotaTotal: 1, QuotaRemaining: 2}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{QuotaTotal: 1, QuotaRemaining: -1}.Validate(), ErrInvalidGrant)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	env := testEnvelope()
	resolver := resolverFunc(func(_ context.Context, id string) (AccessEnvelope, error) {
		if id == "listing-1" {
			return env, nil
		}
		return AccessEnvelope{}, ErrGrantNotFound
	})
	gate := Gate{Resolver: resolver}

	t.Run("embedded envelope", func(t *testing.T) {
		auth, err := Gate{}.Authorize(ctx, &Grant{ID: "g", Envelope: &env, QuotaTotal: 1, QuotaRemaining: 1})
		require.NoError(t, err)
		assert.Equal(t, env, auth.Envelope)
		assert.Equal(t, "g", auth.GrantID)
	})

	t.Run("resolved envelope", func(t *testing.T) {
		auth, err := gate.Authorize(ctx, &Grant{ID: "g", ListingID: "listing-1", QuotaTotal: 5, QuotaRemaining: 2})
		require.NoError(t, err)
		assert.Equal(t, env, auth.Envelope)
	})

	t.Run("nil grant", func(t *testing.T) {
		_, err := gate.Authorize(ctx, nil)
		assert.ErrorIs(t, err, ErrGrantNotFound)
	})

	t.Run("exhausted before resolution", func(t *testing.T) {
		called := false
		g := Gate{Resolver: resolverFunc(func(context.Context, string) (AccessEnvelope, error) {
			called = true
			return env, nil
		})}
		_, err := g.Authorize(ctx, &Grant{ID: "g", ListingID: "listing-1", QuotaTotal: 1, QuotaRemaining: 0})
		assert.ErrorIs(t, err, ErrQuotaExhausted)
		assert.False(t, called)
	})

	t.Run("unknown listing", func(t *testing.T) {
		_, err := gate.Authorize(ctx, &Grant{ID: "g", ListingID: "missing", QuotaTotal: 1, QuotaRemaining: 1})
		assert.ErrorIs(t, err, ErrGrantNotFound)
	})

	t.Run("no reference", func(t *testing.T) {
		_, err := gate.Authorize(ctx, &Grant{ID: "g", QuotaTotal: 1, QuotaRemaining: 1})
		assert.ErrorIs(t, err, ErrGrantNotFound)
	})

	t.Run("broken invariant", func(t *testing.T) {
		_, err := gate.Authorize(ctx, &Grant{ID: "g", Envelope: &env, QuotaTotal: 1, QuotaRemaining: 4})
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("resolver failure passes through", func(t *testing.T) {
		boom := errors.New("ledger offline")
		g := Gate{Resolver: resolverFunc(func(context.Context, string) (AccessEnvelope, error) {
			return AccessEnvelope{}, boom
		})}
		_, err := g.Authorize(ctx, &Grant{ID: "g", ListingID: "listing-1", QuotaTotal: 1, QuotaRemaining: 1})
		assert.ErrorIs(t, err, boom)
	})
}

func TestListingPublic(t *testing.T) {
	env := testEnvelope()
	l := Listing{ID: "l", Title: "Manual", Envelope: &env}
	pub := l.Public()
	assert.Nil(t, pub.Envelope)
	assert.NotNil(t, l.Envelope)
	assert.Equal(t, "Manual", pub.Title)
}
