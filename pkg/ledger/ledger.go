// Package ledger records listings, the envelopes they carry and the grants
// issued against them.
//
// Every backend applies ApplyQuotaDecrement atomically: when several holders
// consume the same grant concurrently, exactly QuotaTotal of them succeed and
// the rest see vault.ErrQuotaExhausted.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentdf/contextvault/pkg/vault"
)

type Ledger interface {
	// PersistEnvelope stores env under a new listing built from meta and
	// returns the stored listing.
	PersistEnvelope(ctx context.Context, env vault.AccessEnvelope, meta vault.Listing) (vault.Listing, error)
	ReadEnvelope(ctx context.Context, listingID string) (vault.AccessEnvelope, error)
	ReadListing(ctx context.Context, listingID string) (vault.Listing, error)
	IssueGrant(ctx context.Context, listingID, holder string, quota int) (vault.Grant, error)
	ReadGrant(ctx context.Context, grantID string) (vault.Grant, error)
	// ApplyQuotaDecrement consumes one use of the grant and returns the
	// remaining count.
	ApplyQuotaDecrement(ctx context.Context, grantID string) (int, error)
	Close() error
}

// newListing fills the fields the ledger owns.
func newListing(env vault.AccessEnvelope, meta vault.Listing) (vault.Listing, error) {
	if err := env.Validate(); err != nil {
		return vault.Listing{}, err
	}
	if meta.PricePerQuery < 0 {
		return vault.Listing{}, fmt.Errorf("negative price per query %d", meta.PricePerQuery)
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.CreatedAt = meta.CreatedAt.UTC().Truncate(time.Microsecond)
	if meta.Owner == "" {
		meta.Owner = env.OwnerIdentity
	}
	meta.Envelope = &env
	return meta, nil
}

func newGrant(listing vault.Listing, holder string, quota int) (vault.Grant, error) {
	if quota <= 0 {
		return vault.Grant{}, fmt.Errorf("%w: quota must be positive, got %d", vault.ErrInvalidGrant, quota)
	}
	return vault.Grant{
		ID:             uuid.NewString(),
		ListingID:      listing.ID,
		Envelope:       cloneEnvelope(listing.Envelope),
		QuotaTotal:     quota,
		QuotaRemaining: quota,
		Holder:         holder,
	}, nil
}

func cloneEnvelope(env *vault.AccessEnvelope) *vault.AccessEnvelope {
	if env == nil {
		return nil
	}
	c := *env
	return &c
}

// cloneListing and cloneGrant copy the envelope so stored records never
// share memory with callers.
func cloneListing(l vault.Listing) vault.Listing {
	l.Envelope = cloneEnvelope(l.Envelope)
	return l
}

func cloneGrant(g vault.Grant) vault.Grant {
	g.Envelope = cloneEnvelope(g.Envelope)
	return g
}

func listingNotFound(id string) error {
	return fmt.Errorf("%w: listing %s", vault.ErrGrantNotFound, id)
}

func grantNotFound(id string) error {
	return fmt.Errorf("%w: %s", vault.ErrGrantNotFound, id)
}
