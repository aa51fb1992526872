package vault

import (
	"context"
	"fmt"
	"time"
)

// Listing is the ledger record that carries an envelope alongside its
// public marketplace metadata. PricePerQuery is informational.
type Listing struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Category      string          `json:"category"`
	PricePerQuery int64           `json:"pricePerQuery"`
	Owner         string          `json:"owner"`
	CreatedAt     time.Time       `json:"createdAt"`
	Envelope      *AccessEnvelope `json:"envelope,omitempty"`
}

// Public returns the listing with its envelope withheld.
func (l Listing) Public() Listing {
	l.Envelope = nil
	return l
}

// GrantState is the lifecycle state of a grant.
type GrantState string

const (
	GrantActive    GrantState = "active"
	GrantExhausted GrantState = "exhausted"
)

// Grant (receipt) entitles its holder to decrypt the envelope of ListingID
// up to QuotaTotal times.
type Grant struct {
	ID             string          `json:"id"`
	ListingID      string          `json:"listingId"`
	Envelope       *AccessEnvelope `json:"envelope,omitempty"`
	QuotaTotal     int             `json:"quotaTotal"`
	QuotaRemaining int             `json:"quotaRemaining"`
	Holder         string          `json:"holder"`
}

// State reports Exhausted once no uses remain. Exhausted is terminal.
func (g Grant) State() GrantState {
	if g.QuotaRemaining <= 0 {
		return GrantExhausted
	}
	return GrantActive
}

func (g Grant) Validate() error {
	if g.QuotaTotal < 0 {
		return fmt.Errorf("%w: negative quota total %d", ErrInvalidGrant, g.QuotaTotal)
	}
	if g.QuotaRemaining < 0 || g.QuotaRemaining > g.QuotaTotal {
		return fmt.Errorf("%w: remaining %d outside [0, %d]", ErrInvalidGrant, g.QuotaRemaining, g.QuotaTotal)
	}
	return nil
}

// EnvelopeResolver reads the envelope a grant refers to. Ledgers implement
// it.
type EnvelopeResolver interface {
	ReadEnvelope(ctx context.Context, listingID string) (AccessEnvelope, error)
}

// Authorization is the result of a successful gate check. The caller must
// report one decrement of GrantID to the ledger once consumption succeeds.
type Authorization struct {
	Envelope AccessEnvelope
	GrantID  string
}

// Gate decides whether a presented grant may be used. It holds no grant
// state: the quota decrement belongs to the ledger, which must apply it
// atomically because concurrent holders of the same grant race there.
type Gate struct {
	Resolver EnvelopeResolver
}

// Authorize checks the grant and resolves its envelope.
func (g Gate) Authorize(ctx context.Context, grant *Grant) (Authorization, error) {
	if grant == nil {
		return Authorization{}, ErrGrantNotFound
	}
	if err := grant.Validate(); err != nil {
		return Authorization{}, err
	}
	if grant.State() == GrantExhausted {
		return Authorization{}, ErrQuotaExhausted
	}

	if grant.Envelope != nil {
		return Authorization{Envelope: *grant.Envelope, GrantID: grant.ID}, nil
	}
	if grant.ListingID == "" || g.Resolver == nil {
		return Authorization{}, fmt.Errorf("%w: grant %s has no resolvable envelope", ErrGrantNotFound, grant.ID)
	}
	// resolvers report a missing listing as ErrGrantNotFound; other
	// failures pass through unchanged
	env, err := g.Resolver.ReadEnvelope(ctx, grant.ListingID)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{Envelope: env, GrantID: grant.ID}, nil
}
