package ledger

import (
	"context"
	"sync"

	"github.com/opentdf/contextvault/pkg/vault"
)

type MemoryLedger struct {
	mu       sync.Mutex
	listings map[string]vault.Listing
	grants   map[string]vault.Grant
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		listings: make(map[string]vault.Listing),
		grants:   make(map[string]vault.Grant),
	}
}

func (l *MemoryLedger) PersistEnvelope(_ context.Context, env vault.AccessEnvelope, meta vault.Listing) (vault.Listing, error) {
	listing, err := newListing(env, meta)
	if err != nil {
		return vault.Listing{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listings[listing.ID] = cloneListing(listing)
	return listing, nil
}

func (l *MemoryLedger) ReadEnvelope(ctx context.Context, listingID string) (vault.AccessEnvelope, error) {
	listing, err := l.ReadListing(ctx, listingID)
	if err != nil {
		return vault.AccessEnvelope{}, err
	}
	return *listing.Envelope, nil
}

func (l *MemoryLedger) ReadListing(_ context.Context, listingID string) (vault.Listing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	listing, ok := l.listings[listingID]
	if !ok {
		return vault.Listing{}, listingNotFound(listingID)
	}
	return cloneListing(listing), nil
}

func (l *MemoryLedger) IssueGrant(_ context.Context, listingID, holder string, quota int) (vault.Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	listing, ok := l.listings[listingID]
	if !ok {
		return vault.Grant{}, listingNotFound(listingID)
	}
	grant, err := newGrant(listing, holder, quota)
	if err != nil {
		return vault.Grant{}, err
	}
	l.grants[grant.ID] = cloneGrant(grant)
	return grant, nil
}

func (l *MemoryLedger) ReadGrant(_ context.Context, grantID string) (vault.Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	grant, ok := l.grants[grantID]
	if !ok {
		return vault.Grant{}, grantNotFound(grantID)
	}
	return cloneGrant(grant), nil
}

func (l *MemoryLedger) ApplyQuotaDecrement(_ context.Context, grantID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	grant, ok := l.grants[grantID]
	if !ok {
		return 0, grantNotFound(grantID)
	}
	if grant.QuotaRemaining <= 0 {
		return 0, vault.ErrQuotaExhausted
	}
	grant.QuotaRemaining--
	l.grants[grantID] = grant
	return grant.QuotaRemaining, nil
}

func (l *MemoryLedger) Close() error { return nil }
