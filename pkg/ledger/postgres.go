package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentdf/contextvault/internal/db"
	"github.com/opentdf/contextvault/pkg/vault"
)

// PostgresLedger stores listings and grants in the schema under migrations/.
type PostgresLedger struct {
	db *db.Client
}

func NewPostgresLedger(db *db.Client) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) PersistEnvelope(ctx context.Context, env vault.AccessEnvelope, meta vault.Listing) (vault.Listing, error) {
	listing, err := newListing(env, meta)
	if err != nil {
		return vault.Listing{}, err
	}
	args := pgx.NamedArgs{
		"id":              listing.ID,
		"title":           listing.Title,
		"category":        listing.Category,
		"price_per_query": listing.PricePerQuery,
		"owner":           listing.Owner,
		"created_at":      listing.CreatedAt,
		"content_id":      env.ContentID,
		"salt":            env.Salt,
		"nonce":           env.Nonce,
		"owner_identity":  env.OwnerIdentity,
		"scheme":          string(env.Scheme),
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO listings (id, title, category, price_per_query, owner, created_at, content_id, salt, nonce, owner_identity, scheme)
		VALUES (@id, @title, @category, @price_per_query, @owner, @created_at, @content_id, @salt, @nonce, @owner_identity, @scheme)
	`, args)
	if err != nil {
		return vault.Listing{}, fmt.Errorf("error persisting listing %s: %w", listing.ID, err)
	}
	return listing, nil
}

func (l *PostgresLedger) ReadEnvelope(ctx context.Context, listingID string) (vault.AccessEnvelope, error) {
	listing, err := l.ReadListing(ctx, listingID)
	if err != nil {
		return vault.AccessEnvelope{}, err
	}
	return *listing.Envelope, nil
}

func (l *PostgresLedger) ReadListing(ctx context.Context, listingID string) (vault.Listing, error) {
	var (
		listing vault.Listing
		env     vault.AccessEnvelope
		scheme  string
	)
	args := pgx.NamedArgs{"id": listingID}
	err := l.db.QueryRow(ctx, `
		SELECT id::text, title, category, price_per_query, owner, created_at, content_id, salt, nonce, owner_identity, scheme
		FROM listings WHERE id::text = @id
	`, args).Scan(
		&listing.ID, &listing.Title, &listing.Category, &listing.PricePerQuery, &listing.Owner, &listing.CreatedAt,
		&env.ContentID, &env.Salt, &env.Nonce, &env.OwnerIdentity, &scheme,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.Listing{}, listingNotFound(listingID)
	}
	if err != nil {
		return vault.Listing{}, err
	}
	env.Scheme = vault.ChallengeScheme(scheme)
	listing.CreatedAt = listing.CreatedAt.UTC()
	listing.Envelope = &env
	return listing, nil
}

func (l *PostgresLedger) IssueGrant(ctx context.Context, listingID, holder string, quota int) (vault.Grant, error) {
	listing, err := l.ReadListing(ctx, listingID)
	if err != nil {
		return vault.Grant{}, err
	}
	grant, err := newGrant(listing, holder, quota)
	if err != nil {
		return vault.Grant{}, err
	}
	args := pgx.NamedArgs{
		"id":         grant.ID,
		"listing_id": grant.ListingID,
		"holder":     grant.Holder,
		"quota":      grant.QuotaTotal,
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO grants (id, listing_id, holder, quota_total, quota_remaining)
		VALUES (@id, @listing_id, @holder, @quota, @quota)
	`, args)
	if err != nil {
		return vault.Grant{}, fmt.Errorf("error issuing grant for listing %s: %w", listingID, err)
	}
	return grant, nil
}

func (l *PostgresLedger) ReadGrant(ctx context.Context, grantID string) (vault.Grant, error) {
	var grant vault.Grant
	args := pgx.NamedArgs{"id": grantID}
	err := l.db.QueryRow(ctx, `
		SELECT id::text, listing_id::text, holder, quota_total, quota_remaining
		FROM grants WHERE id::text = @id
	`, args).Scan(&grant.ID, &grant.ListingID, &grant.Holder, &grant.QuotaTotal, &grant.QuotaRemaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.Grant{}, grantNotFound(grantID)
	}
	if err != nil {
		return vault.Grant{}, err
	}
	env, err := l.ReadEnvelope(ctx, grant.ListingID)
	if err != nil {
		return vault.Grant{}, err
	}
	grant.Envelope = &env
	return grant, nil
}

// ApplyQuotaDecrement relies on the row lock taken by UPDATE: concurrent
// decrements of one grant serialize and the guard is re-evaluated for each.
func (l *PostgresLedger) ApplyQuotaDecrement(ctx context.Context, grantID string) (int, error) {
	var remaining int
	args := pgx.NamedArgs{"id": grantID}
	err := l.db.QueryRow(ctx, `
		UPDATE grants SET quota_remaining = quota_remaining - 1
		WHERE id::text = @id AND quota_remaining > 0
		RETURNING quota_remaining
	`, args).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	err = l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM grants WHERE id::text = @id)`, args).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, grantNotFound(grantID)
	}
	return 0, vault.ErrQuotaExhausted
}

func (l *PostgresLedger) Close() error {
	l.db.Close()
	return nil
}
