package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/sirupsen/logrus"
)

const (
	listingPrefix = "listing:"
	grantPrefix   = "grant:"

	maxConflictRetries = 64
)

type BadgerLedgerConfig struct {
	// Path is the badger directory. Empty opens an in-memory ledger.
	Path string
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *logrus.Logger
}

// BadgerLedger keeps listings and grants as JSON records in badger. Quota
// decrements run in serializable transactions and are retried on conflict.
type BadgerLedger struct {
	db *badger.DB
}

func NewBadgerLedger(config BadgerLedgerConfig) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.Path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	if config.Logger != nil {
		opts.Logger = config.Logger
	}
	// quota must survive a crash right after a consume
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening ledger: %w", err)
	}
	return &BadgerLedger{db: db}, nil
}

func (l *BadgerLedger) PersistEnvelope(ctx context.Context, env vault.AccessEnvelope, meta vault.Listing) (vault.Listing, error) {
	if err := ctx.Err(); err != nil {
		return vault.Listing{}, err
	}
	listing, err := newListing(env, meta)
	if err != nil {
		return vault.Listing{}, err
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, listingPrefix+listing.ID, listing)
	})
	if err != nil {
		return vault.Listing{}, fmt.Errorf("error persisting listing %s: %w", listing.ID, err)
	}
	return listing, nil
}

func (l *BadgerLedger) ReadEnvelope(ctx context.Context, listingID string) (vault.AccessEnvelope, error) {
	listing, err := l.ReadListing(ctx, listingID)
	if err != nil {
		return vault.AccessEnvelope{}, err
	}
	if listing.Envelope == nil {
		return vault.AccessEnvelope{}, listingNotFound(listingID)
	}
	return *listing.Envelope, nil
}

func (l *BadgerLedger) ReadListing(ctx context.Context, listingID string) (vault.Listing, error) {
	if err := ctx.Err(); err != nil {
		return vault.Listing{}, err
	}
	var listing vault.Listing
	err := l.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, listingPrefix+listingID, &listing)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return vault.Listing{}, listingNotFound(listingID)
	}
	return listing, err
}

func (l *BadgerLedger) IssueGrant(ctx context.Context, listingID, holder string, quota int) (vault.Grant, error) {
	if err := ctx.Err(); err != nil {
		return vault.Grant{}, err
	}
	var grant vault.Grant
	err := l.db.Update(func(txn *badger.Txn) error {
		var listing vault.Listing
		if err := getJSON(txn, listingPrefix+listingID, &listing); err != nil {
			return err
		}
		var err error
		grant, err = newGrant(listing, holder, quota)
		if err != nil {
			return err
		}
		return putJSON(txn, grantPrefix+grant.ID, grant)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return vault.Grant{}, listingNotFound(listingID)
	}
	if err != nil {
		return vault.Grant{}, err
	}
	return grant, nil
}

func (l *BadgerLedger) ReadGrant(ctx context.Context, grantID string) (vault.Grant, error) {
	if err := ctx.Err(); err != nil {
		return vault.Grant{}, err
	}
	var grant vault.Grant
	err := l.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, grantPrefix+grantID, &grant)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return vault.Grant{}, grantNotFound(grantID)
	}
	return grant, err
}

func (l *BadgerLedger) ApplyQuotaDecrement(ctx context.Context, grantID string) (int, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var remaining int
		err := l.db.Update(func(txn *badger.Txn) error {
			var grant vault.Grant
			if err := getJSON(txn, grantPrefix+grantID, &grant); err != nil {
				return err
			}
			if grant.QuotaRemaining <= 0 {
				return vault.ErrQuotaExhausted
			}
			grant.QuotaRemaining--
			remaining = grant.QuotaRemaining
			return putJSON(txn, grantPrefix+grantID, grant)
		})
		switch {
		case err == nil:
			return remaining, nil
		case errors.Is(err, badger.ErrConflict):
			continue
		case errors.Is(err, badger.ErrKeyNotFound):
			return 0, grantNotFound(grantID)
		default:
			return 0, err
		}
	}
	return 0, fmt.Errorf("quota decrement for grant %s: %w", grantID, badger.ErrConflict)
}

func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

func putJSON(txn *badger.Txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), b)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
