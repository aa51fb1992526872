package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/sirupsen/logrus"
)

const blobPrefix = "blob:"

type BadgerStoreConfig struct {
	// Path is the badger directory. Empty opens an in-memory store.
	Path string
	// SyncWrites fsyncs every put.
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *logrus.Logger
}

// BadgerStore keeps blobs in a local badger database under "blob:<id>".
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(config BadgerStoreConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.Path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	if config.Logger != nil {
		opts.Logger = config.Logger
	}
	opts.SyncWrites = config.SyncWrites
	opts.ValueLogFileSize = 1024 * 1024 * 100 // 100MB value log files

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening blob store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreWithDB wraps an already open database.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := tdfCrypto.ContentID(data)
	key := []byte(blobPrefix + id)

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil // already stored
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", fmt.Errorf("error writing blob %s: %w", id, err)
	}
	slog.Debug("stored blob", slog.String("blobId", id), slog.Int("size", len(data)))
	return id, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", vault.ErrStorageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading blob %s: %w", id, err)
	}
	return data, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
