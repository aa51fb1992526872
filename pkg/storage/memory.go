package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"github.com/opentdf/contextvault/pkg/vault"
)

type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	id := tdfCrypto.ContentID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = bytes.Clone(data)
	}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vault.ErrStorageNotFound, id)
	}
	return bytes.Clone(data), nil
}
