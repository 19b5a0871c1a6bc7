// Package memstore is a volatile in-memory storage.Store.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"xdao.co/mixfs/storage"
)

// Store keeps blobs in a map. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	blobs map[storage.Address][]byte
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

func New() *Store {
	return &Store{blobs: make(map[storage.Address][]byte)}
}

func (s *Store) Put(ctx context.Context, content []byte) (storage.Address, error) {
	if err := ctx.Err(); err != nil {
		return storage.Address{}, err
	}
	addr := storage.AddressOf(content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[addr]; !ok {
		b := make([]byte, len(content))
		copy(b, content)
		s.blobs[addr] = b
	}
	return addr, nil
}

func (s *Store) Get(ctx context.Context, addr storage.Address) ([]byte, bool, error) {
	if !addr.Defined() {
		return nil, false, storage.ErrInvalidAddress
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	b, ok := s.blobs[addr]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(b), true, nil
}

func (s *Store) Delete(ctx context.Context, addr storage.Address) error {
	if !addr.Defined() {
		return storage.ErrInvalidAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, addr)
	s.mu.Unlock()
	return nil
}

func (s *Store) Has(ctx context.Context, addr storage.Address) (bool, error) {
	if !addr.Defined() {
		return false, nil
	}
	s.mu.RLock()
	_, ok := s.blobs[addr]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) List(ctx context.Context) ([]storage.Address, error) {
	s.mu.RLock()
	out := make([]storage.Address, 0, len(s.blobs))
	for addr := range s.blobs {
		out = append(out, addr)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
