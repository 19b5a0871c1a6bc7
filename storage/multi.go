package storage

import (
	"context"
	"errors"
)

// MultiStore provides deterministic, ordered fallback across multiple stores.
//
// Read order is the slice order in Adapters; callers MUST supply a fixed order.
// This avoids map-iteration nondeterminism and makes the retrieval strategy explicit.
//
// Put writes only to the first adapter. Delete removes from every adapter so a
// deleted blob cannot resurface through a fallback read.
type MultiStore struct {
	Adapters []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Put(ctx context.Context, content []byte) (Address, error) {
	if len(m.Adapters) == 0 {
		return Address{}, errors.New("storage: MultiStore has no adapters")
	}
	return m.Adapters[0].Put(ctx, content)
}

func (m MultiStore) Get(ctx context.Context, addr Address) ([]byte, bool, error) {
	if !addr.Defined() {
		return nil, false, ErrInvalidAddress
	}
	for _, s := range m.Adapters {
		b, ok, err := s.Get(ctx, addr)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return b, true, nil
		}
	}
	return nil, false, nil
}

func (m MultiStore) Delete(ctx context.Context, addr Address) error {
	if !addr.Defined() {
		return ErrInvalidAddress
	}
	var firstErr error
	for _, s := range m.Adapters {
		if err := s.Delete(ctx, addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiStore) Has(ctx context.Context, addr Address) (bool, error) {
	for _, s := range m.Adapters {
		ok, err := s.Has(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
