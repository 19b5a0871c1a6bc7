package storage

import (
	"context"
	"fmt"
)

// NamedStore associates a Store with a stable backend name.
//
// This is used for multi-backend orchestration where callers need to retain
// per-backend metadata (e.g., for reporting or auditing).
type NamedStore struct {
	Name  string
	Store Store
}

// ReplicatingStore writes to all configured backends.
//
// Reads fall back in order. Writes go to all backends and require all returned
// addresses to match (otherwise ErrAddressMismatch is returned). Deletes go to
// all backends even when one of them fails.
//
// Use PutAll when you need the per-backend address mapping.
type ReplicatingStore struct {
	Backends []NamedStore
}

var _ Store = ReplicatingStore{}

// PutAll writes the same bytes to all backends.
//
// It returns:
// - the canonical address (computed from bytes)
// - a map of backend name -> returned address
//
// If any backend returns a different address, ErrAddressMismatch is returned.
func (r ReplicatingStore) PutAll(ctx context.Context, content []byte) (Address, map[string]Address, error) {
	want := AddressOf(content)
	if len(r.Backends) == 0 {
		return Address{}, nil, fmt.Errorf("storage: ReplicatingStore has no backends")
	}

	out := make(map[string]Address, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return Address{}, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(ctx, content)
		if err != nil {
			return Address{}, nil, err
		}
		out[b.Name] = got
		if got != want {
			return Address{}, out, ErrAddressMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingStore) Put(ctx context.Context, content []byte) (Address, error) {
	addr, _, err := r.PutAll(ctx, content)
	return addr, err
}

func (r ReplicatingStore) Get(ctx context.Context, addr Address) ([]byte, bool, error) {
	if !addr.Defined() {
		return nil, false, ErrInvalidAddress
	}
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, ok, err := b.Store.Get(ctx, addr)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return out, true, nil
		}
	}
	return nil, false, nil
}

func (r ReplicatingStore) Delete(ctx context.Context, addr Address) error {
	if !addr.Defined() {
		return ErrInvalidAddress
	}
	// Every backend is attempted; the first failure is reported.
	var firstErr error
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		if err := b.Store.Delete(ctx, addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("storage: delete on backend %q: %w", b.Name, err)
		}
	}
	return firstErr
}

func (r ReplicatingStore) Has(ctx context.Context, addr Address) (bool, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		ok, err := b.Store.Has(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
