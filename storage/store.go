package storage

import "context"

// Store is a flat content-addressed blob store.
//
// Contract:
// - Put MUST derive the address from the bytes written and MUST be idempotent:
//   writing content that is already present leaves the record unchanged.
// - Get MUST report absence as found == false with a nil error.
// - Get MUST fail with ErrInvalidAddress for an undefined address.
// - Delete MUST succeed when the record is already absent.
// - Medium errors MUST match ErrStorageFailure.
type Store interface {
	Put(ctx context.Context, content []byte) (Address, error)
	Get(ctx context.Context, addr Address) (content []byte, found bool, err error)
	Delete(ctx context.Context, addr Address) error
	Has(ctx context.Context, addr Address) (bool, error)
}

// Lister is implemented by stores that can enumerate their records.
type Lister interface {
	// List returns every stored address, sorted by String().
	List(ctx context.Context) ([]Address, error)
}

// Fetch is Get for callers that treat absence as a failure: it returns
// ErrNotFound when addr is not stored.
func Fetch(ctx context.Context, s Store, addr Address) ([]byte, error) {
	b, ok, err := s.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}
