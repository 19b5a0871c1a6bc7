package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"xdao.co/mixfs/storage"
)

// NewStore constructs a fresh, empty store instance for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

// RunStoreConformance checks the storage.Store contract against a backend.
func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, mixfs storage")

		addr, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if addr != storage.AddressOf(want) {
			t.Fatalf("Put address mismatch: got %s want %s", addr, storage.AddressOf(want))
		}

		got, ok, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok {
			t.Fatalf("Get reported not found after Put")
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
		got, ok, err := s.Get(ctx, id1)
		if err != nil || !ok {
			t.Fatalf("Get after second Put: ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("content changed after second Put")
		}
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Put(ctx, nil)
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, ok, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if !ok {
			t.Fatalf("empty blob must be found, not absent")
		}
		if len(got) != 0 {
			t.Fatalf("empty blob returned %d bytes", len(got))
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		addr := storage.AddressOf(b)

		if has, err := s.Has(ctx, addr); err != nil || has {
			t.Fatalf("Has on missing address: has=%v err=%v", has, err)
		}
		_, ok, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get missing: unexpected error %v", err)
		}
		if ok {
			t.Fatalf("Get missing: reported found")
		}
		if _, err := storage.Fetch(ctx, s, addr); !storage.IsNotFound(err) {
			t.Fatalf("Fetch missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if has, err := s.Has(ctx, addr); err != nil || !has {
			t.Fatalf("Has after Put: has=%v err=%v", has, err)
		}
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Put(ctx, []byte("data"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Delete(ctx, addr); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		_, ok, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get after Delete: %v", err)
		}
		if ok {
			t.Fatalf("Get after Delete reported found")
		}
		if err := s.Delete(ctx, addr); err != nil {
			t.Fatalf("second Delete must be a no-op, got %v", err)
		}
		if _, err := s.Put(ctx, []byte("data")); err != nil {
			t.Fatalf("Put after Delete failed: %v", err)
		}
		if has, _ := s.Has(ctx, addr); !has {
			t.Fatalf("Put after Delete did not recreate the record")
		}
	})

	t.Run("DeleteDoesNotTouchOthers", func(t *testing.T) {
		s := newStore(t)
		keep, err := s.Put(ctx, []byte("keep"))
		if err != nil {
			t.Fatalf("Put keep: %v", err)
		}
		drop, err := s.Put(ctx, []byte("drop"))
		if err != nil {
			t.Fatalf("Put drop: %v", err)
		}
		if err := s.Delete(ctx, drop); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, err := s.Get(ctx, keep); err != nil || !ok {
			t.Fatalf("unrelated record lost: ok=%v err=%v", ok, err)
		}
	})

	t.Run("RejectUndefinedAddress", func(t *testing.T) {
		s := newStore(t)
		var undef storage.Address
		if has, _ := s.Has(ctx, undef); has {
			t.Fatalf("Has should be false for undefined address")
		}
		if _, _, err := s.Get(ctx, undef); !errors.Is(err, storage.ErrInvalidAddress) {
			t.Fatalf("Get undefined: got %v want ErrInvalidAddress", err)
		}
		if err := s.Delete(ctx, undef); !errors.Is(err, storage.ErrInvalidAddress) {
			t.Fatalf("Delete undefined: got %v want ErrInvalidAddress", err)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		in := []byte("mutable")
		addr, err := s.Put(ctx, in)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		in[0] = 'M'
		got, _, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		got[1] = 'U'
		again, _, err := s.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(again) != "mutable" {
			t.Fatalf("stored content was mutated through caller slices: %q", again)
		}
	})
}

// RunListerConformance checks storage.Lister on backends that enumerate.
func RunListerConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("ListSorted", func(t *testing.T) {
		s := newStore(t)
		l, ok := s.(storage.Lister)
		if !ok {
			t.Fatalf("%T does not implement storage.Lister", s)
		}
		empty, err := l.List(ctx)
		if err != nil {
			t.Fatalf("List(empty): %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("List(empty) returned %d addresses", len(empty))
		}

		for _, b := range []string{"c", "a", "b", "a"} {
			if _, err := s.Put(ctx, []byte(b)); err != nil {
				t.Fatalf("Put %q: %v", b, err)
			}
		}
		addrs, err := l.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(addrs) != 3 {
			t.Fatalf("List returned %d addresses, want 3", len(addrs))
		}
		for i := 1; i < len(addrs); i++ {
			if addrs[i-1].String() >= addrs[i].String() {
				t.Fatalf("List not sorted: %s before %s", addrs[i-1], addrs[i])
			}
		}
	})
}
