package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/testkit"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, newStore)
}

func TestLocalFS_List(t *testing.T) {
	testkit.RunListerConformance(t, newStore)
}

func TestLocalFS_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := s.Put(context.Background(), []byte("data"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "8d", "8d777f385d3dfec8815d20f7496026dc")
	if got := s.pathFor(addr); got != want {
		t.Fatalf("pathFor = %s, want %s", got, want)
	}
	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("blob not at expected path: %v", err)
	}
	if string(b) != "data" {
		t.Fatalf("blob content = %q", b)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "8d"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("shard holds %d entries, want 1 (temp files must not linger)", len(entries))
	}
}

func TestLocalFS_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	orig := []byte("original")
	addr, err := s.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := s.pathFor(addr)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, _, err = s.Get(ctx, addr)
	if err != storage.ErrAddressMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrAddressMismatch)
	}
}

func TestLocalFS_ListSkipsStrayFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	addr, err := s.Put(ctx, []byte("data"))
	if err != nil {
		t.Fatal(err)
	}

	shard := filepath.Join(dir, "8d")
	for _, name := range []string{tempPrefix + "123", "notes.txt", "8dzz"} {
		if err := os.WriteFile(filepath.Join(shard, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != addr {
		t.Fatalf("List = %v, want [%s]", got, addr)
	}
}

func TestLocalFS_PutFailureIsStorageFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err = s.Put(context.Background(), []byte("no room"))
	if !storage.IsStorageFailure(err) {
		t.Fatalf("Put into read-only root: got %v, want storage failure", err)
	}
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") must fail")
	}
}
