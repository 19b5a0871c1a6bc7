package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/mixfs/storage"
)

const tempPrefix = ".tmp-"

// Store is a local filesystem-backed content-addressed store.
//
// Blobs live at <root>/<hex[:2]>/<hex>. Writes land in a temporary file in the
// shard directory, are synced, then renamed into place, so a reader (or a
// racing delete) never observes a partially written blob. Two concurrent
// writes of the same content commute because they rename identical bytes.
//
// This implementation is offline and deterministic: it never uses the network
// and never depends on wall-clock time.
type Store struct {
	root string
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

// New constructs a filesystem store rooted at root. The directory will be created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, storage.Failure("localfs: create root", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store was opened on.
func (s *Store) Root() string { return s.root }

func (s *Store) Put(ctx context.Context, content []byte) (storage.Address, error) {
	if err := ctx.Err(); err != nil {
		return storage.Address{}, err
	}
	addr := storage.AddressOf(content)
	path := s.pathFor(addr)

	// The address is derived from the content, so an existing record already
	// holds these exact bytes.
	if _, err := os.Stat(path); err == nil {
		return addr, nil
	} else if !os.IsNotExist(err) {
		return storage.Address{}, storage.Failure("localfs: stat", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Address{}, storage.Failure("localfs: create shard", err)
	}

	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return storage.Address{}, storage.Failure("localfs: create temp", err)
	}
	tmp := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if _, err := f.Write(content); err != nil {
		cleanup()
		return storage.Address{}, storage.Failure("localfs: write", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return storage.Address{}, storage.Failure("localfs: sync", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return storage.Address{}, storage.Failure("localfs: close", err)
	}
	if err := os.Chmod(tmp, 0o444); err != nil {
		_ = os.Remove(tmp)
		return storage.Address{}, storage.Failure("localfs: chmod", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return storage.Address{}, storage.Failure("localfs: rename", err)
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
	b, err := os.ReadFile(s.pathFor(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, storage.Failure("localfs: read", err)
	}
	if !addr.Matches(b) {
		return nil, false, storage.ErrAddressMismatch
	}
	return b, true, nil
}

func (s *Store) Delete(ctx context.Context, addr storage.Address) error {
	if !addr.Defined() {
		return storage.ErrInvalidAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.pathFor(addr)); err != nil && !os.IsNotExist(err) {
		return storage.Failure("localfs: remove", err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, addr storage.Address) (bool, error) {
	if !addr.Defined() {
		return false, nil
	}
	_, err := os.Stat(s.pathFor(addr))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.Failure("localfs: stat", err)
}

// List walks the shard directories. Temporary files and names that are not
// addresses are skipped.
func (s *Store) List(ctx context.Context) ([]storage.Address, error) {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		return nil, storage.Failure("localfs: list root", err)
	}
	var out []storage.Address
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			return nil, storage.Failure("localfs: list shard", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasPrefix(name, shard.Name()) {
				continue
			}
			addr, err := storage.ParseAddress(name)
			if err != nil || addr.String() != name {
				continue
			}
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *Store) pathFor(addr storage.Address) string {
	h := addr.String()
	return filepath.Join(s.root, h[:2], h)
}
