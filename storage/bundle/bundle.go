package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"xdao.co/mixfs/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const blobPrefix = "blobs/"

var epoch0 = time.Unix(0, 0).UTC()

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
	// Compress wraps the TAR stream in zstd.
	Compress bool
}

// Export writes a deterministic TAR bundle containing the blobs for the given addresses.
//
// The bundle bytes are deterministic: entry order is lexicographic and TAR headers are normalized.
// All exported bytes are validated against their addresses. A missing blob fails the export.
func Export(ctx context.Context, w io.Writer, s storage.Store, addrs []storage.Address, opts ExportOptions) (err error) {
	if s == nil {
		return fmt.Errorf("bundle: nil store")
	}

	uniq := make(map[string]storage.Address, len(addrs))
	for _, a := range addrs {
		if !a.Defined() {
			return storage.ErrInvalidAddress
		}
		uniq[a.String()] = a
	}
	names := make([]string, 0, len(uniq))
	for n := range uniq {
		names = append(names, n)
	}
	sort.Strings(names)

	if opts.Compress {
		zw, zerr := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if zerr != nil {
			return zerr
		}
		defer func() {
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}()
		w = zw
	}

	tw := tar.NewWriter(w)
	blobs := make([]indexBlob, 0, len(names))
	for _, n := range names {
		addr := uniq[n]
		b, err := storage.Fetch(ctx, s, addr)
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: %s: %w", n, err)
		}
		if !addr.Matches(b) {
			_ = tw.Close()
			return storage.ErrAddressMismatch
		}
		if err := writeFile(tw, blobPrefix+n, b); err != nil {
			_ = tw.Close()
			return err
		}
		blobs = append(blobs, indexBlob{Address: n, CID: addr.CID().String(), Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := indexJSON{
			Version: FormatVersion,
			Hash:    "md5",
			Blobs:   blobs,
		}
		b, err := marshalCanonicalIndexJSON(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, "index.json", b); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ExportAll exports every blob a listing store holds.
func ExportAll(ctx context.Context, w io.Writer, s storage.Store, opts ExportOptions) error {
	l, ok := s.(storage.Lister)
	if !ok {
		return fmt.Errorf("bundle: %T cannot enumerate its blobs", s)
	}
	addrs, err := l.List(ctx)
	if err != nil {
		return err
	}
	return Export(ctx, w, s, addrs, opts)
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r and imports all blobs into s.
//
// Default behavior is fail-closed: unknown entries cause an error.
// Use ImportWithOptions to allow ignoring unknown entries.
func Import(ctx context.Context, r io.Reader, s storage.Store) ([]storage.Address, error) {
	return ImportWithOptions(ctx, r, s, ImportOptions{})
}

// ImportWithOptions reads a bundle from r and imports all blobs into s.
//
// zstd-compressed bundles are detected by their magic number. Each blob's
// bytes must hash to the address in its filename. It returns the imported
// addresses in bundle order.
func ImportWithOptions(ctx context.Context, r io.Reader, s storage.Store, opts ImportOptions) ([]storage.Address, error) {
	if s == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}

	br := bufio.NewReader(r)
	if magic, _ := br.Peek(len(zstdMagic)); bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var out []storage.Address

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		// Non-authoritative metadata.
		if name == "index.json" {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}

		if !strings.HasPrefix(name, blobPrefix) {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		addr, err := storage.ParseAddress(strings.TrimPrefix(name, blobPrefix))
		if err != nil {
			return out, err
		}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if !addr.Matches(payload) {
			return out, storage.ErrAddressMismatch
		}

		key := addr.String()
		if _, ok := seen[key]; ok {
			return out, fmt.Errorf("bundle: duplicate blob entry: %s", key)
		}
		seen[key] = struct{}{}

		got, err := s.Put(ctx, payload)
		if err != nil {
			return out, err
		}
		if got != addr {
			return out, storage.ErrAddressMismatch
		}
		out = append(out, addr)
	}
}

type indexJSON struct {
	Version int         `json:"version"`
	Hash    string      `json:"hash"`
	Blobs   []indexBlob `json:"blobs"`
}

type indexBlob struct {
	Address string `json:"address"`
	CID     string `json:"cid"`
	Size    int    `json:"size"`
}

func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	// indexJSON is composed only of structs + slices; encoding/json will be deterministic.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return strings.Join(parts, "/")
}
