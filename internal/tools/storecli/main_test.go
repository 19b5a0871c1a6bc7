package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	if code := run(args, &out, &errOut); code != 0 {
		t.Fatalf("storecli %s: exit %d: %s", strings.Join(args, " "), code, errOut.String())
	}
	return out.String()
}

func TestStorecli_PutGetListDelete(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "store")
	file := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	addr := strings.TrimSpace(runOK(t, "put", "--localfs-dir", store, file))
	if addr != "5d41402abc4b2a76b9719d911017c592" {
		t.Fatalf("unexpected address %q", addr)
	}
	if got := runOK(t, "get", "--localfs-dir", store, addr); got != "hello" {
		t.Fatalf("get returned %q", got)
	}
	if got := strings.TrimSpace(runOK(t, "list", "--localfs-dir", store)); got != addr {
		t.Fatalf("list returned %q", got)
	}
	runOK(t, "has", "--localfs-dir", store, addr)

	runOK(t, "delete", "--localfs-dir", store, addr)
	var out, errOut bytes.Buffer
	if code := run([]string{"has", "--localfs-dir", store, addr}, &out, &errOut); code != 1 {
		t.Fatalf("has after delete: exit %d", code)
	}
	if code := run([]string{"get", "--localfs-dir", store, addr}, &out, &errOut); code != 1 {
		t.Fatalf("get after delete: exit %d", code)
	}
}

func TestStorecli_ExportImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	bundlePath := filepath.Join(dir, "blobs.tar.zst")

	for i, body := range []string{"one", "two"} {
		p := filepath.Join(dir, "f"+string(rune('0'+i)))
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		runOK(t, "put", "--localfs-dir", src, p)
	}

	runOK(t, "export", "--localfs-dir", src, "--zstd", "--out", bundlePath)
	imported := strings.Fields(runOK(t, "import", "--localfs-dir", dst, bundlePath))
	if len(imported) != 2 {
		t.Fatalf("imported %v", imported)
	}
	if got, want := runOK(t, "list", "--localfs-dir", dst), runOK(t, "list", "--localfs-dir", src); got != want {
		t.Fatalf("list mismatch after import:\n%s\nvs\n%s", got, want)
	}
}

func TestStorecli_UsageErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"put"},
		{"get", "--nope"},
		{"list", "extra"},
	} {
		if code := run(args, &out, &errOut); code != 2 {
			t.Fatalf("storecli %v: exit %d, want 2", args, code)
		}
	}
	if code := run([]string{"get", "--localfs-dir", t.TempDir(), "not-an-address"}, &out, &errOut); code != 1 {
		t.Fatalf("invalid address: exit %d, want 1", code)
	}

	out.Reset()
	if code := run([]string{"list", "--list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("--list-backends: exit %d", code)
	}
	if !strings.Contains(out.String(), "localfs") || !strings.Contains(out.String(), "grpc") {
		t.Fatalf("backends: %q", out.String())
	}
}
