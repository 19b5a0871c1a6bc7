package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/bundle"
	"xdao.co/mixfs/storage/registry"

	_ "xdao.co/mixfs/storage/grpcstore"
	_ "xdao.co/mixfs/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "has":
		return cmdHas(args[1:], out, errOut)
	case "delete":
		return cmdDelete(args[1:], out, errOut)
	case "list":
		return cmdList(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "storecli: direct access to a mixfs blob store")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  storecli put    --backend localfs --localfs-dir <dir> <file>")
	fmt.Fprintln(w, "  storecli get    --backend localfs --localfs-dir <dir> [--out <file>] <address>")
	fmt.Fprintln(w, "  storecli has    [common flags] <address>")
	fmt.Fprintln(w, "  storecli delete [common flags] <address>")
	fmt.Fprintln(w, "  storecli list   [common flags]")
	fmt.Fprintln(w, "  storecli export [common flags] [--zstd] [--no-index] [--out <file>] [<address> ...]")
	fmt.Fprintln(w, "  storecli import [common flags] [--ignore-unknown] <bundle>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "gRPC backend:")
	fmt.Fprintln(w, "  storecli get --backend grpc --grpc-target <host:port> <address>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - grpc backend talks to mixfs-storaged (or any store gRPC server)")
	fmt.Fprintln(w, "  - export without addresses needs a backend that can list (localfs)")
	fmt.Fprintln(w, "  - addresses are 32 character md5 hex")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "store backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	registry.RegisterFlags(fs, registry.UsageCLI)
}

func (c *commonFlags) openStore() (storage.Store, func() error, error) {
	return registry.Open(c.backend, registry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

// command parses flags and opens the store. A non-negative code means the
// command is finished.
type command struct {
	name   string
	fs     *pflag.FlagSet
	common commonFlags
	store  storage.Store
	close  func() error
}

func newCommand(name string, errOut io.Writer) *command {
	c := &command{name: name, fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	c.fs.SetOutput(errOut)
	c.common.add(c.fs)
	return c
}

func (c *command) open(args []string, out io.Writer, errOut io.Writer, nargs func(int) bool, usage string) int {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if c.common.listBackends {
		printBackends(out)
		return 0
	}
	if !nargs(c.fs.NArg()) {
		fmt.Fprintf(errOut, "usage: storecli %s %s\n", c.name, usage)
		return 2
	}
	s, closeFn, err := c.common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	c.store = s
	c.close = func() error {
		if closeFn != nil {
			return closeFn()
		}
		return nil
	}
	return -1
}

func exactly(n int) func(int) bool { return func(got int) bool { return got == n } }

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("put", errOut)
	if code := c.open(args, out, errOut, exactly(1), "[common flags] <file>"); code >= 0 {
		return code
	}
	defer c.close()

	p := c.fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	addr, err := c.store.Put(context.Background(), b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, addr.String())
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("get", errOut)
	var outPath string
	c.fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if code := c.open(args, out, errOut, exactly(1), "[common flags] [--out <file>] <address>"); code >= 0 {
		return code
	}
	defer c.close()

	addr, err := storage.ParseAddress(c.fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	b, err := storage.Fetch(context.Background(), c.store, addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

// cmdHas exits 0 when the blob exists and 1 when it does not.
func cmdHas(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("has", errOut)
	if code := c.open(args, out, errOut, exactly(1), "[common flags] <address>"); code >= 0 {
		return code
	}
	defer c.close()

	addr, err := storage.ParseAddress(c.fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	has, err := c.store.Has(context.Background(), addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, has)
	if !has {
		return 1
	}
	return 0
}

func cmdDelete(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("delete", errOut)
	if code := c.open(args, out, errOut, exactly(1), "[common flags] <address>"); code >= 0 {
		return code
	}
	defer c.close()

	addr, err := storage.ParseAddress(c.fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := c.store.Delete(context.Background(), addr); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdList(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("list", errOut)
	if code := c.open(args, out, errOut, exactly(0), "[common flags]"); code >= 0 {
		return code
	}
	defer c.close()

	l, ok := c.store.(storage.Lister)
	if !ok {
		fmt.Fprintf(errOut, "backend %q cannot list its blobs\n", c.common.backend)
		return 1
	}
	addrs, err := l.List(context.Background())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, a := range addrs {
		_, _ = fmt.Fprintln(out, a.String())
	}
	return 0
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("export", errOut)
	var outPath string
	var compress, noIndex bool
	c.fs.StringVar(&outPath, "out", "", "Bundle file (optional; default stdout)")
	c.fs.BoolVar(&compress, "zstd", false, "Compress the bundle with zstd")
	c.fs.BoolVar(&noIndex, "no-index", false, "Omit index.json")
	if code := c.open(args, out, errOut, func(int) bool { return true }, "[common flags] [--zstd] [--out <file>] [<address> ...]"); code >= 0 {
		return code
	}
	defer c.close()

	ctx := context.Background()
	opts := bundle.ExportOptions{IncludeIndex: !noIndex, Compress: compress}

	w := out
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		defer f.Close()
		w = f
	}

	var err error
	if c.fs.NArg() == 0 {
		err = bundle.ExportAll(ctx, w, c.store, opts)
	} else {
		addrs := make([]storage.Address, 0, c.fs.NArg())
		for _, arg := range c.fs.Args() {
			a, perr := storage.ParseAddress(strings.TrimSpace(arg))
			if perr != nil {
				fmt.Fprintf(errOut, "%s: %v\n", arg, perr)
				return 1
			}
			addrs = append(addrs, a)
		}
		err = bundle.Export(ctx, w, c.store, addrs, opts)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	c := newCommand("import", errOut)
	var ignoreUnknown bool
	c.fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip entries that are not blobs")
	if code := c.open(args, out, errOut, exactly(1), "[common flags] [--ignore-unknown] <bundle>"); code >= 0 {
		return code
	}
	defer c.close()

	f, err := os.Open(c.fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer f.Close()

	addrs, err := bundle.ImportWithOptions(context.Background(), f, c.store, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, a := range addrs {
		_, _ = fmt.Fprintln(out, a.String())
	}
	return 0
}
