package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"xdao.co/mixfs/client"
	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/transport"
	"xdao.co/mixfs/wire"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "put":
		return cmdPut(ctx, args[1:], out, errOut)
	case "get":
		return cmdGet(ctx, args[1:], out, errOut)
	case "delete":
		return cmdDelete(ctx, args[1:], out, errOut)
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
	fmt.Fprintln(w, "mixfs: store files with a provider on the mix network")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mixfs put    --provider <hex> [--websocket-url <url>] <file>")
	fmt.Fprintln(w, "  mixfs get    --provider <hex> [--out <file>] <address>")
	fmt.Fprintln(w, "  mixfs delete --provider <hex> <address>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - addresses are the 32 character md5 hex of the file")
	fmt.Fprintln(w, "  - delete is not acknowledged by the provider")
}

type commonFlags struct {
	websocketURL string
	provider     string
	timeout      time.Duration
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.websocketURL, "websocket-url", transport.DefaultURL, "mix network client websocket URL")
	fs.StringVar(&c.provider, "provider", "", "provider mix network address (64 hex characters)")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "bound on each request and its reply")
}

func (c *commonFlags) connect(ctx context.Context) (*client.Client, func() error, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(c.provider))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --provider: %w", err)
	}
	addr, err := wire.ParseRecipient(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --provider: %w", err)
	}
	ws, err := transport.Dial(ctx, c.websocketURL)
	if err != nil {
		return nil, nil, err
	}
	cl := client.New(ws, addr)
	cl.Timeout = c.timeout
	return cl, ws.Close, nil
}

func parseFlags(name string, args []string, errOut io.Writer, extra func(*pflag.FlagSet)) (*pflag.FlagSet, *commonFlags, int) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, 0
		}
		return nil, nil, 2
	}
	if common.provider == "" {
		fmt.Fprintln(errOut, "missing --provider")
		return nil, nil, 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(errOut, "usage: mixfs %s [flags] <arg>\n", name)
		return nil, nil, 2
	}
	return fs, &common, -1
}

func cmdPut(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs, common, code := parseFlags("put", args, errOut, nil)
	if code >= 0 {
		return code
	}
	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}

	c, closeFn, err := common.connect(ctx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	addr, err := c.Put(ctx, b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, addr.String())
	return 0
}

func cmdGet(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var outPath string
	fs, common, code := parseFlags("get", args, errOut, func(fs *pflag.FlagSet) {
		fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	})
	if code >= 0 {
		return code
	}
	addr, err := storage.ParseAddress(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	c, closeFn, err := common.connect(ctx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	b, err := storage.Fetch(ctx, c, addr)
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

func cmdDelete(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs, common, code := parseFlags("delete", args, errOut, nil)
	if code >= 0 {
		return code
	}
	addr, err := storage.ParseAddress(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	c, closeFn, err := common.connect(ctx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	if err := c.Delete(ctx, addr); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
