package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"xdao.co/mixfs/config"
	"xdao.co/mixfs/provider"
	"xdao.co/mixfs/storage/registry"
	"xdao.co/mixfs/transport"

	_ "xdao.co/mixfs/storage/grpcstore"
	_ "xdao.co/mixfs/storage/localfs"
	_ "xdao.co/mixfs/storage/memstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("mixfs-provider", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	flags := config.RegisterFlags(fs)
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: mixfs-provider [flags]")
		return 2
	}

	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	log, closeLog, err := cfg.Log.NewLogger(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeLog()

	store, closeStore, err := cfg.OpenStore(registry.UsageDaemon)
	if err != nil {
		log.WithError(err).Error("open store")
		return 1
	}
	defer closeStore()

	ws, err := transport.Dial(ctx, cfg.WebsocketURL)
	if err != nil {
		log.WithError(err).Error("connect to mix network client")
		return 1
	}
	defer ws.Close()
	ws.SendTimeout = cfg.SendTimeout

	d := provider.New(ws, store, log)
	d.SendTimeout = cfg.SendTimeout

	self, err := d.SelfAddress(ctx)
	if err != nil {
		log.WithError(err).Error("self address")
		return 1
	}
	log.WithField("address", hex.EncodeToString(self[:])).Info("provider ready")

	if err := d.Serve(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("serve")
		return 1
	}
	log.Info("provider stopped")
	return 0
}
