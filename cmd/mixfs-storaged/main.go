package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/mixfs/config"
	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/grpcstore"
	"xdao.co/mixfs/storage/registry"
	"xdao.co/mixfs/storage/storeconfig"

	_ "xdao.co/mixfs/storage/localfs"
	_ "xdao.co/mixfs/storage/memstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run serves until ctx ends. ready, if non-nil, receives the bound address.
func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer, ready chan<- net.Addr) int {
	fs := pflag.NewFlagSet("mixfs-storaged", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "store backend name")
	storeConfig := fs.String("store-config", "", "YAML multi-backend config (overrides --backend)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	var logCfg config.Log
	fs.StringVar(&logCfg.Level, "log-level", "info", "log level")
	fs.StringVar(&logCfg.Format, "log-format", "text", "log format (text or json)")

	registry.RegisterFlags(fs, registry.UsageDaemon)

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

	log, closeLog, err := logCfg.NewLogger(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeLog()

	store, closeFn, err := openStore(*backend, *storeConfig)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.WithError(err).Error("listen")
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcstore.RegisterStoreServer(s, &grpcstore.Server{Store: store})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.WithFields(logrus.Fields{"listen": lis.Addr().String(), "backend": *backend}).Info("mixfs-storaged listening")
	if ready != nil {
		ready <- lis.Addr()
	}
	if err := s.Serve(lis); err != nil {
		log.WithError(err).Error("serve")
		return 1
	}
	return 0
}

func openStore(backend, storeConfig string) (storage.Store, func() error, error) {
	if storeConfig == "" {
		return registry.Open(backend, registry.UsageDaemon)
	}
	cfg, err := storeconfig.LoadFile(storeConfig)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Open(registry.UsageDaemon, "")
}
