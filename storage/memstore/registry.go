package memstore

import (
	"github.com/spf13/pflag"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/registry"
)

func init() {
	open := func() (storage.Store, func() error, error) { return New(), nil, nil }
	registry.MustRegister(registry.Backend{
		Name:          "memory",
		Description:   "Volatile in-memory store (contents are lost on exit)",
		Usage:         registry.UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open:          open,
		OpenConfig:    func(map[string]string) (storage.Store, func() error, error) { return open() },
	})
}
