// Package config loads the provider daemon configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// command-line flags, each layer overriding the previous one.
//
// Example:
//
//	websocket_url: ws://localhost:1977
//	send_timeout: 10s
//	backend: localfs
//	backend_config:
//	  localfs-dir: /var/lib/mixfs
//	log:
//	  level: debug
//	  format: json
//
// A "storage" section (see package storeconfig) replaces backend and
// backend_config with a multi-backend setup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/registry"
	"xdao.co/mixfs/storage/storeconfig"
	"xdao.co/mixfs/transport"
)

// Provider is the mixfs-provider configuration.
type Provider struct {
	WebsocketURL string        `yaml:"websocket_url"`
	SendTimeout  time.Duration `yaml:"send_timeout"`

	Backend       string              `yaml:"backend"`
	BackendConfig map[string]string   `yaml:"backend_config,omitempty"`
	Storage       *storeconfig.Config `yaml:"storage,omitempty"`

	Log Log `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Provider {
	return Provider{
		WebsocketURL: transport.DefaultURL,
		SendTimeout:  10 * time.Second,
		Backend:      "localfs",
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Unknown fields are rejected.
func Load(path string) (Provider, error) {
	if path == "" {
		return Provider{}, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Provider{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(b []byte) (Provider, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Provider{}, fmt.Errorf("config: %w", err)
	}
	return p, p.Validate()
}

func (p Provider) Validate() error {
	if p.WebsocketURL == "" {
		return errors.New("config: websocket_url is required")
	}
	if p.SendTimeout < 0 {
		return fmt.Errorf("config: negative send_timeout %s", p.SendTimeout)
	}
	if p.Storage != nil {
		if len(p.BackendConfig) > 0 {
			return errors.New("config: storage and backend_config are mutually exclusive")
		}
		if err := p.Storage.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	} else if p.Backend == "" {
		return errors.New("config: backend is required")
	}
	return p.Log.Validate()
}

// OpenStore opens the configured backend, or backends when a storage
// section is present.
func (p Provider) OpenStore(usage registry.Usage) (storage.Store, func() error, error) {
	if p.Storage != nil {
		return p.Storage.Open(usage, "")
	}
	s, closeFn, err := registry.OpenWithConfig(p.Backend, usage, p.BackendConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open backend %q: %w", p.Backend, err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return s, closeFn, nil
}
