package config

import (
	"time"

	"github.com/spf13/pflag"

	"xdao.co/mixfs/storage/registry"
)

// Flags are command-line overrides for a Provider. Only flags set on the
// command line replace file values.
type Flags struct {
	fs       *pflag.FlagSet
	backends *pflag.FlagSet

	ConfigPath string

	websocketURL string
	sendTimeout  time.Duration
	backend      string
	logLevel     string
	logFormat    string
	logFile      string
}

// RegisterFlags adds provider flags and the flags of every daemon backend to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs, backends: pflag.NewFlagSet("backends", pflag.ContinueOnError)}
	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&f.websocketURL, "websocket-url", d.WebsocketURL, "mix network client websocket URL")
	fs.DurationVar(&f.sendTimeout, "send-timeout", d.SendTimeout, "bound on each outbound frame (0 disables)")
	fs.StringVar(&f.backend, "backend", d.Backend, "storage backend name")
	fs.StringVar(&f.logLevel, "log-level", d.Log.Level, "log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", d.Log.Format, "log format (text or json)")
	fs.StringVar(&f.logFile, "log-file", "", "append logs to this file instead of stderr")

	registry.RegisterFlags(f.backends, registry.UsageDaemon)
	fs.AddFlagSet(f.backends)
	return f
}

// Load returns the file configuration (or defaults) with flag overrides applied.
func (f *Flags) Load() (Provider, error) {
	p := Default()
	if f.ConfigPath != "" {
		var err error
		if p, err = Load(f.ConfigPath); err != nil {
			return Provider{}, err
		}
	}
	f.Apply(&p)
	return p, p.Validate()
}

// Apply copies every flag set on the command line into p. Backend flags
// are merged into BackendConfig under their flag names.
func (f *Flags) Apply(p *Provider) {
	changed := f.fs.Changed
	if changed("websocket-url") {
		p.WebsocketURL = f.websocketURL
	}
	if changed("send-timeout") {
		p.SendTimeout = f.sendTimeout
	}
	if changed("backend") {
		p.Backend = f.backend
		p.Storage = nil
	}
	if changed("log-level") {
		p.Log.Level = f.logLevel
	}
	if changed("log-format") {
		p.Log.Format = f.logFormat
	}
	if changed("log-file") {
		p.Log.File = f.logFile
	}
	f.backends.VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed {
			return
		}
		if p.BackendConfig == nil {
			p.BackendConfig = map[string]string{}
		}
		p.BackendConfig[fl.Name] = fl.Value.String()
	})
}
