package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/registry"

	_ "xdao.co/mixfs/storage/localfs"
	_ "xdao.co/mixfs/storage/memstore"
)

func TestParse_DefaultsAndOverrides(t *testing.T) {
	p, err := Parse([]byte("backend: memory\nsend_timeout: 3s\nlog:\n  level: debug\n"))
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:1977", p.WebsocketURL)
	require.Equal(t, 3*time.Second, p.SendTimeout)
	require.Equal(t, "memory", p.Backend)
	require.Equal(t, "debug", p.Log.Level)
	require.Equal(t, "text", p.Log.Format, "unset nested fields keep their defaults")
}

func TestParse_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field":    "colour: blue\n",
		"bad level":        "log:\n  level: loud\n",
		"bad format":       "log:\n  format: xml\n",
		"negative timeout": "send_timeout: -1s\n",
		"empty url":        "websocket_url: \"\"\n",
		"both storages":    "backend_config:\n  localfs-dir: /tmp\nstorage:\n  backends:\n    - name: memory\n",
		"empty storage":    "storage:\n  backends: []\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	p := Default()
	p.BackendConfig = map[string]string{"localfs-dir": dir}

	s, closeFn, err := p.OpenStore(registry.UsageDaemon)
	require.NoError(t, err)
	defer closeFn()
	addr, err := s.Put(context.Background(), []byte("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, addr.String()[:2], addr.String()))
	require.NoError(t, err)

	p, err = Parse([]byte("storage:\n  write_policy: all\n  backends:\n    - name: memory\n    - name: memory\n      id: mirror\n"))
	require.NoError(t, err)
	s, _, err = p.OpenStore(registry.UsageDaemon)
	require.NoError(t, err)
	require.IsType(t, storage.ReplicatingStore{}, s)

	p = Default()
	p.Backend = "nope"
	_, _, err = p.OpenStore(registry.UsageDaemon)
	require.ErrorContains(t, err, "nope")
}

func TestFlags_OverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nsend_timeout: 4s\nlog:\n  format: json\n"), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--config", path,
		"--backend", "localfs",
		"--localfs-dir", dir,
		"--log-level", "warn",
	}))

	p, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "localfs", p.Backend)
	require.Equal(t, map[string]string{"localfs-dir": dir}, p.BackendConfig)
	require.Equal(t, 4*time.Second, p.SendTimeout, "file value kept when flag unset")
	require.Equal(t, "json", p.Log.Format)
	require.Equal(t, "warn", p.Log.Level)
}

func TestLog_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := Log{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	defer closeFn()
	logger.Info("hidden")
	logger.WithField("address", "abc").Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"address":"abc"`)

	file := filepath.Join(t.TempDir(), "logs", "provider.log")
	logger, closeFn, err = Log{Level: "info", Format: "text", File: file}.NewLogger(&buf)
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	logger.Info("to file")
	require.NoError(t, closeFn())
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "to file"))
}
