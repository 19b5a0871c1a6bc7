package registry

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"xdao.co/mixfs/storage"
)

func testBackend(name string, usage Usage, flagName string, opened *map[string]string) Backend {
	var flagVal string
	return Backend{
		Name:  name,
		Usage: usage,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagVal, flagName, "", "test flag")
		},
		Open: func() (storage.Store, func() error, error) {
			*opened = map[string]string{flagName: flagVal}
			return storage.MultiStore{}, nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			*opened = cfg
			return storage.MultiStore{}, nil, nil
		},
	}
}

func TestRegister_Validation(t *testing.T) {
	var opened map[string]string
	good := testBackend("test-validation", UsageCLI, "test-validation-flag", &opened)

	bad := good
	bad.Name = ""
	require.Error(t, Register(bad))

	bad = good
	bad.Open = nil
	require.Error(t, Register(bad))

	bad = good
	bad.OpenConfig = nil
	require.Error(t, Register(bad))

	bad = good
	bad.Usage = 0
	require.Error(t, Register(bad))

	require.NoError(t, Register(good))
	require.Error(t, Register(good), "duplicate registration must fail")
	require.Panics(t, func() { MustRegister(good) })
}

func TestListAndOpen_RespectUsage(t *testing.T) {
	var cliOpened, daemonOpened map[string]string
	MustRegister(testBackend("test-cli-only", UsageCLI, "test-cli-flag", &cliOpened))
	MustRegister(testBackend("test-daemon-only", UsageDaemon, "test-daemon-flag", &daemonOpened))

	require.Contains(t, Names(UsageCLI), "test-cli-only")
	require.NotContains(t, Names(UsageCLI), "test-daemon-only")
	require.Contains(t, Names(UsageDaemon), "test-daemon-only")

	names := Names(UsageCLI | UsageDaemon)
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, UsageCLI)
	require.NoError(t, fs.Parse([]string{"--test-cli-flag=value"}))

	s, closeFn, err := Open("test-cli-only", UsageCLI)
	require.NoError(t, err)
	require.Nil(t, closeFn)
	require.NotNil(t, s)
	require.Equal(t, "value", cliOpened["test-cli-flag"])

	_, _, err = Open("test-daemon-only", UsageCLI)
	require.Error(t, err)
	_, _, err = Open("no-such-backend", UsageCLI)
	require.Error(t, err)

	_, _, err = OpenWithConfig("test-daemon-only", UsageDaemon, map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, "v", daemonOpened["k"])

	_, _, err = OpenWithConfig("test-daemon-only", UsageDaemon, nil)
	require.NoError(t, err)
	require.NotNil(t, daemonOpened)
}
