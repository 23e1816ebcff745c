package commands

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenillas/krenewd/pkg/config"
)

// resetStartFlags restores every start flag (and its bound variable) to its
// default after the test, so tests can set flags in any order.
func resetStartFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		startCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestCheckStartFlagsSignalChildRequiresCommand(t *testing.T) {
	resetStartFlags(t)
	startSignalChild = true

	err := checkStartFlags(startCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--signal-child")

	assert.NoError(t, checkStartFlags(startCmd, []string{"sleep", "10"}))
}

func TestCheckStartFlagsChildPidFileRequiresCommand(t *testing.T) {
	resetStartFlags(t)
	startChildPidFile = "/tmp/child.pid"

	err := checkStartFlags(startCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--child-pid-file")
}

func TestCheckStartFlagsAlwaysRenewConflictsWithHappy(t *testing.T) {
	resetStartFlags(t)
	startAlwaysRenew = true

	assert.NoError(t, checkStartFlags(startCmd, nil))

	require.NoError(t, startCmd.Flags().Set("happy", "1h"))
	err := checkStartFlags(startCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--always-renew")
}

func TestMergeStartFlagsOverridesConfig(t *testing.T) {
	resetStartFlags(t)
	require.NoError(t, startCmd.Flags().Set("interval", "15m"))
	require.NoError(t, startCmd.Flags().Set("always-renew", "true"))
	require.NoError(t, startCmd.Flags().Set("signal-child", "true"))
	require.NoError(t, startCmd.Flags().Set("verbose", "true"))

	cfg := config.GetDefaultConfig()
	cfg.Renew.Interval = time.Hour
	mergeStartFlags(startCmd, cfg)

	assert.Equal(t, 15*time.Minute, cfg.Renew.Interval)
	assert.True(t, cfg.Renew.AlwaysRenew)
	assert.True(t, cfg.Renew.SignalChild)
	assert.True(t, cfg.Renew.Verbose)
	assert.Equal(t, "DEBUG", cfg.Logging.Level, "verbose bumps the default level")
}

func TestMergeStartFlagsKeepsConfigValues(t *testing.T) {
	resetStartFlags(t)

	cfg := config.GetDefaultConfig()
	cfg.Renew.AlwaysRenew = true
	cfg.Renew.Verbose = true
	cfg.Renew.IgnoreErrors = true
	mergeStartFlags(startCmd, cfg)

	assert.True(t, cfg.Renew.AlwaysRenew, "unset flags must not clobber config")
	assert.True(t, cfg.Renew.Verbose)
	assert.True(t, cfg.Renew.IgnoreErrors)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := GetRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"start", "renew", "status", "init", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
