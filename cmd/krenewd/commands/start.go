package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arenillas/krenewd/internal/logger"
	"github.com/arenillas/krenewd/pkg/config"
	"github.com/arenillas/krenewd/pkg/keeper"
	"github.com/arenillas/krenewd/pkg/metrics"
	"github.com/arenillas/krenewd/pkg/renew"
)

var (
	startCache        string
	startInterval     time.Duration
	startHappy        time.Duration
	startAlwaysRenew  bool
	startIgnoreErrors bool
	startExitOnError  bool
	startSignalChild  bool
	startVerbose      bool
	startBackground   bool
	startSyslog       bool
	startPidFile      string
	startChildPidFile string
	startLogFile      string
)

var startCmd = &cobra.Command{
	Use:   "start [flags] [-- command [args...]]",
	Short: "Start the renewal daemon",
	Long: `Start the renewal daemon for an existing ticket cache.

The daemon wakes on the configured interval, checks whether the ticket will
stay valid until the next wakeup, and renews it when needed. Renewal uses
the existing ticket-granting ticket; the daemon never holds a password or
keytab, so it stops when the ticket's renewable lifetime runs out.

When a command is given, the daemon copies the ticket cache to a private
file, points the command's KRB5CCNAME at the copy, keeps the copy renewed,
and exits with the command's exit status. The private copy is destroyed on
exit.

Examples:
  # Keep the default ticket cache renewed, waking every hour
  krenewd start

  # Wake every 30 minutes and exit as soon as renewal fails
  krenewd start --interval 30m --exit-on-error

  # Keep renewing even when the cache becomes unusable
  krenewd start --ignore-errors

  # Run a batch job with its own isolated, renewed cache
  krenewd start -- /usr/local/bin/backup --full

  # Send the command a SIGHUP when the ticket cannot be kept alive
  krenewd start --signal-child -- long-running-job

  # Run in the background, logging to the state directory
  krenewd start --background --syslog`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startCache, "cache", "k", "", "Ticket cache to maintain (default: $KRB5CCNAME)")
	startCmd.Flags().DurationVarP(&startInterval, "interval", "K", 0, "Wakeup interval between renewal checks (default: 1h)")
	startCmd.Flags().DurationVarP(&startHappy, "happy", "H", 0, "Skip renewal while the ticket stays valid this long past the next wakeup")
	startCmd.Flags().BoolVarP(&startAlwaysRenew, "always-renew", "a", false, "Renew on every wakeup instead of only near expiry")
	startCmd.Flags().BoolVarP(&startIgnoreErrors, "ignore-errors", "i", false, "Keep running when the ticket can no longer be renewed")
	startCmd.Flags().BoolVarP(&startExitOnError, "exit-on-error", "x", false, "Exit as soon as any renewal attempt fails")
	startCmd.Flags().BoolVarP(&startSignalChild, "signal-child", "s", false, "Send SIGHUP to the command when exiting on a renewal failure")
	startCmd.Flags().BoolVarP(&startVerbose, "verbose", "v", false, "Log each renewal attempt")
	startCmd.Flags().BoolVarP(&startBackground, "background", "b", false, "Detach and run in the background")
	startCmd.Flags().BoolVarP(&startSyslog, "syslog", "L", false, "Copy log messages to syslog")
	startCmd.Flags().StringVarP(&startPidFile, "pid-file", "p", "", "Write the daemon PID to this file")
	startCmd.Flags().StringVar(&startChildPidFile, "child-pid-file", "", "Write the command's PID to this file")
	startCmd.Flags().StringVar(&startLogFile, "log-file", "", "Log file for background mode (default: $XDG_STATE_HOME/krenewd/krenewd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := checkStartFlags(cmd, args); err != nil {
		return err
	}

	if startBackground {
		return startDaemon(cmd, args)
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	mergeStartFlags(cmd, cfg)

	if err := InitLogger(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		srv := metrics.Server(cfg.Metrics.Port)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", logger.Err(err))
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	krbConf, err := LoadKrb5Config(cfg.Renew.Krb5Conf)
	if err != nil {
		return err
	}

	cacheName := ResolveCacheName(cfg.Renew.Cache)

	kp := keeper.New(keeper.Config{
		CacheName:    cacheName,
		Interval:     cfg.Renew.Interval,
		HappyWindow:  cfg.Renew.HappyWindow,
		AlwaysRenew:  cfg.Renew.AlwaysRenew,
		IgnoreErrors: cfg.Renew.IgnoreErrors,
		ExitOnError:  cfg.Renew.ExitOnError,
		Verbose:      cfg.Renew.Verbose,
		SignalChild:  cfg.Renew.SignalChild,
		Command:      args,
		PIDFile:      cfg.Renew.PIDFile,
		ChildPIDFile: startChildPidFile,
	}, keeper.WithLogger(logger.Logger()))

	// Fatal renewal failures inside the engine exit through the keeper so
	// cleanup (child signal, isolated cache, PID files) always runs.
	eng := renew.New(renew.NewKDCRenewer(krbConf),
		renew.WithLogger(logger.Logger()),
		renew.WithMetrics(metrics.NewRenewalMetrics()),
		renew.WithExitFunc(kp.Exit),
	)
	kp.SetHandler(eng)

	logger.Info("renewal daemon starting",
		logger.Cache(cacheName),
		logger.KeyInterval, cfg.Renew.Interval,
		"config", getConfigSource(GetConfigFile()),
	)

	kp.Run(context.Background())
	return nil
}

// checkStartFlags rejects flag combinations that cannot work together.
func checkStartFlags(cmd *cobra.Command, args []string) error {
	if startSignalChild && len(args) == 0 {
		return errors.New("--signal-child only makes sense with a command to supervise")
	}
	if startChildPidFile != "" && len(args) == 0 {
		return errors.New("--child-pid-file only makes sense with a command to supervise")
	}
	if startAlwaysRenew && cmd.Flags().Changed("happy") {
		return errors.New("--always-renew and --happy cannot be combined")
	}
	return nil
}

// mergeStartFlags overlays explicitly set flags onto the loaded config.
// Flags beat config file values which beat defaults.
func mergeStartFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("cache") {
		cfg.Renew.Cache = startCache
	}
	if flags.Changed("interval") {
		cfg.Renew.Interval = startInterval
	}
	if flags.Changed("happy") {
		cfg.Renew.HappyWindow = startHappy
	}
	if flags.Changed("always-renew") {
		cfg.Renew.AlwaysRenew = startAlwaysRenew
	}
	if flags.Changed("ignore-errors") {
		cfg.Renew.IgnoreErrors = startIgnoreErrors
	}
	if flags.Changed("exit-on-error") {
		cfg.Renew.ExitOnError = startExitOnError
	}
	if flags.Changed("signal-child") {
		cfg.Renew.SignalChild = startSignalChild
	}
	if flags.Changed("verbose") {
		cfg.Renew.Verbose = startVerbose
	}
	if flags.Changed("pid-file") {
		cfg.Renew.PIDFile = startPidFile
	}
	if startSyslog {
		cfg.Logging.Syslog = true
	}
	if cfg.Renew.Verbose && cfg.Logging.Level == "INFO" {
		cfg.Logging.Level = "DEBUG"
	}
}

// startDaemon re-executes krenewd in the background, detached from the
// terminal, with output going to a log file.
func startDaemon(cmd *cobra.Command, args []string) error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := startPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pid, running := readDaemonPid(pidPath); running {
		return fmt.Errorf("krenewd is already running (PID %d)", pid)
	}

	logPath := startLogFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Rebuild the command line without --background so the child runs in
	// the foreground of its own session.
	daemonArgs := []string{"start", "--pid-file=" + pidPath}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "background", "pid-file", "log-file":
			return
		}
		daemonArgs = append(daemonArgs, "--"+f.Name+"="+f.Value.String())
	})
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config="+GetConfigFile())
	}
	if len(args) > 0 {
		daemonArgs = append(daemonArgs, "--")
		daemonArgs = append(daemonArgs, args...)
	}

	daemon := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	daemon.Stdout = logFileHandle
	daemon.Stderr = logFileHandle

	// Detach from the parent's session and controlling terminal
	daemon.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := daemon.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logFileHandle.Close()

	fmt.Printf("krenewd started in background (PID %d)\n", daemon.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	return nil
}

// readDaemonPid reads a PID file and reports whether that process is still
// alive. A stale PID file is removed.
func readDaemonPid(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		_ = os.Remove(pidPath)
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err == nil {
		if err := process.Signal(syscall.Signal(0)); err == nil {
			return pid, true
		}
	}
	_ = os.Remove(pidPath)
	return 0, false
}
