package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arenillas/krenewd/internal/logger"
	"github.com/arenillas/krenewd/pkg/ccache"
	"github.com/arenillas/krenewd/pkg/renew"
)

// defaultCommandInterval is the wakeup period when a command is supervised
// and no explicit interval was configured.
const defaultCommandInterval = time.Hour

// maxRetryDelay caps the exponential backoff of the initial-renewal retry.
const maxRetryDelay = 30 * time.Second

// Config holds the keeper's options, fixed for the process lifetime.
type Config struct {
	// CacheName is the ticket cache to maintain, KRB5CCNAME syntax.
	CacheName string

	// Interval is the wakeup period. Zero means a single renewal attempt
	// unless a Command is supervised, in which case it defaults to one
	// hour.
	Interval time.Duration

	// HappyWindow, when set, skips renewal while the ticket remains
	// valid for at least this long past the next wakeup.
	HappyWindow time.Duration

	// AlwaysRenew renews on every wakeup instead of only when the health
	// check says the ticket is close to expiry.
	AlwaysRenew bool

	// IgnoreErrors keeps the daemon running on fatal-class failures.
	IgnoreErrors bool

	// ExitOnError exits as soon as any renewal attempt fails.
	ExitOnError bool

	// Verbose logs the principal on each attempt.
	Verbose bool

	// SignalChild sends SIGHUP to the command when exiting because the
	// ticket can no longer be maintained.
	SignalChild bool

	// Command, when non-empty, is run under supervision with a private
	// isolated copy of the cache; the keeper exits with its status.
	Command []string

	// PIDFile and ChildPIDFile are written after the initial renewal and
	// removed on exit. Empty means no file.
	PIDFile      string
	ChildPIDFile string
}

// Keeper runs the renewal schedule. Create one with New, attach the engine
// with SetHandler, and call Run; Run only returns in tests where the exit
// function is replaced.
type Keeper struct {
	cfg        Config
	policy     *renew.Policy
	handler    renew.Handler
	log        *slog.Logger
	child      *Child
	cleanCache bool
	exit       func(status int)
	exiting    bool
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithLogger sets the keeper's logging sink.
func WithLogger(log *slog.Logger) Option {
	return func(k *Keeper) { k.log = log }
}

// WithExitFunc replaces os.Exit, for tests.
func WithExitFunc(exit func(status int)) Option {
	return func(k *Keeper) { k.exit = exit }
}

// New creates a Keeper for the given configuration.
func New(cfg Config, opts ...Option) *Keeper {
	k := &Keeper{
		cfg: cfg,
		policy: &renew.Policy{
			CacheName:    cfg.CacheName,
			IgnoreErrors: cfg.IgnoreErrors,
			Verbose:      cfg.Verbose,
			SignalChild:  cfg.SignalChild,
		},
		log:  slog.Default(),
		exit: os.Exit,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// SetHandler attaches the renewal engine. The engine's exit function should
// be this keeper's Exit so that fatal failures inside the engine run the
// same cleanup path.
func (k *Keeper) SetHandler(h renew.Handler) {
	k.handler = h
}

// Policy returns the policy the keeper passes to the engine on every call.
func (k *Keeper) Policy() *renew.Policy {
	return k.policy
}

// Run executes the keeper: isolate the cache if a command is supervised, do
// the initial renewal, write PID files, spawn the command, then loop waking
// on the interval, on SIGUSR1, or on child exit. Run does not return except
// through Exit.
func (k *Keeper) Run(ctx context.Context) {
	if len(k.cfg.Command) > 0 {
		if err := k.isolateCache(); err != nil {
			k.log.Error("error isolating ticket cache", logger.Err(err))
			k.Exit(1)
			return
		}
	}

	// First attempt runs before any looping so problems are reported
	// while stderr is still attached to whoever started us. With a happy
	// window configured, only renew when the health check asks for it.
	var attemptErr error
	if k.cfg.HappyWindow == 0 {
		attemptErr = k.handler.OnRenewalDue(ctx, k.policy, renew.ReasonScheduled)
	} else {
		if reason, due := k.ticketStatus(); due {
			attemptErr = k.handler.OnRenewalDue(ctx, k.policy, reason)
		}
	}
	status := 0
	if attemptErr != nil {
		status = 1
		if !k.cfg.IgnoreErrors {
			k.Exit(status)
			return
		}
	}

	k.writePIDFile(k.cfg.PIDFile, os.Getpid())

	sigExit := make(chan os.Signal, 1)
	signal.Notify(sigExit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigExit)
	sigWake := make(chan os.Signal, 1)
	signal.Notify(sigWake, syscall.SIGUSR1)
	defer signal.Stop(sigWake)

	// Never start the command without valid credentials: retry the
	// initial renewal with backoff while errors are being ignored. A
	// single-shot invocation just reports the failure in its status.
	if attemptErr != nil && k.cfg.IgnoreErrors && (k.cfg.Interval > 0 || len(k.cfg.Command) > 0) {
		if !k.retryInitial(ctx, sigExit) {
			return
		}
		attemptErr = nil
		status = 0
	}

	var childDone <-chan int
	if len(k.cfg.Command) > 0 {
		child, err := StartChild(k.cfg.Command)
		if err != nil {
			k.log.Error("unable to run command", "command", k.cfg.Command[0], logger.Err(err))
			k.Exit(1)
			return
		}
		k.child = child
		k.policy.Child = child
		childDone = child.Done()
		if k.cfg.Interval == 0 {
			k.cfg.Interval = defaultCommandInterval
		}
		k.writePIDFile(k.cfg.ChildPIDFile, child.Pid())
	}

	if k.cfg.Interval > 0 {
		k.loop(ctx, sigExit, sigWake, childDone, attemptErr)
		return
	}
	k.Exit(status)
}

// loop is the daemon wakeup cycle. After a failed attempt the next wakeup
// comes after one minute rather than the full interval.
func (k *Keeper) loop(ctx context.Context, sigExit, sigWake <-chan os.Signal, childDone <-chan int, lastErr error) {
	for {
		sleep := k.cfg.Interval
		if lastErr != nil {
			sleep = time.Minute
		}
		timer := time.NewTimer(sleep)

		woke := false
		select {
		case <-timer.C:
		case <-sigWake:
			woke = true
			timer.Stop()
		case <-sigExit:
			timer.Stop()
			k.Exit(0)
			return
		case <-ctx.Done():
			timer.Stop()
			k.Exit(0)
			return
		case st := <-childDone:
			timer.Stop()
			k.Exit(st)
			return
		}

		reason, due := k.ticketStatus()
		if woke || k.cfg.AlwaysRenew || due {
			lastErr = k.handler.OnRenewalDue(ctx, k.policy, reason)
			if lastErr != nil && k.cfg.ExitOnError {
				k.Exit(1)
				return
			}
		} else {
			lastErr = nil
		}
	}
}

// retryInitial retries the first renewal with exponential backoff until it
// succeeds. Returns false when the retry was aborted by a signal or context
// cancellation (Exit has then already been called).
func (k *Keeper) retryInitial(ctx context.Context, sigExit <-chan os.Signal) bool {
	delay := time.Second
	for {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-sigExit:
			timer.Stop()
			k.Exit(1)
			return false
		case <-ctx.Done():
			timer.Stop()
			k.Exit(1)
			return false
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
		if err := k.handler.OnRenewalDue(ctx, k.policy, renew.ReasonScheduled); err == nil {
			return true
		}
	}
}

// Exit runs process-exit cleanup and terminates: notify the engine's
// shutdown hook (which signals the child when configured), destroy the
// isolated cache if we created one, and remove PID files.
func (k *Keeper) Exit(status int) {
	// The engine's exit function points back here; a fatal failure during
	// OnShutdown-triggered work must not recurse.
	if k.exiting {
		return
	}
	k.exiting = true

	if k.handler != nil {
		k.handler.OnShutdown(context.Background(), k.policy, status)
	}
	if k.cleanCache {
		if cache, err := ccache.Resolve(k.policy.CacheName); err == nil {
			if err := cache.Destroy(); err != nil {
				k.log.Warn("cannot destroy ticket cache", logger.Err(err))
			}
		}
	}
	k.removePIDFile(k.cfg.PIDFile)
	k.removePIDFile(k.cfg.ChildPIDFile)
	k.exit(status)
}

// isolateCache gives the supervised command a private copy of the cache and
// retargets renewal at the copy. The copy is destroyed on exit; the user's
// original cache is never touched again.
func (k *Keeper) isolateCache() error {
	source, err := ccache.Resolve(k.policy.CacheName)
	if err != nil {
		return err
	}
	name, err := ccache.Isolate(source)
	if err != nil {
		return err
	}
	k.policy.CacheName = name
	k.cleanCache = true
	if err := os.Setenv("KRB5CCNAME", name); err != nil {
		return fmt.Errorf("set KRB5CCNAME: %w", err)
	}
	if k.cfg.Verbose {
		k.log.Info("using isolated ticket cache", logger.Cache(name))
	}
	return nil
}

func (k *Keeper) ticketStatus() (renew.Reason, bool) {
	return TicketStatus(k.policy.CacheName, k.cfg.Interval, k.cfg.HappyWindow)
}

// writePIDFile reports problems but never fails the keeper over them.
func (k *Keeper) writePIDFile(path string, pid int) {
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		k.log.Warn("cannot create PID file", "path", path, logger.Err(err))
	}
}

func (k *Keeper) removePIDFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		k.log.Warn("cannot remove PID file", "path", path, logger.Err(err))
	}
}
