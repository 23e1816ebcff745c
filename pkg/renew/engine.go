package renew

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"github.com/arenillas/krenewd/internal/logger"
	"github.com/arenillas/krenewd/pkg/ccache"
	"github.com/arenillas/krenewd/pkg/metrics"
)

// Engine is the credential renewal engine. It is driven serially by the
// supervisor; concurrent calls for the same cache are not supported. Every
// resource an attempt acquires (cache handle, parsed cache, credential) is
// scoped to that attempt and released before it returns.
type Engine struct {
	renewer Renewer
	log     *slog.Logger
	metrics *metrics.RenewalMetrics
	exit    func(status int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logging sink for the engine. The engine never logs
// through global state.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches renewal metrics. A nil metric set is fine.
func WithMetrics(m *metrics.RenewalMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExitFunc replaces the process-termination facility. The supervisor
// installs its cleanup-and-exit here so that PID files and isolated caches
// are removed on the way out; tests install a recorder.
func WithExitFunc(exit func(status int)) Option {
	return func(e *Engine) { e.exit = exit }
}

// New creates an Engine that obtains renewed credentials through the given
// Renewer. By default the engine logs through slog.Default and terminates
// the process with os.Exit on fatal failures.
func New(renewer Renewer, opts ...Option) *Engine {
	e := &Engine{
		renewer: renewer,
		log:     slog.Default(),
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Handler = (*Engine)(nil)

// OnRenewalDue attempts one renewal. For fatal-class reasons it logs,
// escalates per policy, and performs no cache I/O at all. For scheduled or
// expired reasons it runs the renewal sequence: open the cache, read the
// principal, obtain a renewed ticket from the KDC using the existing one as
// proof, then reinitialize the cache and store the result. KDC and store
// failures are soft: logged, returned, and left for the next cycle.
func (e *Engine) OnRenewalDue(ctx context.Context, policy *Policy, reason Reason) error {
	e.metrics.ObserveAttempt()

	if reason.Fatal() {
		if reason == ReasonRenewalWindowClosed {
			e.log.Warn("ticket cannot be renewed for long enough")
		} else {
			e.log.Warn("error reading ticket cache", "reason", reason.String())
		}
		e.metrics.ObserveFailure(metrics.FailureFatal)
		if !policy.IgnoreErrors {
			e.exit(1)
		}
		return &ReasonError{Reason: reason}
	}

	cache, err := ccache.Resolve(policy.CacheName)
	if err != nil {
		return e.fatalFailure(policy, "error opening ticket cache", err)
	}
	cc, err := cache.Read()
	if err != nil {
		return e.fatalFailure(policy, "error opening ticket cache", err)
	}
	user := cc.DefaultPrincipal
	if user.IsZero() {
		return e.fatalFailure(policy, "error reading ticket cache",
			&ccacheNoPrincipalError{path: cache.Path()})
	}

	if policy.Verbose {
		e.log.Info("renewing credentials", logger.Principal(user.String()))
	}

	cred, err := e.renewer.Renew(ctx, cache.Name(), user)
	if err != nil {
		return e.softFailure("error renewing credentials", err)
	}
	defer cred.Zero()

	// Reinitializing before storing leaves a short window with no valid
	// credential in the cache. Storing without reinitializing would grow
	// the cache file on every renewal, so the window is the lesser evil.
	if err := cache.Reinitialize(user); err != nil {
		return e.softFailure("error reinitializing cache", err)
	}
	if err := cache.Store(cred); err != nil {
		return e.softFailure("error storing credentials", err)
	}

	e.metrics.ObserveSuccess()
	return nil
}

// OnShutdown implements the termination policy's child notification: if a
// supervised command is still running and the policy asks for it, the
// command gets a SIGHUP so it learns its credentials are no longer being
// maintained. This is the only asynchronous notice the command receives.
func (e *Engine) OnShutdown(_ context.Context, policy *Policy, _ int) {
	if policy == nil || policy.Child == nil || !policy.SignalChild {
		return
	}
	if !policy.Child.Running() {
		return
	}
	if err := policy.Child.Signal(syscall.SIGHUP); err != nil {
		e.log.Warn("error signaling command", logger.Err(err))
	}
}

// fatalFailure handles a fatal-class failure inside the renewal sequence:
// warn, terminate unless errors are ignored, and hand the underlying error
// back to the caller.
func (e *Engine) fatalFailure(policy *Policy, msg string, err error) error {
	e.log.Warn(msg, logger.Err(err))
	e.metrics.ObserveFailure(metrics.FailureFatal)
	if !policy.IgnoreErrors {
		e.exit(1)
	}
	return err
}

// softFailure handles an expected-transient failure: warn and return, never
// terminate. The scheduler retries on its next cycle.
func (e *Engine) softFailure(msg string, err error) error {
	e.log.Warn(msg, logger.Err(err))
	e.metrics.ObserveFailure(metrics.FailureSoft)
	return err
}

type ccacheNoPrincipalError struct {
	path string
}

func (e *ccacheNoPrincipalError) Error() string {
	return "cache " + e.path + " has no principal"
}
