package renew

import (
	"context"
	"os"
)

// ChildProcess is the engine's view of a supervised command. It only needs
// to know whether the command is still running and how to deliver a signal.
type ChildProcess interface {
	Running() bool
	Signal(sig os.Signal) error
}

// Policy carries the renewal options that stay fixed for the process
// lifetime. The supervisor owns the Policy and passes it by reference on
// every call; the engine never mutates it.
type Policy struct {
	// CacheName is the ticket cache the engine maintains, in KRB5CCNAME
	// syntax (optionally FILE:-prefixed).
	CacheName string

	// IgnoreErrors keeps the process running on fatal-class failures
	// instead of terminating; the supervisor just retries later.
	IgnoreErrors bool

	// Verbose logs the principal on every renewal attempt.
	Verbose bool

	// SignalChild delivers SIGHUP to the supervised command when the
	// process exits because credentials can no longer be maintained.
	SignalChild bool

	// Child is the supervised command, if any. Used only by the
	// termination policy in OnShutdown.
	Child ChildProcess
}

// Handler is the contract between the supervisor loop and the renewal
// engine. OnRenewalDue is called whenever the supervisor decides an attempt
// is warranted (interval elapsed, health check failed, first run).
// OnShutdown is called exactly once as the process is about to exit,
// whatever the cause.
type Handler interface {
	OnRenewalDue(ctx context.Context, policy *Policy, reason Reason) error
	OnShutdown(ctx context.Context, policy *Policy, status int)
}
