package renew

import "fmt"

// Reason tells the engine why a renewal attempt was requested. It is the
// outcome of the supervisor's ticket health check (or Scheduled for a plain
// periodic wakeup).
type Reason int

const (
	// ReasonScheduled is a normal periodic wakeup or the first run.
	ReasonScheduled Reason = iota

	// ReasonExpired means the ticket is past (or about to pass) its usable
	// lifetime but still inside its renewal window.
	ReasonExpired

	// ReasonRenewalWindowClosed means the ticket's total renewable lifetime
	// has elapsed. Renewal is impossible until someone re-authenticates.
	ReasonRenewalWindowClosed

	// ReasonCacheUnreadable means the health check could not open or parse
	// the ticket cache.
	ReasonCacheUnreadable
)

func (r Reason) String() string {
	switch r {
	case ReasonScheduled:
		return "scheduled"
	case ReasonExpired:
		return "expired"
	case ReasonRenewalWindowClosed:
		return "renewal window closed"
	case ReasonCacheUnreadable:
		return "cache unreadable"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Fatal reports whether the reason belongs to the fatal class: anything that
// is not a plain scheduled or expired-but-renewable attempt.
func (r Reason) Fatal() bool {
	return r != ReasonScheduled && r != ReasonExpired
}

// ReasonError is returned by the engine for fatal-class reasons, carrying the
// reason back unchanged so the caller can decide whether to retry.
type ReasonError struct {
	Reason Reason
}

func (e *ReasonError) Error() string {
	return "renewal not possible: " + e.Reason.String()
}
