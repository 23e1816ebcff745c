// Package renew implements the credential renewal engine for krenewd.
//
// The engine keeps a renewable ticket-granting ticket alive without the
// principal's key ever being present: each attempt asks the KDC for a
// renewed ticket using the existing ticket as proof (a TGS exchange with the
// renew option, never a fresh AS exchange), then replaces the cache contents
// with the renewed credential.
//
// Failures fall into two classes. Fatal failures (the cache cannot be read,
// or the ticket's total renewable lifetime has run out) escalate to process
// termination unless the ignore-errors policy is set. Soft failures (the KDC
// is unreachable, the renewed ticket cannot be stored) are logged and left
// for the next scheduled attempt; the renewed in-memory credential is
// discarded and re-obtained on that attempt.
//
// The supervisor loop in pkg/keeper drives the engine through the Handler
// interface and owns scheduling, signals, and child process supervision; the
// engine itself is synchronous, single-threaded, and holds no resources
// across calls.
package renew
