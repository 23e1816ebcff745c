// Package keeper drives the renewal engine: it decides when a renewal
// attempt is due, wakes up on a timer or on SIGUSR1, supervises an optional
// child command with a private isolated ticket cache, and owns process exit
// (PID files, isolated-cache destruction, child notification).
//
// The keeper talks to the engine only through the renew.Handler interface
// and has no Kerberos knowledge beyond the ticket health check, which reads
// the cache's TGT lifetime to pick a renewal reason.
package keeper
