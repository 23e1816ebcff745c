package keeper

import (
	"time"

	"github.com/arenillas/krenewd/pkg/ccache"
	"github.com/arenillas/krenewd/pkg/renew"
)

// expireFudge pads the expiry check so the daemon never wakes up to find the
// ticket expiring in the next instant.
const expireFudge = 2 * time.Minute

// TicketStatus checks whether the cache's ticket-granting ticket will stay
// usable for the next wakeup period. It returns the renewal reason to pass
// to the engine and whether a renewal is due now.
//
// The lookahead is interval+happy when a happy window is configured, else
// interval plus a two-minute fudge. A ticket expiring inside the lookahead
// is Expired if its renewal window still covers the lookahead, and
// RenewalWindowClosed otherwise. A cache that cannot be opened, parsed, or
// has no TGT reports CacheUnreadable.
func TicketStatus(cacheName string, interval, happy time.Duration) (renew.Reason, bool) {
	cache, err := ccache.Resolve(cacheName)
	if err != nil {
		return renew.ReasonCacheUnreadable, true
	}
	cc, err := cache.Read()
	if err != nil {
		return renew.ReasonCacheUnreadable, true
	}
	tgt, ok := cc.TGT()
	if !ok {
		return renew.ReasonCacheUnreadable, true
	}

	lookahead := interval + expireFudge
	if happy > 0 {
		lookahead = interval + happy
	}
	horizon := time.Now().Add(lookahead)

	if tgt.EndTime.After(horizon) {
		return renew.ReasonScheduled, false
	}
	if !tgt.RenewTill.After(horizon) {
		return renew.ReasonRenewalWindowClosed, true
	}
	return renew.ReasonExpired, true
}
