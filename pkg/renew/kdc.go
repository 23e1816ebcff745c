package renew

import (
	"context"
	"encoding/binary"

	"github.com/jcmturner/gofork/encoding/asn1"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/arenillas/krenewd/pkg/ccache"
)

// Renewer obtains a renewed ticket-granting ticket for a principal, using
// the credentials already present in the named cache as renewal proof.
type Renewer interface {
	Renew(ctx context.Context, cacheName string, client ccache.Principal) (*ccache.Credential, error)
}

// KDCRenewer performs the renewal against the issuing KDC with a TGS
// exchange carrying the renew option. The exchange is authenticated with the
// existing TGT and its session key; no long-term key is involved at any
// point.
type KDCRenewer struct {
	conf *krb5config.Config
}

// NewKDCRenewer creates a renewer for the realms described by the given
// krb5 configuration.
func NewKDCRenewer(conf *krb5config.Config) *KDCRenewer {
	return &KDCRenewer{conf: conf}
}

var _ Renewer = (*KDCRenewer)(nil)

// Renew loads the cache, locates the TGT for the client's realm, and asks
// that realm's KDC for a renewed ticket. The engine performs no network I/O
// besides this call; it blocks until the KDC answers or the exchange times
// out per krb5.conf.
func (r *KDCRenewer) Renew(_ context.Context, cacheName string, who ccache.Principal) (*ccache.Credential, error) {
	cache, err := ccache.Resolve(cacheName)
	if err != nil {
		return nil, err
	}
	cc, err := credentials.LoadCCache(cache.Path())
	if err != nil {
		return nil, fmt.Errorf("load cache %s: %w", cache.Path(), err)
	}

	cl, err := client.NewFromCCache(cc, r.conf, client.DisablePAFXFAST(true))
	if err != nil {
		return nil, fmt.Errorf("initialize KDC client from cache: %w", err)
	}
	defer cl.Destroy()

	realm := cc.DefaultPrincipal.Realm
	spn := types.PrincipalName{
		NameType:   nametype.KRB_NT_SRV_INST,
		NameString: []string{"krbtgt", realm},
	}
	entry, ok := cc.GetEntry(spn)
	if !ok {
		return nil, fmt.Errorf("no ticket-granting ticket for realm %s in cache", realm)
	}
	var tgt messages.Ticket
	if err := tgt.Unmarshal(entry.Ticket); err != nil {
		return nil, fmt.Errorf("decode ticket-granting ticket: %w", err)
	}

	_, rep, err := cl.TGSREQGenerateAndExchange(spn, realm, tgt, entry.Key, true)
	if err != nil {
		return nil, fmt.Errorf("TGS renewal exchange: %w", err)
	}

	tktBytes, err := rep.Ticket.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode renewed ticket: %w", err)
	}

	enc := rep.DecryptedEncPart
	return &ccache.Credential{
		Client: who,
		Server: ccache.Principal{
			NameType:   enc.SName.NameType,
			Realm:      enc.SRealm,
			Components: enc.SName.NameString,
		},
		Key:         enc.Key,
		AuthTime:    enc.AuthTime,
		StartTime:   enc.StartTime,
		EndTime:     enc.EndTime,
		RenewTill:   enc.RenewTill,
		TicketFlags: flagBits(enc.Flags),
		Ticket:      tktBytes,
	}, nil
}

// flagBits packs the KDC's TicketFlags bit string into the 32-bit form used
// by the file ccache format (bit 0 at the most significant position).
func flagBits(f asn1.BitString) uint32 {
	var b [4]byte
	copy(b[:], f.Bytes)
	return binary.BigEndian.Uint32(b[:])
}
