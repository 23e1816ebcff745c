package renew

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jcmturner/gofork/encoding/asn1"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"

	"github.com/arenillas/krenewd/pkg/ccache"
)

func TestFlagBits(t *testing.T) {
	tests := []struct {
		name string
		in   asn1.BitString
		want uint32
	}{
		{
			name: "full four bytes",
			in:   asn1.BitString{Bytes: []byte{0x00, 0xa0, 0x00, 0x00}, BitLength: 32},
			want: 0x00a00000,
		},
		{
			name: "short bit string pads with zeros",
			in:   asn1.BitString{Bytes: []byte{0x50, 0x40}, BitLength: 16},
			want: 0x50400000,
		},
		{
			name: "empty",
			in:   asn1.BitString{},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flagBits(tt.in); got != tt.want {
				t.Errorf("flagBits = %#08x, want %#08x", got, tt.want)
			}
		})
	}
}

// writeCacheWithoutTGT writes a cache for alice holding only a service
// ticket, no TGT, and returns its path.
func writeCacheWithoutTGT(t *testing.T, issued time.Time) string {
	t.Helper()
	svc := tgtFor(alicePrincipal(), issued)
	svc.Server = ccache.Principal{
		NameType:   nametype.KRB_NT_SRV_HST,
		Realm:      "EXAMPLE.ORG",
		Components: []string{"host", "web.example.org"},
	}
	cc := &ccache.CCache{
		DefaultPrincipal: alicePrincipal(),
		Credentials:      []*ccache.Credential{svc},
	}
	data, err := cc.Marshal()
	if err != nil {
		t.Fatalf("marshal cache: %v", err)
	}
	path := filepath.Join(t.TempDir(), "krb5cc")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	return path
}

func TestKDCRenewer_UnreadableCache(t *testing.T) {
	r := NewKDCRenewer(krb5config.New())
	missing := filepath.Join(t.TempDir(), "no-such-cache")

	_, err := r.Renew(context.Background(), "FILE:"+missing, alicePrincipal())
	if err == nil {
		t.Fatal("expected error for missing cache file")
	}
	if !strings.Contains(err.Error(), "load cache") {
		t.Errorf("error = %v, want load cache failure", err)
	}
}

func TestKDCRenewer_UnsupportedCacheType(t *testing.T) {
	r := NewKDCRenewer(krb5config.New())

	_, err := r.Renew(context.Background(), "KCM:1000", alicePrincipal())
	if err == nil {
		t.Fatal("expected error for KCM cache")
	}
	if !strings.Contains(err.Error(), "unsupported cache type") {
		t.Errorf("error = %v, want unsupported cache type", err)
	}
}

func TestKDCRenewer_NoTGTInCache(t *testing.T) {
	r := NewKDCRenewer(krb5config.New())
	path := writeCacheWithoutTGT(t, time.Now())

	_, err := r.Renew(context.Background(), "FILE:"+path, alicePrincipal())
	if err == nil {
		t.Fatal("expected error for cache without a TGT")
	}
	if !strings.Contains(err.Error(), "initialize KDC client") {
		t.Errorf("error = %v, want client initialization failure", err)
	}
}

func TestKDCRenewer_UndecodableTicket(t *testing.T) {
	r := NewKDCRenewer(krb5config.New())
	// writeCache's TGT entry carries placeholder ticket bytes that are not
	// a valid Kerberos ticket, so client construction must reject them.
	path := writeCache(t, time.Now())

	_, err := r.Renew(context.Background(), "FILE:"+path, alicePrincipal())
	if err == nil {
		t.Fatal("expected error for undecodable ticket bytes")
	}
	if !strings.Contains(err.Error(), "initialize KDC client") {
		t.Errorf("error = %v, want client initialization failure", err)
	}
}
