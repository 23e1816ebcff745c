package ccache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/types"
)

// File format framing: every FILE ccache starts with 0x05 followed by the
// format version. Versions 1 and 2 use native byte order and are long dead;
// only the big-endian versions 3 and 4 are supported here.
const (
	formatPrefix   = 0x05
	formatVersion3 = 0x03
	formatVersion4 = 0x04

	// v4 header tag for the KDC time offset.
	headerTagDeltaTime = 1
)

// Principal is a Kerberos principal as stored in a ccache: a name type, a
// realm, and one or more name components.
type Principal struct {
	NameType   int32
	Realm      string
	Components []string
}

// String renders the principal in the usual component/component@REALM form.
func (p Principal) String() string {
	return strings.Join(p.Components, "/") + "@" + p.Realm
}

// Name converts the principal to a gokrb5 PrincipalName.
func (p Principal) Name() types.PrincipalName {
	return types.PrincipalName{
		NameType:   p.NameType,
		NameString: append([]string(nil), p.Components...),
	}
}

// Equal reports whether two principals have the same realm and components.
// The name type is not compared; MIT tools treat it as advisory.
func (p Principal) Equal(o Principal) bool {
	if p.Realm != o.Realm || len(p.Components) != len(o.Components) {
		return false
	}
	for i := range p.Components {
		if p.Components[i] != o.Components[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the principal is empty.
func (p Principal) IsZero() bool {
	return p.Realm == "" && len(p.Components) == 0
}

// Address is a client address entry in a credential record.
type Address struct {
	Type uint16
	Data []byte
}

// AuthDataEntry is an authorization-data element in a credential record.
type AuthDataEntry struct {
	Type uint16
	Data []byte
}

// Credential is one credential record: a ticket for Server issued to Client,
// the session key, and the ticket lifetime metadata.
type Credential struct {
	Client       Principal
	Server       Principal
	Key          types.EncryptionKey
	AuthTime     time.Time
	StartTime    time.Time
	EndTime      time.Time
	RenewTill    time.Time
	IsSKey       bool
	TicketFlags  uint32
	Addresses    []Address
	AuthData     []AuthDataEntry
	Ticket       []byte
	SecondTicket []byte
}

// Zero overwrites the session key material in place. Call it before letting a
// credential go out of scope so key bytes do not linger on the heap longer
// than needed.
func (c *Credential) Zero() {
	if c == nil {
		return
	}
	for i := range c.Key.KeyValue {
		c.Key.KeyValue[i] = 0
	}
}

// CCache is the parsed contents of a file credential cache: one default
// principal and its credential records in file order.
type CCache struct {
	Version          uint8
	DefaultPrincipal Principal
	Credentials      []*Credential
}

// GetEntry returns the first credential whose server principal matches the
// given realm and name components.
func (c *CCache) GetEntry(realm string, components ...string) (*Credential, bool) {
	want := Principal{Realm: realm, Components: components}
	for _, cred := range c.Credentials {
		if cred.Server.Equal(want) {
			return cred, true
		}
	}
	return nil, false
}

// TGT returns the ticket-granting ticket for the default principal's realm.
func (c *CCache) TGT() (*Credential, bool) {
	realm := c.DefaultPrincipal.Realm
	return c.GetEntry(realm, "krbtgt", realm)
}

// Unmarshal parses the binary contents of a file credential cache.
func Unmarshal(data []byte) (*CCache, error) {
	d := &decoder{r: bytes.NewReader(data)}

	prefix, err := d.uint8()
	if err != nil {
		return nil, fmt.Errorf("read format prefix: %w", err)
	}
	if prefix != formatPrefix {
		return nil, fmt.Errorf("not a credential cache (leading byte 0x%02x)", prefix)
	}
	version, err := d.uint8()
	if err != nil {
		return nil, fmt.Errorf("read format version: %w", err)
	}
	if version != formatVersion3 && version != formatVersion4 {
		return nil, fmt.Errorf("unsupported ccache version %d", version)
	}
	d.version = version

	if version == formatVersion4 {
		if err := d.skipHeader(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	cc := &CCache{Version: version}
	cc.DefaultPrincipal, err = d.principal()
	if err != nil {
		return nil, fmt.Errorf("read default principal: %w", err)
	}

	for d.r.Len() > 0 {
		cred, err := d.credential()
		if err != nil {
			return nil, fmt.Errorf("read credential %d: %w", len(cc.Credentials), err)
		}
		cc.Credentials = append(cc.Credentials, cred)
	}
	return cc, nil
}

// Marshal serializes the cache in format version 4 with a zero time-offset
// header, regardless of the version it was parsed from.
func (c *CCache) Marshal() ([]byte, error) {
	if c.DefaultPrincipal.IsZero() {
		return nil, fmt.Errorf("cache has no default principal")
	}
	buf := appendFileHeader(nil, c.DefaultPrincipal)
	for _, cred := range c.Credentials {
		buf = appendCredential(buf, cred)
	}
	return buf, nil
}

// decoder reads big-endian ccache fields from a byte stream.
type decoder struct {
	r       *bytes.Reader
	version uint8
}

func (d *decoder) uint8() (uint8, error) {
	return d.r.ReadByte()
}

func (d *decoder) uint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *decoder) uint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// data reads a uint32 length followed by that many bytes.
func (d *decoder) data() ([]byte, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if int(n) > d.r.Len() {
		return nil, fmt.Errorf("field length %d exceeds remaining %d bytes", n, d.r.Len())
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) timestamp() (time.Time, error) {
	v, err := d.uint32()
	if err != nil {
		return time.Time{}, err
	}
	if v == 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(v), 0).UTC(), nil
}

// skipHeader consumes the v4 tagged header. The only defined tag is the KDC
// time offset, which a cache copier has no use for.
func (d *decoder) skipHeader() error {
	n, err := d.uint16()
	if err != nil {
		return err
	}
	if int(n) > d.r.Len() {
		return fmt.Errorf("header length %d exceeds remaining %d bytes", n, d.r.Len())
	}
	_, err = d.r.Seek(int64(n), io.SeekCurrent)
	return err
}

func (d *decoder) principal() (Principal, error) {
	var p Principal

	nt, err := d.uint32()
	if err != nil {
		return p, err
	}
	p.NameType = int32(nt)

	count, err := d.uint32()
	if err != nil {
		return p, err
	}
	realm, err := d.data()
	if err != nil {
		return p, err
	}
	p.Realm = string(realm)

	if count > uint32(d.r.Len()) {
		return p, fmt.Errorf("principal component count %d exceeds remaining bytes", count)
	}
	for i := uint32(0); i < count; i++ {
		comp, err := d.data()
		if err != nil {
			return p, err
		}
		p.Components = append(p.Components, string(comp))
	}
	return p, nil
}

func (d *decoder) credential() (*Credential, error) {
	var cred Credential
	var err error

	if cred.Client, err = d.principal(); err != nil {
		return nil, fmt.Errorf("client principal: %w", err)
	}
	if cred.Server, err = d.principal(); err != nil {
		return nil, fmt.Errorf("server principal: %w", err)
	}

	keyType, err := d.uint16()
	if err != nil {
		return nil, err
	}
	if d.version == formatVersion3 {
		// v3 stores the enctype twice.
		if _, err := d.uint16(); err != nil {
			return nil, err
		}
	}
	keyValue, err := d.data()
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	cred.Key = types.EncryptionKey{KeyType: int32(keyType), KeyValue: keyValue}

	if cred.AuthTime, err = d.timestamp(); err != nil {
		return nil, err
	}
	if cred.StartTime, err = d.timestamp(); err != nil {
		return nil, err
	}
	if cred.EndTime, err = d.timestamp(); err != nil {
		return nil, err
	}
	if cred.RenewTill, err = d.timestamp(); err != nil {
		return nil, err
	}

	isSKey, err := d.uint8()
	if err != nil {
		return nil, err
	}
	cred.IsSKey = isSKey != 0

	if cred.TicketFlags, err = d.uint32(); err != nil {
		return nil, err
	}

	addrCount, err := d.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < addrCount; i++ {
		atype, err := d.uint16()
		if err != nil {
			return nil, err
		}
		adata, err := d.data()
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i, err)
		}
		cred.Addresses = append(cred.Addresses, Address{Type: atype, Data: adata})
	}

	adCount, err := d.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < adCount; i++ {
		adtype, err := d.uint16()
		if err != nil {
			return nil, err
		}
		addata, err := d.data()
		if err != nil {
			return nil, fmt.Errorf("authdata %d: %w", i, err)
		}
		cred.AuthData = append(cred.AuthData, AuthDataEntry{Type: adtype, Data: addata})
	}

	if cred.Ticket, err = d.data(); err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}
	if cred.SecondTicket, err = d.data(); err != nil {
		return nil, fmt.Errorf("second ticket: %w", err)
	}
	return &cred, nil
}

// appendFileHeader emits the v4 file prologue: magic, version, a header
// carrying a zero KDC time offset, and the default principal.
func appendFileHeader(buf []byte, p Principal) []byte {
	buf = append(buf, formatPrefix, formatVersion4)
	// header: length, then one tag {tag, len, 2x uint32 offsets}
	buf = appendUint16(buf, 12)
	buf = appendUint16(buf, headerTagDeltaTime)
	buf = appendUint16(buf, 8)
	buf = appendUint32(buf, 0)
	buf = appendUint32(buf, 0)
	return appendPrincipal(buf, p)
}

func appendPrincipal(buf []byte, p Principal) []byte {
	buf = appendUint32(buf, uint32(p.NameType))
	buf = appendUint32(buf, uint32(len(p.Components)))
	buf = appendData(buf, []byte(p.Realm))
	for _, comp := range p.Components {
		buf = appendData(buf, []byte(comp))
	}
	return buf
}

func appendCredential(buf []byte, cred *Credential) []byte {
	buf = appendPrincipal(buf, cred.Client)
	buf = appendPrincipal(buf, cred.Server)

	buf = appendUint16(buf, uint16(cred.Key.KeyType))
	buf = appendData(buf, cred.Key.KeyValue)

	buf = appendTimestamp(buf, cred.AuthTime)
	buf = appendTimestamp(buf, cred.StartTime)
	buf = appendTimestamp(buf, cred.EndTime)
	buf = appendTimestamp(buf, cred.RenewTill)

	if cred.IsSKey {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, cred.TicketFlags)

	buf = appendUint32(buf, uint32(len(cred.Addresses)))
	for _, a := range cred.Addresses {
		buf = appendUint16(buf, a.Type)
		buf = appendData(buf, a.Data)
	}
	buf = appendUint32(buf, uint32(len(cred.AuthData)))
	for _, ad := range cred.AuthData {
		buf = appendUint16(buf, ad.Type)
		buf = appendData(buf, ad.Data)
	}

	buf = appendData(buf, cred.Ticket)
	buf = appendData(buf, cred.SecondTicket)
	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, v)
}

func appendUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

func appendData(buf []byte, data []byte) []byte {
	buf = appendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func appendTimestamp(buf []byte, t time.Time) []byte {
	if t.IsZero() {
		return appendUint32(buf, 0)
	}
	return appendUint32(buf, uint32(t.Unix()))
}
