// Package ccache reads and writes MIT krb5 file-format credential caches.
//
// The package provides:
//   - A binary codec for the FILE ccache format (parses versions 3 and 4,
//     always emits version 4)
//   - A Cache handle with the operations a cache maintainer needs:
//     resolve, read, reinitialize, store, destroy
//   - Isolate, which copies a cache into a private owner-only file so a
//     supervised process never mutates the cache it was started from
//
// gokrb5 can load a ccache but has no writer, so the wire encoding here is
// implemented directly against the MIT format. A cache holds exactly one
// default principal; Reinitialize truncates the file down to the header and
// principal, and Store appends one credential record. This matches the
// krb5_cc_initialize/krb5_cc_store_cred pairing used by cache-renewing tools
// and intentionally leaves a brief window during which the cache holds no
// credential (there is no atomic replace in the FILE format that does not
// grow the cache forever).
//
// References:
//   - MIT Kerberos ccache file format documentation
//   - RFC 4120 (ticket flags, principal name types)
package ccache
