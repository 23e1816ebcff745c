package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so the
// daemon's output stays greppable across commands.
const (
	KeyCache     = "cache"     // ticket cache name, KRB5CCNAME syntax
	KeyPrincipal = "principal" // Kerberos principal
	KeyReason    = "reason"    // why a renewal attempt ran
	KeyCommand   = "command"   // supervised command
	KeyPID       = "pid"       // process ID
	KeyStatus    = "status"    // exit status
	KeyInterval  = "interval"  // wakeup period
	KeyPath      = "path"      // filesystem path
	KeyError     = "error"     // error detail
)

// Err wraps an error as an attribute under KeyError.
func Err(err error) slog.Attr {
	return slog.String(KeyError, err.Error())
}

// Cache tags a record with the ticket cache name.
func Cache(name string) slog.Attr {
	return slog.String(KeyCache, name)
}

// Principal tags a record with a Kerberos principal.
func Principal(name string) slog.Attr {
	return slog.String(KeyPrincipal, name)
}

// appendPlainAttr formats an attribute without color, for sinks like syslog
// that must not carry ANSI escapes.
func appendPlainAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()
	buf = append(buf, ' ')
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	buf = append(buf, formatValue(a.Value)...)
	return buf
}
