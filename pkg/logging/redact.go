// redact.go - masking of credentials before they reach a log line.
package logging

import "strings"

// RedactToken masks a session or video token, keeping the first 8
// characters for correlation.
//
//	"eyJhbGciOiJIUzI1NiJ9.e30.sig" → "eyJhbGci..."
//	""                             → "[empty]"
func RedactToken(t string) string {
	if len(t) == 0 {
		return "[empty]"
	}
	if len(t) <= 8 {
		return t[:1] + "..."
	}
	return t[:8] + "..."
}

// RedactDSN hides the password of a connection URL.
//
//	"postgres://app:secret@db:5432/laocinema" → "postgres://app:***@db:5432/laocinema"
func RedactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
}
