// Package logging provides helpers that keep tenant database credentials
// out of log output. Every error or connection string originating from a
// source database must pass through a sanitizer before being logged.
package logging

import (
	"regexp"
)

const (
	// MaxSQLLogLength bounds how much of a statement is ever logged.
	// Audit records carry the truncated text, never the full query.
	MaxSQLLogLength = 100
	// RedactedText replaces any credential material.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user id / uid pairs in DSNs (SQL Server style)
	userIDPattern = regexp.MustCompile(`(?i)(user id|uid)=[^;&\s]+`)

	// user:pass@host inside URL-style connection strings
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeDSN removes credential material from a connection string so it
// can be logged when a tenant backend fails to connect.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	out = userIDPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = urlCredsPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
	return out
}

// SanitizeError sanitizes an error message that may embed a DSN. Driver
// errors frequently echo the full connection string back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeDSN(err.Error())
}

// TruncateSQL bounds a statement for audit/log output and strips any
// credential-looking fragments that made it into the text.
func TruncateSQL(sql string) string {
	if sql == "" {
		return ""
	}
	out := sql
	if len(out) > MaxSQLLogLength {
		out = out[:MaxSQLLogLength] + "..."
	}
	return passwordPattern.ReplaceAllString(out, "${1}="+RedactedText)
}

// Truncate shortens s to maxLen with an ellipsis.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
