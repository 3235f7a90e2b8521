package logger

import (
	"fmt"
	"net/url"
	"strings"
)

// maxLogValueLength caps user-controlled values so a single field cannot
// flood a log line.
const maxLogValueLength = 512

// SanitizeForLog escapes control characters in a string to prevent log injection attacks.
// It preserves Unicode characters while escaping newlines, tabs, null bytes, ANSI
// escape codes and other control characters (< 32, 127). Values longer than
// maxLogValueLength are truncated with a trailing ellipsis.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(min(len(s), maxLogValueLength))

	written := 0
	for _, r := range s {
		if written >= maxLogValueLength {
			result.WriteString("...")
			break
		}
		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		case '\x00':
			result.WriteString("\\x00")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
		written++
	}
	return result.String()
}

// RedactURL strips credentials and query values from a source reference before
// it is logged. Query keys are kept so the shape of the URL stays visible.
// Non-URL input is only sanitized.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return SanitizeForLog(raw)
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "x")
		}
		u.RawQuery = q.Encode()
	}
	return SanitizeForLog(u.String())
}
