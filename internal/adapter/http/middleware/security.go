package middleware

import (
	"net/http"
	"strings"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// apiContentPolicy denies every resource type: responses are JSON or event
// streams and are never rendered as documents.
var apiContentPolicy = strings.Join([]string{
	"default-src 'none'",
	"frame-ancestors 'none'",
	"base-uri 'none'",
	"form-action 'none'",
}, "; ")

var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Content-Security-Policy", apiContentPolicy},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the fixed API response headers, plus HSTS when the
// request arrived over TLS. Handlers may override Cache-Control.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range apiHeaders {
			h.Set(kv[0], kv[1])
		}
		if servedOverTLS(r) {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		next.ServeHTTP(w, r)
	})
}

// servedOverTLS trusts X-Forwarded-Proto from a terminating proxy.
func servedOverTLS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
