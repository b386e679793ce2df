package middleware

import (
	"net/http"
	"strings"
)

// apiCSP forbids every resource type. The console API only serves JSON and
// rendered tooltip fragments that the client injects itself.
var apiCSP = strings.Join([]string{
	"default-src 'none'",
	"base-uri 'none'",
	"form-action 'none'",
	"frame-ancestors 'none'",
}, "; ")

// SecurityHeadersMiddleware adds security headers to API responses.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Selection and camera state change on every request.
		h.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
