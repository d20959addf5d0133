// SecurityHeaders hardens a JSON API running behind a reverse proxy:
// baseline anti-sniffing and framing headers on every response, plus opt-in
// HSTS, cache suppression, and browser feature policies.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects the optional header blocks.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security, and only over HTTPS.
	// Enable it solely when traffic is HTTPS end-to-end, proxy to app
	// included.
	EnableHSTS bool
	// HSTSMaxAge is the HSTS lifetime; unset defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore adds Cache-Control: no-store (with legacy Pragma and Expires)
	// so responses carrying contact data are never cached.
	NoStore bool
	// EnablePolicy sends Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies. Browsers honor them; scraper and
	// bot clients ignore them harmlessly.
	EnablePolicy bool
}

// SecurityHeaders stamps every response with nosniff, DENY framing, and a
// no-referrer policy, then layers on whatever the options enable. A response
// that carries X-Request-ID also gets it listed in
// Access-Control-Expose-Headers so browser clients can read it. There is no
// CSP; the API never serves HTML.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hstsAge := opt.HSTSMaxAge
	if hstsAge <= 0 {
		hstsAge = 180 * 24 * time.Hour
	}
	hsts := fmt.Sprintf("max-age=%d; includeSubDomains; preload", int(hstsAge.Seconds()))

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		exposeRequestID(h)

		c.Next()
	}
}

// exposeRequestID appends X-Request-ID to Access-Control-Expose-Headers when
// the response carries one, preserving any values already exposed.
func exposeRequestID(h http.Header) {
	if h.Get(requestIDHeader) == "" {
		return
	}
	const expose = "Access-Control-Expose-Headers"
	switch cur := h.Get(expose); {
	case cur == "":
		h.Set(expose, requestIDHeader)
	case !strings.Contains(cur, requestIDHeader):
		h.Set(expose, cur+", "+requestIDHeader)
	}
}

// isHTTPS covers both direct TLS and a terminating proxy announcing
// X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
