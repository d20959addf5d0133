// RedactingLogger is the access log. Listing payloads carry publisher
// WhatsApp numbers and users register by phone contact, so before anything
// reaches zerolog the query string and header values are scrubbed of phone
// numbers, emails, and UUID-like identifiers, sensitive headers are masked
// wholesale, and bodies are never logged at all. Scrubbing shrinks the leak
// surface rather than eliminating it; clients should still keep PII out of
// query strings.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PII patterns, compiled once. UUID runs first so the phone pattern cannot
// match the digit/hyphen segments inside an identifier; phone is the loosest
// and runs last. The phone shape covers what users and publishers actually
// submit: "+54 9 11 5555-1234", "11 5555 1234", "(011) 5555-1234".
var (
	redactUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	redactEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	redactPhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrubPII replaces identifiers, emails, and phone numbers in s with typed
// redaction markers.
func scrubPII(s string) string {
	if s == "" {
		return s
	}
	s = redactUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmail.ReplaceAllString(s, "[REDACTED:email]")
	return redactPhone.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra header names (case-insensitive) whose values
	// are logged as "[REDACTED]", on top of the built-in Authorization,
	// Cookie, and Set-Cookie set.
	MaskHeaders []string
}

// maskSet lowercases and merges the configured header names with the
// built-in sensitive set.
func (o RedactOptions) maskSet() map[string]struct{} {
	m := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range o.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return m
}

// RedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed: the query string and every
// header value pass through scrubPII, and headers in the mask set are
// replaced wholesale. One "http_request" line is emitted per request at a
// level chosen by status (error for 5xx, warn for 4xx, info otherwise),
// carrying method, route path, scrubbed query and headers, status, size,
// latency, and the correlation id. Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := opts.maskSet()

	return func(c *gin.Context) {
		start := time.Now()

		// Capture scrubbed request metadata before handlers run; they may
		// consume or mutate the request.
		safeQuery := scrubPII(c.Request.URL.RawQuery)
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for name, vals := range c.Request.Header {
			if _, hide := masked[strings.ToLower(name)]; hide {
				safeHeaders[name] = "[REDACTED]"
				continue
			}
			safeHeaders[name] = scrubPII(strings.Join(vals, ", "))
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rid := c.Writer.Header().Get(requestIDHeader)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
