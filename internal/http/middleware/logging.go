// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the request ID injector, the structured access logger,
// and a panic-safe recovery handler:
//
//   - RequestID() ensures every request carries a correlation ID, propagated
//     via the X-Request-ID header and stored in the Gin context.
//   - Logger() emits one structured access log per request with latency,
//     status, and size fields, and attaches a request-scoped zerolog.Logger
//     for handlers and services to enrich.
//   - Recovery() converts panics into JSON 500 responses while preserving the
//     correlation ID and emitting a stack trace.
//   - LoggerFrom() retrieves the request-scoped logger.
//
// Recommended order: RequestID, then Logger (or RedactingLogger), then
// Recovery, so panics are logged with full request context.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxLoggedQuery caps the bytes of raw query string carried into logs.
	// Provider search URLs can be very long.
	maxLoggedQuery = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// An incoming X-Request-ID is trusted and reused so the scraper's and
// gateway's retries correlate across hops; otherwise a fresh UUIDv4 is
// generated. The ID ends up in the response header and in the Gin context.
//
// Place this first in the chain so everything downstream can rely on the ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// requestLogger builds the request-scoped logger with the fields shared by
// Logger and RedactingLogger, minus any redaction.
func requestLogger(c *gin.Context, query string) zerolog.Logger {
	rid, _ := c.Get(requestIDKey)
	path := c.FullPath()
	if path == "" {
		// Route not matched (404); fall back to what the client sent.
		path = c.Request.URL.Path
	}
	return log.With().
		Str("request_id", ctxString(rid)).
		Str("method", c.Request.Method).
		Str("path", path).
		Str("remote_ip", c.ClientIP()).
		Str("user_agent", c.Request.UserAgent()).
		Str("query", clip(query, maxLoggedQuery)).
		Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
		Logger()
}

// finishAccessLog emits the per-request line at a level chosen by outcome:
// error for 5xx or Gin-collected errors, warn for 4xx, info otherwise.
func finishAccessLog(c *gin.Context, l zerolog.Logger, start time.Time) {
	status := c.Writer.Status()
	out := l.With().
		Int("status", status).
		Dur("latency", time.Since(start)).
		Int("bytes_out", c.Writer.Size()).
		Logger()

	switch {
	case len(c.Errors) > 0:
		out.Error().Str("errors", c.Errors.String()).Msg("request")
	case status >= 500:
		out.Error().Msg("request")
	case status >= 400:
		out.Warn().Msg("request")
	default:
		out.Info().Msg("request")
	}
}

// Logger writes a structured access log for each request and response.
//
// It records method, route path (falling back to the raw URL path for
// unmatched routes), client IP, user agent, correlation ID, request size,
// response status, latency, and bytes written. The request-scoped logger is
// stored in the Gin context under "logger" so downstream code can emit logs
// tied to the request. Place after RequestID().
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := requestLogger(c, c.Request.URL.RawQuery)
		c.Set("logger", &l)

		c.Next()

		finishAccessLog(c, l, start)
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500.
//
// If no response has been written yet, the standard error envelope is
// emitted with code "internal_error" and the correlation ID. Place this
// after Logger() so the panic is captured with structured context.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", ctxString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, ctxString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": ctxString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// If a logger was not previously attached by Logger(), a fallback logger
// without request fields is returned, so callers never need nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// ctxString converts a context value to a string, "" for non-strings.
func ctxString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// clip caps s at max bytes, appending an ellipsis when it had to cut.
// A max <= 0 disables clipping. Byte granularity is fine for log fields.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
