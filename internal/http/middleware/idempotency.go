// Package middleware contains shared Gin middleware used by the HTTP layer.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key that makes ingest
// submissions safe to retry. Scraper collaborators keep the value stable for
// a given batch (e.g. "zonaprop:2026-09-01:p1") so duplicate deliveries can
// be collapsed into one receipt.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state. Read them through
// the accessor helpers, not directly.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored receipt covers this request
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting for this request
)

// GetIdempotencyKey returns the validated idempotency key that
// IdempotencyValidator stashed for this request, and whether one is present.
// Handlers use this instead of re-reading the header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request would replay an ingest batch that was
// already completed for the same (search, key). Handlers short-circuit and
// serve the stored receipt counts when true.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes header validation. TTL enforcement lives in the
// lookup, not here: receipts carry their own expiry.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

func (o IdempotencyOptions) maxLen() int {
	if o.MaxLen > 0 {
		return o.MaxLen
	}
	return 200
}

// RFC-7230-ish token plus common safe separators.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

func (o IdempotencyOptions) pattern() *regexp.Regexp {
	if o.Pattern != nil {
		return o.Pattern
	}
	return defaultKeyPattern
}

// IngestReplayLookup answers whether a non-expired receipt exists for
// (searchID, key) at the given time, typically by consulting the
// ingest_receipts table. Errors are reserved for lookup failures and never
// block normal processing.
type IngestReplayLookup func(ctx context.Context, searchID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes the key in the request context, and consults the lookup for a prior
// completed batch. A detected replay sets the replay flag (IsReplay) plus the
// rate-bypass flag, so the replayed delivery neither re-ingests nor burns a
// rate-limit token.
//
// Requests without the header pass through untouched. Requests with a
// malformed header are rejected with 400 and a compact error body. The search
// identifier for the lookup comes from the :id route param or the search_id
// query parameter; ingest requests that only carry search_id in the body skip
// the pre-lookup and rely on the handler's own receipt read for dedup.
//
// The middleware never serves a cached payload itself; handlers stay in
// control of how replays are answered.
func IdempotencyValidator(opts IdempotencyOptions, lookup IngestReplayLookup) gin.HandlerFunc {
	maxLen, pat := opts.maxLen(), opts.pattern()

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if searchID := searchIDFromRequest(c); lookup != nil && searchID != "" {
			exists, _ := lookup(c.Request.Context(), searchID, key, time.Now().UTC())
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// searchIDFromRequest extracts the target search identifier without touching
// the request body: route param first, then the search_id query parameter.
func searchIDFromRequest(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("search_id")
}
