package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// withCapturedLogger swaps the global zerolog writer for a buffer of plain
// JSON lines for the duration of the test.
func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	buf := new(bytes.Buffer)
	log.Logger = zerolog.New(buf)
	return buf
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := withCapturedLogger(t)

	// Simulate upstream RequestID middleware that sets the response header
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))

	// Route with params so c.FullPath() is non-empty
	r.GET("/searches/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Query and headers carrying the kinds of PII listing payloads leak:
	// publisher phones, contact emails, entity UUIDs.
	q := "email=a.b+tag@example.com&phone=+54-9-11-5555-1234&user_id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/searches/123?"+q, nil)
	req.Header.Set("Authorization", "Bearer tok-9f2a")
	req.Header.Set("Cookie", "session=caba-1a2b")
	req.Header.Set("X-Api-Key", "zp-live-key")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 11 5555-1234")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) {
		t.Fatalf("2xx should log at info: %s", logs)
	}
	if !strings.Contains(logs, `"path":"/searches/:id"`) {
		t.Fatalf("expected route pattern path, got: %s", logs)
	}
	if !strings.Contains(logs, `"request_id":"rid-resp"`) {
		t.Fatalf("expected response request id, got: %s", logs)
	}

	// Raw PII must never survive into the log line.
	for _, leak := range []string{
		"a.b+tag@example.com",
		"5555-1234",
		"123e4567-e89b-12d3-a456-426614174000",
		"tok-9f2a",
		"caba-1a2b",
		"zp-live-key",
		"a@b.com",
	} {
		if strings.Contains(logs, leak) {
			t.Fatalf("PII %q leaked into log: %s", leak, logs)
		}
	}
	// And the placeholders must be present.
	for _, marker := range []string{"[REDACTED:id]", "[REDACTED:email]", "[REDACTED:phone]", "[REDACTED]"} {
		if !strings.Contains(logs, marker) {
			t.Fatalf("expected %s marker, got: %s", marker, logs)
		}
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, `"level":"info"`},
		{http.StatusNotFound, `"level":"warn"`},
		{http.StatusInternalServerError, `"level":"error"`},
	}
	for _, tc := range cases {
		buf := withCapturedLogger(t)
		r := gin.New()
		r.Use(RedactingLogger(RedactOptions{}))
		r.GET("/x", func(c *gin.Context) { c.Status(tc.status) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if !strings.Contains(buf.String(), tc.level) {
			t.Fatalf("status %d: expected %s, got: %s", tc.status, tc.level, buf.String())
		}
	}
}

func TestRedactingLogger_UUIDRedactedBeforePhone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x?ref=123e4567-e89b-12d3-a456-426614174000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	logs := buf.String()
	// The UUID must come out as one id placeholder, not a phone match over
	// its digit segments.
	if !strings.Contains(logs, "[REDACTED:id]") || strings.Contains(logs, "[REDACTED:phone]") {
		t.Fatalf("uuid not redacted as id: %s", logs)
	}
}
