// Package handlers implements the public HTTP API: contact registration,
// saved-search management, batch ingest, the notification feed, and catalog
// reads. Responses share one shape everywhere: success bodies are plain JSON
// objects and every failure is an ErrorResponse envelope with a stable code,
// for example
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "search not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quieromudarme/go-housing-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. Code is a
// stable machine-readable string (errors.go constants); RequestID echoes the
// X-Request-ID header so clients can quote it when reporting problems.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"search not found"`
}

// fail aborts the request with the standard error envelope. Server errors
// (>= 500) are additionally logged through the request-scoped logger; client
// errors are the caller's problem and only travel in the response.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	envelope := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
	c.AbortWithStatusJSON(status, envelope)
}

// Fail exposes fail to other packages; the router's NoRoute and NoMethod
// fallbacks use it to keep their envelopes identical to handler errors.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
