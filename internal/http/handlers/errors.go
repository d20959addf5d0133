package handlers

// Stable machine-readable error codes carried in the ErrorResponse envelope.
// Clients branch on the code; the message is for humans. Generic codes track
// their HTTP status, the rest name the business rule that rejected the
// request (a free-tier search cap, an append-only record, a failed batch).
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeForbidden   = "forbidden"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	ErrCodeSearchLimit      = "search_limit"
	ErrCodeIngestFailed     = "ingest_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeImmutable        = "immutable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
