package handlers

// Stable, machine-readable error codes returned in ErrorResponse.Code.
// Clients branch on these rather than on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeListFailed    = "list_failed"
	ErrCodeReportFailed  = "report_failed"
	ErrCodeCollectFailed = "collect_failed"
)
