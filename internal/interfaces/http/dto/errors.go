package dto

import "net/http"

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Domain error
// codes from the refund flow map here directly; anything unmapped is a 500.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// Selection and amount validation -> 422 Unprocessable Entity
	"REFUND_TOO_HIGH":          http.StatusUnprocessableEntity,
	"REFUND_TOO_LOW":           http.StatusUnprocessableEntity,
	"NOTHING_TO_REFUND":        http.StatusUnprocessableEntity,
	"LINE_NOT_REFUNDABLE":      http.StatusUnprocessableEntity,
	"SHIPPING_REFUND_DISABLED": http.StatusUnprocessableEntity,
	"INVALID_INPUT":            http.StatusBadRequest,

	// Submission lifecycle conflicts -> 409 Conflict
	"REFUND_IN_PROGRESS":        http.StatusConflict,
	"NOT_AWAITING_CONFIRMATION": http.StatusConflict,
	"INVALID_STATE":             http.StatusConflict,

	// Store-side failures
	"NETWORK_UNAVAILABLE":     http.StatusServiceUnavailable,
	"REFUND_REJECTED":         http.StatusBadGateway,
	"INTERAC_NOTIFY_FAILED":   http.StatusBadGateway,
	"CLIENT_REFUND_CANCELLED": http.StatusConflict,

	"SESSION_NOT_FOUND": http.StatusNotFound,
	"NOT_FOUND":         http.StatusNotFound,
	"UNAUTHORIZED":      http.StatusUnauthorized,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
