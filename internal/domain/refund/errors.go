package refund

import "github.com/storefront/backend/internal/domain/shared"

// Error taxonomy for the refund flow. Validation errors stay local to the
// entry form; the rest surface exactly once per submission attempt.
var (
	// ErrTooHigh is returned when an entered amount exceeds what is still refundable
	ErrTooHigh = shared.NewDomainError("REFUND_TOO_HIGH", "Refund amount exceeds the maximum refundable amount")

	// ErrTooLow is returned when an entered amount is zero
	ErrTooLow = shared.NewDomainError("REFUND_TOO_LOW", "Refund amount must be greater than zero")

	// ErrNetworkUnavailable is returned when submission is refused locally
	// because the store backend is unreachable
	ErrNetworkUnavailable = shared.NewDomainError("NETWORK_UNAVAILABLE", "No network connection, refund was not submitted")

	// ErrRefundRejected is returned when the store backend rejected the refund call
	ErrRefundRejected = shared.NewDomainError("REFUND_REJECTED", "The store could not process the refund")

	// ErrInteracNotifyFailed is returned when notifying the backend about an
	// already-completed client-side Interac refund fails. The money has
	// moved; this must not be reported as a failed refund.
	ErrInteracNotifyFailed = shared.NewDomainError("INTERAC_NOTIFY_FAILED", "The refund completed on the card reader but the store could not be notified")

	// ErrNoteAddFailed marks a best-effort order-note failure; it never
	// affects the refund result
	ErrNoteAddFailed = shared.NewDomainError("NOTE_ADD_FAILED", "Refund succeeded but the order note could not be added")

	// ErrRefundInProgress guards against a second submission while one is in flight
	ErrRefundInProgress = shared.NewDomainError("REFUND_IN_PROGRESS", "A refund submission is already in progress for this session")

	// ErrNothingToRefund is returned when a submission is attempted with an empty selection
	ErrNothingToRefund = shared.NewDomainError("NOTHING_TO_REFUND", "Nothing selected to refund")

	// ErrSessionNotFound is returned for unknown refund session ids
	ErrSessionNotFound = shared.NewDomainError("SESSION_NOT_FOUND", "Refund session not found")

	// ErrNotAwaitingConfirmation is returned when a client confirmation
	// arrives for a session that is not waiting for one
	ErrNotAwaitingConfirmation = shared.NewDomainError("NOT_AWAITING_CONFIRMATION", "Session is not awaiting a card reader confirmation")
)
