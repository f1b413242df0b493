package refund

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/shared"
)

// event types emitted by the refund session aggregate
const (
	EventSessionOpened   = "refund.session_opened"
	EventRefundSubmitted = "refund.submitted"
	EventRefundSucceeded = "refund.succeeded"
	EventRefundFailed    = "refund.failed"
)

// SessionOpenedEvent is emitted when a refund session is opened for an order
type SessionOpenedEvent struct {
	shared.BaseDomainEvent
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Method        MethodKind      `json:"method"`
	MaxRefundable decimal.Decimal `json:"max_refundable"`
}

// NewSessionOpenedEvent creates a SessionOpenedEvent
func NewSessionOpenedEvent(session *Session) *SessionOpenedEvent {
	return &SessionOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventSessionOpened, "RefundSession", session.GetID()),
		OrderID:         session.Order.ID,
		OrderNumber:     session.Order.Number,
		Method:          session.Method,
		MaxRefundable:   session.Order.MaxRefundable(),
	}
}

// RefundSubmittedEvent is emitted when a submission attempt starts
type RefundSubmittedEvent struct {
	shared.BaseDomainEvent
	OrderID int64           `json:"order_id"`
	Mode    EntryMode       `json:"mode"`
	Method  MethodKind      `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
}

// NewRefundSubmittedEvent creates a RefundSubmittedEvent
func NewRefundSubmittedEvent(session *Session) *RefundSubmittedEvent {
	return &RefundSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRefundSubmitted, "RefundSession", session.GetID()),
		OrderID:         session.Order.ID,
		Mode:            session.Mode(),
		Method:          session.Method,
		Amount:          session.RefundTotal(),
		Reason:          session.Reason(),
	}
}

// RefundSucceededEvent is emitted when the store accepted the refund
type RefundSucceededEvent struct {
	shared.BaseDomainEvent
	OrderID  int64           `json:"order_id"`
	RefundID int64           `json:"refund_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// NewRefundSucceededEvent creates a RefundSucceededEvent
func NewRefundSucceededEvent(session *Session, record *Record) *RefundSucceededEvent {
	event := &RefundSucceededEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRefundSucceeded, "RefundSession", session.GetID()),
		OrderID:         session.Order.ID,
		Amount:          session.RefundTotal(),
	}
	if record != nil {
		event.RefundID = record.ID
		event.Amount = record.Amount
	}
	return event
}

// RefundFailedEvent is emitted when a submission attempt failed. The
// session stays usable; the event carries the failure code for telemetry.
type RefundFailedEvent struct {
	shared.BaseDomainEvent
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Code    string          `json:"code"`
}

// NewRefundFailedEvent creates a RefundFailedEvent
func NewRefundFailedEvent(session *Session, cause error) *RefundFailedEvent {
	code := "UNKNOWN"
	var domainErr *shared.DomainError
	if errors.As(cause, &domainErr) {
		code = domainErr.Code
	}
	return &RefundFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRefundFailed, "RefundSession", session.GetID()),
		OrderID:         session.Order.ID,
		Amount:          session.RefundTotal(),
		Code:            code,
	}
}
