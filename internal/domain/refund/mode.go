package refund

import "github.com/shopspring/decimal"

// EntryMode discriminates which refund-entry mode is authoritative for a
// session. Exactly one mode owns the refund total at any time; the two
// modes are never reconciled by convention, only through this tag.
type EntryMode string

const (
	// ModeItems derives the total from the per-line selection
	ModeItems EntryMode = "ITEMS"
	// ModeAmount takes the total from a free-form entered amount
	ModeAmount EntryMode = "AMOUNT"
)

// IsValid checks if the mode is a known EntryMode
func (m EntryMode) IsValid() bool {
	return m == ModeItems || m == ModeAmount
}

// InputValidation is the outcome of validating a free-form refund amount.
// Only ModeAmount needs validation; items-mode selections are pre-clamped
// to the remaining refundable quantities and therefore always valid.
type InputValidation int

const (
	ValidationValid InputValidation = iota
	ValidationTooHigh
	ValidationTooLow
)

// String returns the validation state name
func (v InputValidation) String() string {
	switch v {
	case ValidationTooHigh:
		return "TOO_HIGH"
	case ValidationTooLow:
		return "TOO_LOW"
	default:
		return "VALID"
	}
}

// Err maps a non-valid state to its domain error, nil when valid
func (v InputValidation) Err() error {
	switch v {
	case ValidationTooHigh:
		return ErrTooHigh
	case ValidationTooLow:
		return ErrTooLow
	default:
		return nil
	}
}

// ValidateAmount checks a free-form refund amount against the maximum
// still refundable. Zero is TooLow, anything above the maximum is TooHigh.
func ValidateAmount(amount, maxRefundable decimal.Decimal) InputValidation {
	switch {
	case amount.GreaterThan(maxRefundable):
		return ValidationTooHigh
	case amount.IsZero() || amount.IsNegative():
		return ValidationTooLow
	default:
		return ValidationValid
	}
}
