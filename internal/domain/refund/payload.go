package refund

import "github.com/shopspring/decimal"

// RefundLineKind tags what kind of order line a refund line refers to
type RefundLineKind string

const (
	RefundLineItem     RefundLineKind = "item"
	RefundLineShipping RefundLineKind = "shipping"
	RefundLineFee      RefundLineKind = "fee"
)

// RefundLine is one line of an items-mode refund submission. Amounts are
// positive here; negation to the store's wire convention happens in the
// store adapter.
type RefundLine struct {
	Kind     RefundLineKind
	LineID   int64
	Quantity int
	Total    decimal.Decimal
	TotalTax decimal.Decimal
}

// ItemsRequest is the full payload of an items-mode refund submission
type ItemsRequest struct {
	OrderID                int64
	Amount                 decimal.Decimal
	Reason                 string
	AutomaticGatewayRefund bool
	Lines                  []RefundLine
}

// AmountRequest is the payload of an amount-mode refund submission
type AmountRequest struct {
	OrderID                int64
	Amount                 decimal.Decimal
	Reason                 string
	AutomaticGatewayRefund bool
}
