package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one previously completed refund against an order. Records are
// immutable historical facts; a new one is created by a successful
// submission and never mutated afterward.
type Record struct {
	ID                     int64
	OrderID                int64
	Amount                 decimal.Decimal
	Reason                 string
	AutomaticGatewayRefund bool
	Items                  []RecordItem
	ShippingLineIDs        []int64
	FeeLineIDs             []int64
	CreatedAt              time.Time
}

// RecordItem is one refunded line-item entry inside a refund record.
// The store reports refunded quantities and amounts as negative values;
// consumers should use the absolute helpers.
type RecordItem struct {
	ItemID   int64
	Quantity int
	Total    decimal.Decimal
	TotalTax decimal.Decimal
}

// RefundedQuantity returns the refunded quantity as a non-negative count
func (i RecordItem) RefundedQuantity() int {
	if i.Quantity < 0 {
		return -i.Quantity
	}
	return i.Quantity
}

// RefundedAmount returns the refunded line amount as a non-negative value
func (i RecordItem) RefundedAmount() decimal.Decimal {
	return i.Total.Abs()
}
