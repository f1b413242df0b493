package refund

import (
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Order is the read model of a store order as needed by the refund engine.
// Ids are the store's own numeric identifiers.
type Order struct {
	ID                 int64
	Number             string
	Currency           valueobject.Currency
	Total              decimal.Decimal
	TotalTax           decimal.Decimal
	RefundTotal        decimal.Decimal // cumulative amount refunded to date
	PaymentMethod      string          // gateway id, e.g. "woocommerce_payments", "cod"
	PaymentMethodTitle string
	ChargeID           string // payment processor charge id, empty when absent
	Items              []LineItem
	ShippingLines      []ShippingLine
	FeeLines           []FeeLine
}

// LineItem is one purchased product entry on an order
type LineItem struct {
	ItemID    int64
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Total     decimal.Decimal // line total after line-level discounts
	TotalTax  decimal.Decimal
}

// ShippingLine is one shipping charge on an order. Shipping refunds are
// binary: a line is either fully refunded or not refunded at all.
type ShippingLine struct {
	ItemID      int64
	MethodTitle string
	Total       decimal.Decimal
	TotalTax    decimal.Decimal
}

// FeeLine is one fee charge on an order, refunded as a whole like shipping
type FeeLine struct {
	ID       int64
	Name     string
	Total    decimal.Decimal
	TotalTax decimal.Decimal
}

// GetItem returns the line item with the given id, or nil
func (o *Order) GetItem(itemID int64) *LineItem {
	for idx := range o.Items {
		if o.Items[idx].ItemID == itemID {
			return &o.Items[idx]
		}
	}
	return nil
}

// GetShippingLine returns the shipping line with the given id, or nil
func (o *Order) GetShippingLine(itemID int64) *ShippingLine {
	for idx := range o.ShippingLines {
		if o.ShippingLines[idx].ItemID == itemID {
			return &o.ShippingLines[idx]
		}
	}
	return nil
}

// GetFeeLine returns the fee line with the given id, or nil
func (o *Order) GetFeeLine(id int64) *FeeLine {
	for idx := range o.FeeLines {
		if o.FeeLines[idx].ID == id {
			return &o.FeeLines[idx]
		}
	}
	return nil
}

// MaxRefundable returns the amount still open for refund: the order total
// minus everything refunded so far
func (o *Order) MaxRefundable() decimal.Decimal {
	return o.Total.Sub(o.RefundTotal)
}

// ShippingTotal sums the totals of all shipping lines
func (o *Order) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.ShippingLines {
		total = total.Add(line.Total)
	}
	return total
}

// ShippingTaxTotal sums the taxes of all shipping lines
func (o *Order) ShippingTaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.ShippingLines {
		total = total.Add(line.TotalTax)
	}
	return total
}

// FeesTotal sums the totals of all fee lines
func (o *Order) FeesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.FeeLines {
		total = total.Add(line.Total)
	}
	return total
}

// FeesTaxTotal sums the taxes of all fee lines
func (o *Order) FeesTaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.FeeLines {
		total = total.Add(line.TotalTax)
	}
	return total
}

// ContainsOnlyFees reports whether the order carries custom amounts only:
// no products, no shipping, at least one fee line. Such orders are still
// refundable through fee selection.
func (o *Order) ContainsOnlyFees() bool {
	return len(o.Items) == 0 && len(o.ShippingLines) == 0 && len(o.FeeLines) > 0
}

// cash payment methods never go through a gateway refund
var cashPaymentMethods = map[string]bool{
	"cod":    true,
	"cheque": true,
}

// IsCashPayment reports whether the order was paid offline
func (o *Order) IsCashPayment() bool {
	return cashPaymentMethods[o.PaymentMethod]
}
