package refund

import "github.com/shopspring/decimal"

// LineTotals pairs the pre-tax subtotal and tax portion of a refund bucket
type LineTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
}

// Total returns subtotal plus tax
func (t LineTotals) Total() decimal.Decimal {
	return t.Subtotal.Add(t.Tax)
}

// ZeroLineTotals returns a LineTotals with both parts zero
func ZeroLineTotals() LineTotals {
	return LineTotals{Subtotal: decimal.Zero, Tax: decimal.Zero}
}

// ProratedItemTotals allocates a line's total and tax in proportion to the
// refunded fraction of its quantity. Proration from the line total (rather
// than unit price times quantity) preserves any line-level discount
// proportionally. Full precision is kept; selecting the whole quantity
// reproduces the original line total and tax exactly.
func ProratedItemTotals(item LineItem, selectedQuantity int) LineTotals {
	if selectedQuantity <= 0 || item.Quantity <= 0 {
		return ZeroLineTotals()
	}
	if selectedQuantity >= item.Quantity {
		return LineTotals{Subtotal: item.Total, Tax: item.TotalTax}
	}

	ratio := decimal.NewFromInt(int64(selectedQuantity)).Div(decimal.NewFromInt(int64(item.Quantity)))
	return LineTotals{
		Subtotal: item.Total.Mul(ratio),
		Tax:      item.TotalTax.Mul(ratio),
	}
}

// ItemsRefundTotals sums the prorated totals of every selected item.
// Quantities for unknown item ids are ignored.
func ItemsRefundTotals(order *Order, quantities map[int64]int) LineTotals {
	totals := ZeroLineTotals()
	for _, item := range order.Items {
		quantity, selected := quantities[item.ItemID]
		if !selected || quantity <= 0 {
			continue
		}
		line := ProratedItemTotals(item, quantity)
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal)
		totals.Tax = totals.Tax.Add(line.Tax)
	}
	return totals
}

// ShippingRefundTotals sums the full total and tax of exactly the selected
// shipping lines. No proration: shipping selection is binary.
func ShippingRefundTotals(order *Order, selectedIDs []int64) LineTotals {
	totals := ZeroLineTotals()
	for _, id := range selectedIDs {
		line := order.GetShippingLine(id)
		if line == nil {
			continue
		}
		totals.Subtotal = totals.Subtotal.Add(line.Total)
		totals.Tax = totals.Tax.Add(line.TotalTax)
	}
	return totals
}

// FeeRefundTotals sums the full total and tax of exactly the selected fee lines
func FeeRefundTotals(order *Order, selectedIDs []int64) LineTotals {
	totals := ZeroLineTotals()
	for _, id := range selectedIDs {
		line := order.GetFeeLine(id)
		if line == nil {
			continue
		}
		totals.Subtotal = totals.Subtotal.Add(line.Total)
		totals.Tax = totals.Tax.Add(line.TotalTax)
	}
	return totals
}

// GrandTotal combines the three refund buckets, clamped at zero. The clamp
// guards against a negative composite constructed through programming
// error; no user-reachable path produces one.
func GrandTotal(products, shipping, fees decimal.Decimal) decimal.Decimal {
	total := products.Add(shipping).Add(fees)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
