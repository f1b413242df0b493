package refund

// Remaining holds, per order line, how much is still refundable after
// accounting for every prior refund. It is computed once per order load
// and is read-only for the rest of the refund session.
type Remaining struct {
	maxQuantities map[int64]int
	shippingIDs   []int64
	feeIDs        []int64
}

// ResolveRemaining diffs the refund history against the order.
//
// Item quantities start at the ordered quantity and every historical
// refund entry subtracts its quantity; entries referencing unknown item
// ids are skipped. Shipping and fee lines have no partial semantics: a
// line referenced by any prior refund is no longer refundable.
//
// Pure function; malformed history degrades to "less refundable", never
// to an error, because under-permitting is the safe direction.
func ResolveRemaining(order *Order, history []Record) Remaining {
	maxQuantities := make(map[int64]int, len(order.Items))
	for _, item := range order.Items {
		maxQuantities[item.ItemID] = item.Quantity
	}

	refundedShipping := make(map[int64]bool)
	refundedFees := make(map[int64]bool)

	for _, record := range history {
		for _, entry := range record.Items {
			remaining, known := maxQuantities[entry.ItemID]
			if !known {
				continue
			}
			remaining -= entry.RefundedQuantity()
			if remaining < 0 {
				remaining = 0
			}
			maxQuantities[entry.ItemID] = remaining
		}
		for _, id := range record.ShippingLineIDs {
			refundedShipping[id] = true
		}
		for _, id := range record.FeeLineIDs {
			refundedFees[id] = true
		}
	}

	shippingIDs := make([]int64, 0, len(order.ShippingLines))
	for _, line := range order.ShippingLines {
		if !refundedShipping[line.ItemID] {
			shippingIDs = append(shippingIDs, line.ItemID)
		}
	}

	feeIDs := make([]int64, 0, len(order.FeeLines))
	for _, line := range order.FeeLines {
		if !refundedFees[line.ID] {
			feeIDs = append(feeIDs, line.ID)
		}
	}

	return Remaining{
		maxQuantities: maxQuantities,
		shippingIDs:   shippingIDs,
		feeIDs:        feeIDs,
	}
}

// MaxQuantity returns how many units of the item can still be refunded.
// Unknown ids resolve to 0.
func (r Remaining) MaxQuantity(itemID int64) int {
	return r.maxQuantities[itemID]
}

// TotalRemainingQuantity sums the remaining quantities of all items
func (r Remaining) TotalRemainingQuantity() int {
	total := 0
	for _, q := range r.maxQuantities {
		total += q
	}
	return total
}

// RefundableShippingLineIDs returns the ids of shipping lines not yet
// refunded, in order appearance on the order
func (r Remaining) RefundableShippingLineIDs() []int64 {
	return r.shippingIDs
}

// RefundableFeeLineIDs returns the ids of fee lines not yet refunded
func (r Remaining) RefundableFeeLineIDs() []int64 {
	return r.feeIDs
}

// IsShippingRefundable reports whether the shipping line can still be refunded
func (r Remaining) IsShippingRefundable(itemID int64) bool {
	for _, id := range r.shippingIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// IsFeeRefundable reports whether the fee line can still be refunded
func (r Remaining) IsFeeRefundable(id int64) bool {
	for _, feeID := range r.feeIDs {
		if feeID == id {
			return true
		}
	}
	return false
}
