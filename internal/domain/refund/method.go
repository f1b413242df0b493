package refund

// GatewayInfo describes the payment gateway an order was paid through
type GatewayInfo struct {
	ID              string
	Title           string
	IsEnabled       bool
	SupportsRefunds bool
}

// ChargeDetails is the payment processor's record of the charge behind an
// order, fetched only when the order carries a charge id. Used for method
// classification and display enrichment.
type ChargeDetails struct {
	PaymentMethodType string
	CardBrand         string
	CardLast4         string
}

// payment method types reported by the processor
const (
	paymentMethodCardPresent    = "card_present"
	paymentMethodInteracPresent = "interac_present"
)

// MethodKind classifies how a refund for the order must be executed
type MethodKind string

const (
	// MethodStandardGateway refunds through the gateway synchronously
	MethodStandardGateway MethodKind = "STANDARD_GATEWAY"
	// MethodManualOffline records the refund only; money moves outside the system
	MethodManualOffline MethodKind = "MANUAL_OFFLINE"
	// MethodCardPresentInterac moves money on the card reader first; the
	// backend call is a completion notification, not the refund itself
	MethodCardPresentInterac MethodKind = "CARD_PRESENT_INTERAC"
)

// ClassifyMethod picks the refund method for an order.
//
// A disabled gateway, or one that cannot refund, always classifies as
// manual regardless of charge data. Interac requires a definitive
// interac_present charge lookup; a failed or inconclusive lookup falls
// back to standard card-present handling so that missing information
// never routes a refund into the higher-friction Interac branch.
func ClassifyMethod(gateway GatewayInfo, charge *ChargeDetails) MethodKind {
	if !gateway.IsEnabled || !gateway.SupportsRefunds {
		return MethodManualOffline
	}
	if charge != nil && charge.PaymentMethodType == paymentMethodInteracPresent {
		return MethodCardPresentInterac
	}
	return MethodStandardGateway
}
