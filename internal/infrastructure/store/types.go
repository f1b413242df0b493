package store

import "github.com/shopspring/decimal"

// Wire DTOs for the WooCommerce REST API (wc/v3). Monetary fields arrive
// as strings; parseDecimal tolerates empty values.

type wcOrder struct {
	ID                 int64            `json:"id"`
	Number             string           `json:"number"`
	Currency           string           `json:"currency"`
	Total              string           `json:"total"`
	TotalTax           string           `json:"total_tax"`
	PaymentMethod      string           `json:"payment_method"`
	PaymentMethodTitle string           `json:"payment_method_title"`
	LineItems          []wcLineItem     `json:"line_items"`
	ShippingLines      []wcShippingLine `json:"shipping_lines"`
	FeeLines           []wcFeeLine      `json:"fee_lines"`
	Refunds            []wcOrderRefund  `json:"refunds"`
	MetaData           []wcMetaData     `json:"meta_data"`
}

// wcOrderRefund is the order's embedded summary of a refund already
// issued against it; totals are negative on the wire
type wcOrderRefund struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
	Total  string `json:"total"`
}

type wcLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
	TotalTax  string `json:"total_tax"`
}

type wcShippingLine struct {
	ID          int64        `json:"id"`
	MethodTitle string       `json:"method_title"`
	Total       string       `json:"total"`
	TotalTax    string       `json:"total_tax"`
	MetaData    []wcMetaData `json:"meta_data"`
}

type wcFeeLine struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Total    string       `json:"total"`
	TotalTax string       `json:"total_tax"`
	MetaData []wcMetaData `json:"meta_data"`
}

type wcMetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// chargeIDMetaKey is where WooCommerce Payments stores the charge id on an order
const chargeIDMetaKey = "_charge_id"

type wcRefund struct {
	ID              int64              `json:"id"`
	Amount          string             `json:"amount"`
	Reason          string             `json:"reason"`
	DateCreated     string             `json:"date_created_gmt"`
	RefundedPayment bool               `json:"refunded_payment"`
	LineItems       []wcRefundLineItem `json:"line_items"`
	ShippingLines   []wcShippingLine   `json:"shipping_lines"`
	FeeLines        []wcFeeLine        `json:"fee_lines"`
}

type wcRefundLineItem struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Total     string       `json:"total"`
	TotalTax  string       `json:"total_tax"`
	MetaData  []wcMetaData `json:"meta_data"`
}

// refundedItemIDMetaKey links a refund line back to the original order line
const refundedItemIDMetaKey = "_refunded_item_id"

type wcCreateRefundRequest struct {
	Amount    string              `json:"amount"`
	Reason    string              `json:"reason,omitempty"`
	APIRefund bool                `json:"api_refund"`
	LineItems []wcRefundLineInput `json:"line_items,omitempty"`
}

type wcRefundLineInput struct {
	ID          int64  `json:"id"`
	Quantity    int    `json:"quantity,omitempty"`
	RefundTotal string `json:"refund_total"`
	RefundTax   string `json:"refund_tax,omitempty"`
}

type wcPaymentGateway struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Enabled        bool     `json:"enabled"`
	MethodSupports []string `json:"method_supports"`
}

type wcCharge struct {
	ID                   string                 `json:"id"`
	PaymentMethodDetails wcPaymentMethodDetails `json:"payment_method_details"`
}

type wcPaymentMethodDetails struct {
	Type           string         `json:"type"`
	CardPresent    *wcCardDetails `json:"card_present"`
	InteracPresent *wcCardDetails `json:"interac_present"`
}

type wcCardDetails struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

type wcSettingOption struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type wcCreateNoteRequest struct {
	Note string `json:"note"`
}

type wcErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseDecimal parses a WooCommerce money string, treating empty as zero
func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
