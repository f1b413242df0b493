package refund

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/refund"
)

// OpenSessionRequest opens a refund session against one order
type OpenSessionRequest struct {
	OrderID int64 `json:"order_id" binding:"required,gt=0"`
}

// ItemQuantityInput sets the selected refund quantity for one line item
type ItemQuantityInput struct {
	ItemID   int64 `json:"item_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"gte=0"`
}

// LineToggleInput toggles one shipping or fee line in or out of the selection
type LineToggleInput struct {
	LineID   int64 `json:"line_id" binding:"required"`
	Selected bool  `json:"selected"`
}

// UpdateSelectionRequest applies a batch of selection changes to a session.
// Only the fields present are applied, in the order they are declared here.
type UpdateSelectionRequest struct {
	SelectAllItems *bool               `json:"select_all_items,omitempty"`
	ClearItems     *bool               `json:"clear_items,omitempty"`
	Items          []ItemQuantityInput `json:"items,omitempty"`
	ShippingLines  []LineToggleInput   `json:"shipping_lines,omitempty"`
	FeeLines       []LineToggleInput   `json:"fee_lines,omitempty"`
	AllShipping    *bool               `json:"all_shipping,omitempty"`
	AllFees        *bool               `json:"all_fees,omitempty"`
	Mode           *refund.EntryMode   `json:"mode,omitempty"`
	Amount         *decimal.Decimal    `json:"amount,omitempty"`
}

// SubmitRequest starts a refund submission
type SubmitRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

// ItemLineResponse is one order line item with its selection state
type ItemLineResponse struct {
	ItemID           int64  `json:"item_id"`
	ProductID        int64  `json:"product_id"`
	Name             string `json:"name"`
	OrderedQuantity  int    `json:"ordered_quantity"`
	MaxQuantity      int    `json:"max_quantity"`
	SelectedQuantity int    `json:"selected_quantity"`
	Total            string `json:"total"`
	TotalTax         string `json:"total_tax"`
}

// ToggleLineResponse is one shipping or fee line with its selection state
type ToggleLineResponse struct {
	LineID     int64  `json:"line_id"`
	Title      string `json:"title"`
	Total      string `json:"total"`
	TotalTax   string `json:"total_tax"`
	Refundable bool   `json:"refundable"`
	Selected   bool   `json:"selected"`
}

// TotalsResponse breaks the items-mode refund into its buckets
type TotalsResponse struct {
	ProductsRefund string `json:"products_refund"`
	ShippingRefund string `json:"shipping_refund"`
	FeesRefund     string `json:"fees_refund"`
	GrandTotal     string `json:"grand_total"`
}

// SessionResponse is the full view of a refund session
type SessionResponse struct {
	SessionID          uuid.UUID            `json:"session_id"`
	OrderID            int64                `json:"order_id"`
	OrderNumber        string               `json:"order_number"`
	Currency           string               `json:"currency"`
	State              string               `json:"state"`
	Mode               refund.EntryMode     `json:"mode"`
	Method             refund.MethodKind    `json:"method"`
	MethodDescription  string               `json:"method_description"`
	MaxRefundable      string               `json:"max_refundable"`
	PreviouslyRefunded string               `json:"previously_refunded"`
	Items              []ItemLineResponse   `json:"items"`
	ShippingLines      []ToggleLineResponse `json:"shipping_lines"`
	FeeLines           []ToggleLineResponse `json:"fee_lines"`
	Totals             TotalsResponse       `json:"totals"`
	EnteredAmount      string               `json:"entered_amount"`
	RefundTotal        string               `json:"refund_total"`
	Validation         string               `json:"validation"`
	CanSubmit          bool                 `json:"can_submit"`
	RefundNotice       string               `json:"refund_notice,omitempty"`
	// MultipleShippingLines flags orders where more than one shipping
	// line is still refundable, so clients can warn before offering them
	MultipleShippingLines bool `json:"multiple_shipping_lines"`
}

// SubmitResponse reports the outcome of a submission attempt
type SubmitResponse struct {
	SessionID                  uuid.UUID `json:"session_id"`
	OrderID                    int64     `json:"order_id"`
	Amount                     string    `json:"amount"`
	AwaitingClientConfirmation bool      `json:"awaiting_client_confirmation"`
	RefundID                   int64     `json:"refund_id,omitempty"`
}

// manualRefundNotice is shown when the refund is recorded only and the
// money has to be returned outside the store
const manualRefundNotice = "The refunded amount will not be returned automatically and must be paid back to the customer manually."

// ToSessionResponse renders a session for transport. Amounts are formatted
// with the store's configured currency decimals; this is the only place
// rounding happens.
func ToSessionResponse(session *refund.Session, shippingRefundEnabled bool) SessionResponse {
	decimals := session.CurrencyDecimals

	items := make([]ItemLineResponse, 0, len(session.Order.Items))
	for _, item := range session.Order.Items {
		items = append(items, ItemLineResponse{
			ItemID:           item.ItemID,
			ProductID:        item.ProductID,
			Name:             item.Name,
			OrderedQuantity:  item.Quantity,
			MaxQuantity:      session.Remaining.MaxQuantity(item.ItemID),
			SelectedQuantity: session.SelectedQuantity(item.ItemID),
			Total:            item.Total.StringFixed(decimals),
			TotalTax:         item.TotalTax.StringFixed(decimals),
		})
	}

	selectedShipping := make(map[int64]bool)
	for _, id := range session.SelectedShippingLineIDs() {
		selectedShipping[id] = true
	}
	shippingLines := make([]ToggleLineResponse, 0, len(session.Order.ShippingLines))
	if shippingRefundEnabled {
		for _, line := range session.Order.ShippingLines {
			shippingLines = append(shippingLines, ToggleLineResponse{
				LineID:     line.ItemID,
				Title:      line.MethodTitle,
				Total:      line.Total.StringFixed(decimals),
				TotalTax:   line.TotalTax.StringFixed(decimals),
				Refundable: session.Remaining.IsShippingRefundable(line.ItemID),
				Selected:   selectedShipping[line.ItemID],
			})
		}
	}

	selectedFees := make(map[int64]bool)
	for _, id := range session.SelectedFeeLineIDs() {
		selectedFees[id] = true
	}
	feeLines := make([]ToggleLineResponse, 0, len(session.Order.FeeLines))
	for _, line := range session.Order.FeeLines {
		feeLines = append(feeLines, ToggleLineResponse{
			LineID:     line.ID,
			Title:      line.Name,
			Total:      line.Total.StringFixed(decimals),
			TotalTax:   line.TotalTax.StringFixed(decimals),
			Refundable: session.Remaining.IsFeeRefundable(line.ID),
			Selected:   selectedFees[line.ID],
		})
	}

	response := SessionResponse{
		SessionID:          session.GetID(),
		OrderID:            session.Order.ID,
		OrderNumber:        session.Order.Number,
		Currency:           string(session.Order.Currency),
		State:              session.State().String(),
		Mode:               session.Mode(),
		Method:             session.Method,
		MethodDescription:  session.MethodDescription(),
		MaxRefundable:      session.MaxRefundableMoney().Format(decimals),
		PreviouslyRefunded: session.PreviouslyRefundedMoney().Format(decimals),
		Items:              items,
		ShippingLines:      shippingLines,
		FeeLines:           feeLines,
		Totals: TotalsResponse{
			ProductsRefund: session.ProductsRefund().StringFixed(decimals),
			ShippingRefund: session.ShippingRefundTotals().Total().StringFixed(decimals),
			FeesRefund:     session.FeeRefundTotals().Total().StringFixed(decimals),
			GrandTotal:     session.GrandTotalRefund().StringFixed(decimals),
		},
		EnteredAmount: session.EnteredAmount().StringFixed(decimals),
		RefundTotal:   session.RefundTotalMoney().Format(decimals),
		Validation:    session.Validate().String(),
		CanSubmit:     session.CanSubmit(),
	}
	if session.Method == refund.MethodManualOffline {
		response.RefundNotice = manualRefundNotice
	}
	if shippingRefundEnabled {
		response.MultipleShippingLines = len(session.Remaining.RefundableShippingLineIDs()) > 1
	}
	return response
}
