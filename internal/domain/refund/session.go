package refund

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// SessionState represents where a refund session is in its submission lifecycle
type SessionState string

const (
	// StateIdle accepts selection mutations; no submission in flight
	StateIdle SessionState = "IDLE"
	// StateSubmitting has a submission in flight; input is not accepted
	StateSubmitting SessionState = "SUBMITTING"
	// StateAwaitingClientConfirmation waits for the card reader to report
	// that the client-side Interac refund completed
	StateAwaitingClientConfirmation SessionState = "AWAITING_CLIENT_CONFIRMATION"
)

// CanTransitionTo checks if the state can transition to the target state
func (s SessionState) CanTransitionTo(target SessionState) bool {
	switch s {
	case StateIdle:
		return target == StateSubmitting
	case StateSubmitting:
		return target == StateAwaitingClientConfirmation || target == StateIdle
	case StateAwaitingClientConfirmation:
		return target == StateSubmitting || target == StateIdle
	}
	return false
}

// String returns the string representation of SessionState
func (s SessionState) String() string {
	return string(s)
}

// manualRefundMethod labels refunds whose money movement happens outside
// any gateway
const manualRefundMethod = "manual"

// MaxReasonLength caps the refund reason accepted on submission
const MaxReasonLength = 256

// Session is the aggregate root of one interactive refund flow against a
// single order. It owns the user's selection, the entry mode, and the
// submission state machine. One mutator context at a time; the remaining
// refundable facts are computed once at open and never change afterwards.
type Session struct {
	shared.BaseAggregateRoot
	Order            *Order
	History          []Record
	Remaining        Remaining
	Gateway          GatewayInfo
	Charge           *ChargeDetails
	Method           MethodKind
	CurrencyDecimals int32

	state            SessionState
	mode             EntryMode
	quantities       map[int64]int
	selectedShipping []int64
	selectedFees     []int64
	enteredAmount    decimal.Decimal
	reason           string
	clientCompleted  bool
}

// NewSession opens a refund session for an order. The refund history must
// be the complete list of refunds already issued against the order; the
// remaining-refundable facts are derived from it here, once.
func NewSession(order *Order, history []Record, gateway GatewayInfo, charge *ChargeDetails, currencyDecimals int32) (*Session, error) {
	if order == nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order cannot be nil")
	}
	if currencyDecimals <= 0 {
		currencyDecimals = valueobject.DefaultDecimals
	}

	s := &Session{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Order:             order,
		History:           history,
		Remaining:         ResolveRemaining(order, history),
		Gateway:           gateway,
		Charge:            charge,
		Method:            ClassifyMethod(gateway, charge),
		CurrencyDecimals:  currencyDecimals,
		state:             StateIdle,
		mode:              ModeItems,
		quantities:        make(map[int64]int),
		selectedShipping:  make([]int64, 0),
		selectedFees:      make([]int64, 0),
		enteredAmount:     decimal.Zero,
	}

	// Custom-amounts-only orders have nothing else to select; pre-select
	// every refundable fee line so the flow stays usable.
	if order.ContainsOnlyFees() {
		s.selectedFees = append(s.selectedFees, s.Remaining.RefundableFeeLineIDs()...)
	}

	s.AddDomainEvent(NewSessionOpenedEvent(s))

	return s, nil
}

// State returns the current submission state
func (s *Session) State() SessionState {
	return s.state
}

// Mode returns the refund-entry mode currently authoritative for the total
func (s *Session) Mode() EntryMode {
	return s.mode
}

// Reason returns the refund reason set at submission time
func (s *Session) Reason() string {
	return s.reason
}

// acceptsInput reports whether selection mutations are currently allowed.
// Input is rejected from the moment a submission starts until the session
// settles back to idle.
func (s *Session) acceptsInput() bool {
	return s.state == StateIdle
}

// SetItemQuantity selects a refund quantity for a line item, clamped to
// the remaining refundable quantity. Returns the applied quantity.
func (s *Session) SetItemQuantity(itemID int64, quantity int) (int, error) {
	if !s.acceptsInput() {
		return 0, ErrRefundInProgress
	}
	if s.Order.GetItem(itemID) == nil {
		return 0, shared.NewDomainError("ITEM_NOT_FOUND", "Order line item not found")
	}

	maxQuantity := s.Remaining.MaxQuantity(itemID)
	if quantity > maxQuantity {
		quantity = maxQuantity
	}
	if quantity < 0 {
		quantity = 0
	}

	if quantity == 0 {
		delete(s.quantities, itemID)
	} else {
		s.quantities[itemID] = quantity
	}
	return quantity, nil
}

// SelectAllItems sets every item's selection to its remaining maximum
func (s *Session) SelectAllItems() error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	for _, item := range s.Order.Items {
		if maxQuantity := s.Remaining.MaxQuantity(item.ItemID); maxQuantity > 0 {
			s.quantities[item.ItemID] = maxQuantity
		}
	}
	return nil
}

// ClearItems removes every item selection
func (s *Session) ClearItems() error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	s.quantities = make(map[int64]int)
	return nil
}

// SetShippingLineSelected toggles one shipping line in or out of the
// selection. Lines already covered by a prior refund are not selectable.
func (s *Session) SetShippingLineSelected(itemID int64, selected bool) error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	if selected && !s.Remaining.IsShippingRefundable(itemID) {
		return shared.NewDomainError("LINE_NOT_REFUNDABLE", "Shipping line has already been refunded")
	}
	s.selectedShipping = toggleID(s.selectedShipping, itemID, selected)
	return nil
}

// SetFeeLineSelected toggles one fee line in or out of the selection
func (s *Session) SetFeeLineSelected(id int64, selected bool) error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	if selected && !s.Remaining.IsFeeRefundable(id) {
		return shared.NewDomainError("LINE_NOT_REFUNDABLE", "Fee line has already been refunded")
	}
	s.selectedFees = toggleID(s.selectedFees, id, selected)
	return nil
}

// SetAllShippingSelected selects or clears every refundable shipping line
func (s *Session) SetAllShippingSelected(selected bool) error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	if selected {
		s.selectedShipping = append([]int64(nil), s.Remaining.RefundableShippingLineIDs()...)
	} else {
		s.selectedShipping = s.selectedShipping[:0]
	}
	return nil
}

// SetAllFeesSelected selects or clears every refundable fee line
func (s *Session) SetAllFeesSelected(selected bool) error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	if selected {
		s.selectedFees = append([]int64(nil), s.Remaining.RefundableFeeLineIDs()...)
	} else {
		s.selectedFees = s.selectedFees[:0]
	}
	return nil
}

// UseItemsMode makes the per-line selection authoritative for the total
func (s *Session) UseItemsMode() error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	s.mode = ModeItems
	return nil
}

// UseAmountMode makes the free-form entered amount authoritative
func (s *Session) UseAmountMode() error {
	if !s.acceptsInput() {
		return ErrRefundInProgress
	}
	s.mode = ModeAmount
	return nil
}

// SetEnteredAmount records a free-form refund amount and reports its
// validation state. The amount is stored even when invalid so the form
// can re-validate as the user types.
func (s *Session) SetEnteredAmount(amount decimal.Decimal) (InputValidation, error) {
	if !s.acceptsInput() {
		return ValidationValid, ErrRefundInProgress
	}
	s.enteredAmount = amount
	return s.Validate(), nil
}

// SelectedQuantity returns the currently selected quantity for an item
func (s *Session) SelectedQuantity(itemID int64) int {
	return s.quantities[itemID]
}

// SelectedQuantities returns a copy of the per-item selection
func (s *Session) SelectedQuantities() map[int64]int {
	quantities := make(map[int64]int, len(s.quantities))
	for id, q := range s.quantities {
		quantities[id] = q
	}
	return quantities
}

// SelectedShippingLineIDs returns the selected shipping line ids
func (s *Session) SelectedShippingLineIDs() []int64 {
	return append([]int64(nil), s.selectedShipping...)
}

// SelectedFeeLineIDs returns the selected fee line ids
func (s *Session) SelectedFeeLineIDs() []int64 {
	return append([]int64(nil), s.selectedFees...)
}

// EnteredAmount returns the free-form amount entered in amount mode
func (s *Session) EnteredAmount() decimal.Decimal {
	return s.enteredAmount
}

// ItemRefundTotals returns the prorated subtotal and tax for the current
// selection of all line items
func (s *Session) ItemRefundTotals() LineTotals {
	return ItemsRefundTotals(s.Order, s.quantities)
}

// ProductsRefund returns the products portion of the refund, floored at
// zero and capped at the amount still refundable on the order
func (s *Session) ProductsRefund() decimal.Decimal {
	total := s.ItemRefundTotals().Total()
	if total.IsNegative() {
		return decimal.Zero
	}
	if maxRefundable := s.Order.MaxRefundable(); total.GreaterThan(maxRefundable) {
		return maxRefundable
	}
	return total
}

// ShippingRefundTotals returns the shipping portion of the refund
func (s *Session) ShippingRefundTotals() LineTotals {
	return ShippingRefundTotals(s.Order, s.selectedShipping)
}

// FeeRefundTotals returns the fees portion of the refund
func (s *Session) FeeRefundTotals() LineTotals {
	return FeeRefundTotals(s.Order, s.selectedFees)
}

// GrandTotalRefund combines the three buckets of the items-mode selection
func (s *Session) GrandTotalRefund() decimal.Decimal {
	return GrandTotal(
		s.ProductsRefund(),
		s.ShippingRefundTotals().Total(),
		s.FeeRefundTotals().Total(),
	)
}

// RefundTotal is the one authoritative total, regardless of entry mode
func (s *Session) RefundTotal() decimal.Decimal {
	if s.mode == ModeAmount {
		return s.enteredAmount
	}
	return s.GrandTotalRefund()
}

// RefundTotalMoney returns the authoritative total as Money in the order currency
func (s *Session) RefundTotalMoney() valueobject.Money {
	return valueobject.MustMoney(s.RefundTotal(), s.Order.Currency)
}

// PreviouslyRefunded returns the amount already refunded against the order
func (s *Session) PreviouslyRefunded() decimal.Decimal {
	return s.Order.RefundTotal
}

// PreviouslyRefundedMoney returns the refund-total-to-date as Money
func (s *Session) PreviouslyRefundedMoney() valueobject.Money {
	return valueobject.MustMoney(s.Order.RefundTotal, s.Order.Currency)
}

// MaxRefundable returns the amount still open for refund on the order
func (s *Session) MaxRefundable() decimal.Decimal {
	return s.Order.MaxRefundable()
}

// MaxRefundableMoney returns the order total minus the refund-total-to-date
// as Money in the order currency
func (s *Session) MaxRefundableMoney() valueobject.Money {
	total := valueobject.MustMoney(s.Order.Total, s.Order.Currency)
	return total.MustSubtract(s.PreviouslyRefundedMoney())
}

// Validate checks the current entry against the refundable maximum.
// Items-mode selections are pre-clamped and always valid.
func (s *Session) Validate() InputValidation {
	if s.mode != ModeAmount {
		return ValidationValid
	}
	return ValidateAmount(s.enteredAmount, s.Order.MaxRefundable())
}

// CanSubmit reports whether a submission would be accepted right now
func (s *Session) CanSubmit() bool {
	return s.state == StateIdle && s.Validate() == ValidationValid && s.RefundTotalMoney().IsPositive()
}

/// MethodDescription renders the human-readable refund method: the gateway
// title, "manual" when the gateway cannot refund, enriched with card
// brand and last4 when charge details are known.
func (s *Session) MethodDescription() string {
	title := s.Gateway.Title
	if s.Method == MethodManualOffline {
		if title != "" && !s.Order.IsCashPayment() {
			return fmt.Sprintf("%s (%s)", manualRefundMethod, title)
		}
		return manualRefundMethod
	}
	if title == "" {
		title = manualRefundMethod
	}
	if s.Charge != nil && s.Charge.CardLast4 != "" {
		brand := s.Charge.CardBrand
		if brand != "" {
			brand = strings.ToUpper(brand[:1]) + brand[1:]
		}
		return fmt.Sprintf("%s (%s **** %s)", title, brand, s.Charge.CardLast4)
	}
	return title
}

// ItemsPayload converts the current items-mode selection into refund
// lines: prorated entries for selected products, whole-line entries for
// selected shipping and fee lines
func (s *Session) ItemsPayload() []RefundLine {
	lines := make([]RefundLine, 0, len(s.quantities)+len(s.selectedShipping)+len(s.selectedFees))

	for _, item := range s.Order.Items {
		quantity := s.quantities[item.ItemID]
		if quantity <= 0 {
			continue
		}
		totals := ProratedItemTotals(item, quantity)
		lines = append(lines, RefundLine{
			Kind:     RefundLineItem,
			LineID:   item.ItemID,
			Quantity: quantity,
			Total:    totals.Subtotal,
			TotalTax: totals.Tax,
		})
	}
	for _, id := range s.selectedShipping {
		if line := s.Order.GetShippingLine(id); line != nil {
			lines = append(lines, RefundLine{
				Kind:     RefundLineShipping,
				LineID:   line.ItemID,
				Total:    line.Total,
				TotalTax: line.TotalTax,
			})
		}
	}
	for _, id := range s.selectedFees {
		if line := s.Order.GetFeeLine(id); line != nil {
			lines = append(lines, RefundLine{
				Kind:     RefundLineFee,
				LineID:   line.ID,
				Total:    line.Total,
				TotalTax: line.TotalTax,
			})
		}
	}
	return lines
}

// BeginSubmission locks the session for a single submission attempt.
// A second call while one is in flight returns ErrRefundInProgress,
// which is what makes double-taps and retries safe.
func (s *Session) BeginSubmission(reason string) error {
	if s.state != StateIdle {
		return ErrRefundInProgress
	}
	if len(reason) > MaxReasonLength {
		return shared.NewDomainError("REASON_TOO_LONG", "Refund reason exceeds the maximum length")
	}
	if validationErr := s.Validate().Err(); validationErr != nil {
		return validationErr
	}
	if !s.RefundTotalMoney().IsPositive() {
		return ErrNothingToRefund
	}

	s.reason = reason
	s.state = StateSubmitting
	s.AddDomainEvent(NewRefundSubmittedEvent(s))
	return nil
}

// AwaitClientConfirmation parks an Interac submission until the card
// reader reports the client-side refund outcome
func (s *Session) AwaitClientConfirmation() error {
	if s.Method != MethodCardPresentInterac {
		return shared.ErrInvalidState
	}
	if !s.state.CanTransitionTo(StateAwaitingClientConfirmation) {
		return shared.ErrInvalidState
	}
	s.state = StateAwaitingClientConfirmation
	return nil
}

// ResumeFromClientConfirmation moves an awaiting session back into
// submission so the backend notification can be dispatched. From here on
// the card reader has already moved the money; the session remembers that
// so a later retry never touches the card again.
func (s *Session) ResumeFromClientConfirmation() error {
	if s.state != StateAwaitingClientConfirmation {
		return ErrNotAwaitingConfirmation
	}
	s.state = StateSubmitting
	s.clientCompleted = true
	return nil
}

// ClientRefundCompleted reports whether the client-side card refund has
// already gone through. True once the reader's success was confirmed,
// even if the backend completion notification later failed.
func (s *Session) ClientRefundCompleted() bool {
	return s.clientCompleted
}

// CompleteSuccess records a successful submission and releases the
// in-flight guard. The caller is expected to exit the flow afterwards.
func (s *Session) CompleteSuccess(record *Record) error {
	if s.state != StateSubmitting {
		return shared.ErrInvalidState
	}
	s.state = StateIdle
	s.AddDomainEvent(NewRefundSucceededEvent(s, record))
	return nil
}

// CompleteFailure records a failed attempt and releases the in-flight
// guard so a retry is always possible. The user's selection is kept.
func (s *Session) CompleteFailure(cause error) error {
	if s.state != StateSubmitting && s.state != StateAwaitingClientConfirmation {
		return shared.ErrInvalidState
	}
	s.state = StateIdle
	s.AddDomainEvent(NewRefundFailedEvent(s, cause))
	return nil
}

// toggleID adds or removes an id from a selection slice, preserving order
// and ignoring redundant toggles
func toggleID(ids []int64, id int64, selected bool) []int64 {
	for idx, existing := range ids {
		if existing == id {
			if selected {
				return ids
			}
			return append(ids[:idx], ids[idx+1:]...)
		}
	}
	if selected {
		return append(ids, id)
	}
	return ids
}
