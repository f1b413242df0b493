package refund

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() GatewayInfo {
	return GatewayInfo{ID: "woocommerce_payments", Title: "Credit card", IsEnabled: true, SupportsRefunds: true}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(testOrder(), nil, testGateway(), nil, 2)
	require.NoError(t, err)
	return session
}

func TestNewSession(t *testing.T) {
	t.Run("opens idle in items mode", func(t *testing.T) {
		session := newTestSession(t)

		assert.Equal(t, StateIdle, session.State())
		assert.Equal(t, ModeItems, session.Mode())
		assert.Equal(t, MethodStandardGateway, session.Method)
		assert.True(t, session.RefundTotal().IsZero())
	})

	t.Run("rejects nil order", func(t *testing.T) {
		_, err := NewSession(nil, nil, testGateway(), nil, 2)
		assert.Error(t, err)
	})

	t.Run("emits an opened event", func(t *testing.T) {
		session := newTestSession(t)

		events := session.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventSessionOpened, events[0].EventType())
	})

	t.Run("custom-amounts-only order pre-selects its fees", func(t *testing.T) {
		order := &Order{
			ID:       7,
			Total:    decimal.RequireFromString("3.30"),
			FeeLines: []FeeLine{{ID: 20, Name: "Custom amount", Total: decimal.RequireFromString("3.00"), TotalTax: decimal.RequireFromString("0.30")}},
		}

		session, err := NewSession(order, nil, testGateway(), nil, 2)
		require.NoError(t, err)

		assert.Equal(t, []int64{20}, session.SelectedFeeLineIDs())
		assert.True(t, session.RefundTotal().Equal(decimal.RequireFromString("3.30")))
	})
}

func TestSessionItemSelection(t *testing.T) {
	t.Run("quantity above remaining is clamped", func(t *testing.T) {
		session := newTestSession(t)

		applied, err := session.SetItemQuantity(2, 5)
		require.NoError(t, err)

		assert.Equal(t, 1, applied)
		assert.Equal(t, 1, session.SelectedQuantity(2))
	})

	t.Run("negative quantity is clamped to zero", func(t *testing.T) {
		session := newTestSession(t)

		applied, err := session.SetItemQuantity(1, -3)
		require.NoError(t, err)

		assert.Equal(t, 0, applied)
	})

	t.Run("fully refunded item cannot be selected", func(t *testing.T) {
		history := []Record{{Items: []RecordItem{{ItemID: 2, Quantity: -1}}}}
		session, err := NewSession(testOrder(), history, testGateway(), nil, 2)
		require.NoError(t, err)

		applied, err := session.SetItemQuantity(2, 1)
		require.NoError(t, err)

		assert.Equal(t, 0, applied)
		assert.Equal(t, 0, session.SelectedQuantity(2))
	})

	t.Run("unknown item is rejected", func(t *testing.T) {
		session := newTestSession(t)

		_, err := session.SetItemQuantity(999, 1)
		assert.Error(t, err)
	})

	t.Run("select all takes every remaining quantity", func(t *testing.T) {
		session := newTestSession(t)

		require.NoError(t, session.SelectAllItems())

		assert.Equal(t, map[int64]int{1: 2, 2: 1}, session.SelectedQuantities())
	})

	t.Run("clear removes every selection", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())

		require.NoError(t, session.ClearItems())

		assert.Empty(t, session.SelectedQuantities())
	})
}

func TestSessionLineSelection(t *testing.T) {
	t.Run("toggling shipping adds and removes it", func(t *testing.T) {
		session := newTestSession(t)

		require.NoError(t, session.SetShippingLineSelected(10, true))
		assert.Equal(t, []int64{10}, session.SelectedShippingLineIDs())

		require.NoError(t, session.SetShippingLineSelected(10, false))
		assert.Empty(t, session.SelectedShippingLineIDs())
	})

	t.Run("already refunded shipping line is rejected", func(t *testing.T) {
		history := []Record{{ShippingLineIDs: []int64{10}}}
		session, err := NewSession(testOrder(), history, testGateway(), nil, 2)
		require.NoError(t, err)

		assert.Error(t, session.SetShippingLineSelected(10, true))
	})

	t.Run("already refunded fee line is rejected", func(t *testing.T) {
		history := []Record{{FeeLineIDs: []int64{20}}}
		session, err := NewSession(testOrder(), history, testGateway(), nil, 2)
		require.NoError(t, err)

		assert.Error(t, session.SetFeeLineSelected(20, true))
	})

	t.Run("redundant toggle is a no-op", func(t *testing.T) {
		session := newTestSession(t)

		require.NoError(t, session.SetFeeLineSelected(20, true))
		require.NoError(t, session.SetFeeLineSelected(20, true))

		assert.Equal(t, []int64{20}, session.SelectedFeeLineIDs())
	})
}

func TestSessionTotals(t *testing.T) {
	t.Run("items mode combines products shipping and fees", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.SetAllShippingSelected(true))
		require.NoError(t, session.SetAllFeesSelected(true))

		// products 33.00, shipping 5.50, fees 3.30
		assert.True(t, session.ProductsRefund().Equal(decimal.RequireFromString("33.00")))
		assert.True(t, session.GrandTotalRefund().Equal(decimal.RequireFromString("41.80")))
		assert.True(t, session.RefundTotal().Equal(decimal.RequireFromString("41.80")))
	})

	t.Run("products refund is capped at the refundable maximum", func(t *testing.T) {
		order := testOrder()
		order.RefundTotal = decimal.RequireFromString("30.00")
		session, err := NewSession(order, nil, testGateway(), nil, 2)
		require.NoError(t, err)
		require.NoError(t, session.SelectAllItems())

		assert.True(t, session.ProductsRefund().Equal(decimal.RequireFromString("11.80")))
	})

	t.Run("amount mode total is the entered amount", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.UseAmountMode())

		validation, err := session.SetEnteredAmount(decimal.RequireFromString("12.34"))
		require.NoError(t, err)

		assert.Equal(t, ValidationValid, validation)
		assert.True(t, session.RefundTotal().Equal(decimal.RequireFromString("12.34")))
	})

	t.Run("switching back to items mode restores the selection total", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.UseAmountMode())
		_, err := session.SetEnteredAmount(decimal.RequireFromString("1.00"))
		require.NoError(t, err)

		require.NoError(t, session.UseItemsMode())

		assert.True(t, session.RefundTotal().Equal(decimal.RequireFromString("33.00")))
	})
}

func TestSessionValidation(t *testing.T) {
	t.Run("amount above maximum is too high", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.UseAmountMode())

		validation, err := session.SetEnteredAmount(decimal.RequireFromString("41.81"))
		require.NoError(t, err)

		assert.Equal(t, ValidationTooHigh, validation)
		assert.False(t, session.CanSubmit())
	})

	t.Run("zero amount is too low", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.UseAmountMode())

		validation, err := session.SetEnteredAmount(decimal.Zero)
		require.NoError(t, err)

		assert.Equal(t, ValidationTooLow, validation)
	})

	t.Run("items mode is always valid", func(t *testing.T) {
		session := newTestSession(t)

		assert.Equal(t, ValidationValid, session.Validate())
	})
}

func TestSessionSubmissionStateMachine(t *testing.T) {
	t.Run("begin locks out further input", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())

		require.NoError(t, session.BeginSubmission("damaged goods"))

		assert.Equal(t, StateSubmitting, session.State())
		_, err := session.SetItemQuantity(1, 1)
		assert.ErrorIs(t, err, ErrRefundInProgress)
		assert.ErrorIs(t, session.SetShippingLineSelected(10, true), ErrRefundInProgress)
		assert.ErrorIs(t, session.UseAmountMode(), ErrRefundInProgress)
	})

	t.Run("second begin while in flight is rejected", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.BeginSubmission(""))

		assert.ErrorIs(t, session.BeginSubmission(""), ErrRefundInProgress)
	})

	t.Run("empty selection cannot be submitted", func(t *testing.T) {
		session := newTestSession(t)

		assert.ErrorIs(t, session.BeginSubmission(""), ErrNothingToRefund)
	})

	t.Run("invalid amount cannot be submitted", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.UseAmountMode())
		_, err := session.SetEnteredAmount(decimal.RequireFromString("99.00"))
		require.NoError(t, err)

		assert.ErrorIs(t, session.BeginSubmission(""), ErrTooHigh)
		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("overlong reason is rejected", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())

		reason := make([]byte, MaxReasonLength+1)
		for i := range reason {
			reason[i] = 'x'
		}

		assert.Error(t, session.BeginSubmission(string(reason)))
		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("success settles back to idle", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.BeginSubmission(""))

		require.NoError(t, session.CompleteSuccess(&Record{ID: 5, Amount: session.RefundTotal()}))

		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("failure keeps the selection for retry", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.SetAllFeesSelected(true))
		require.NoError(t, session.BeginSubmission(""))

		require.NoError(t, session.CompleteFailure(ErrRefundRejected))

		assert.Equal(t, StateIdle, session.State())
		assert.Equal(t, map[int64]int{1: 2, 2: 1}, session.SelectedQuantities())
		assert.Equal(t, []int64{20}, session.SelectedFeeLineIDs())
		require.NoError(t, session.BeginSubmission(""))
	})

	t.Run("complete without a submission in flight is invalid", func(t *testing.T) {
		session := newTestSession(t)

		assert.Error(t, session.CompleteSuccess(nil))
		assert.Error(t, session.CompleteFailure(ErrRefundRejected))
	})
}

func TestSessionInteracFlow(t *testing.T) {
	interacCharge := &ChargeDetails{PaymentMethodType: "interac_present", CardBrand: "interac", CardLast4: "1234"}

	newInteracSession := func(t *testing.T) *Session {
		t.Helper()
		session, err := NewSession(testOrder(), nil, testGateway(), interacCharge, 2)
		require.NoError(t, err)
		require.NoError(t, session.SelectAllItems())
		return session
	}

	t.Run("submission parks awaiting client confirmation", func(t *testing.T) {
		session := newInteracSession(t)
		require.NoError(t, session.BeginSubmission(""))

		require.NoError(t, session.AwaitClientConfirmation())

		assert.Equal(t, StateAwaitingClientConfirmation, session.State())
		_, err := session.SetItemQuantity(1, 1)
		assert.ErrorIs(t, err, ErrRefundInProgress)
	})

	t.Run("confirmation resumes submission", func(t *testing.T) {
		session := newInteracSession(t)
		require.NoError(t, session.BeginSubmission(""))
		require.NoError(t, session.AwaitClientConfirmation())

		require.NoError(t, session.ResumeFromClientConfirmation())

		assert.Equal(t, StateSubmitting, session.State())
		assert.True(t, session.ClientRefundCompleted())
	})

	t.Run("failed notification keeps the completed-card fact", func(t *testing.T) {
		session := newInteracSession(t)
		require.NoError(t, session.BeginSubmission(""))
		require.NoError(t, session.AwaitClientConfirmation())
		require.NoError(t, session.ResumeFromClientConfirmation())

		require.NoError(t, session.CompleteFailure(ErrInteracNotifyFailed))

		assert.Equal(t, StateIdle, session.State())
		assert.True(t, session.ClientRefundCompleted())
		assert.True(t, session.CanSubmit())
	})

	t.Run("resume without awaiting is rejected", func(t *testing.T) {
		session := newInteracSession(t)

		assert.ErrorIs(t, session.ResumeFromClientConfirmation(), ErrNotAwaitingConfirmation)
	})

	t.Run("non-interac session cannot await confirmation", func(t *testing.T) {
		session := newTestSession(t)
		require.NoError(t, session.SelectAllItems())
		require.NoError(t, session.BeginSubmission(""))

		assert.Error(t, session.AwaitClientConfirmation())
	})

	t.Run("failure while awaiting releases the guard", func(t *testing.T) {
		session := newInteracSession(t)
		require.NoError(t, session.BeginSubmission(""))
		require.NoError(t, session.AwaitClientConfirmation())

		require.NoError(t, session.CompleteFailure(ErrInteracNotifyFailed))

		assert.Equal(t, StateIdle, session.State())
	})
}

func TestSessionItemsPayload(t *testing.T) {
	session := newTestSession(t)
	_, err := session.SetItemQuantity(1, 1)
	require.NoError(t, err)
	require.NoError(t, session.SetShippingLineSelected(10, true))
	require.NoError(t, session.SetFeeLineSelected(20, true))

	lines := session.ItemsPayload()

	require.Len(t, lines, 3)
	assert.Equal(t, RefundLineItem, lines[0].Kind)
	assert.Equal(t, int64(1), lines[0].LineID)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.True(t, lines[0].Total.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, lines[0].TotalTax.Equal(decimal.RequireFromString("1.00")))

	assert.Equal(t, RefundLineShipping, lines[1].Kind)
	assert.True(t, lines[1].Total.Equal(decimal.RequireFromString("5.00")))

	assert.Equal(t, RefundLineFee, lines[2].Kind)
	assert.True(t, lines[2].Total.Equal(decimal.RequireFromString("3.00")))
}

func TestSessionMethodDescription(t *testing.T) {
	t.Run("standard gateway shows its title", func(t *testing.T) {
		session := newTestSession(t)

		assert.Equal(t, "Credit card", session.MethodDescription())
	})

	t.Run("card details enrich the description", func(t *testing.T) {
		charge := &ChargeDetails{PaymentMethodType: "card_present", CardBrand: "visa", CardLast4: "4242"}
		session, err := NewSession(testOrder(), nil, testGateway(), charge, 2)
		require.NoError(t, err)

		assert.Equal(t, "Credit card (Visa **** 4242)", session.MethodDescription())
	})

	t.Run("manual refund names the unreachable gateway", func(t *testing.T) {
		gateway := testGateway()
		gateway.SupportsRefunds = false
		session, err := NewSession(testOrder(), nil, gateway, nil, 2)
		require.NoError(t, err)

		assert.Equal(t, "manual (Credit card)", session.MethodDescription())
	})

	t.Run("cash payment is plain manual", func(t *testing.T) {
		order := testOrder()
		order.PaymentMethod = "cod"
		order.PaymentMethodTitle = "Cash on delivery"
		session, err := NewSession(order, nil, GatewayInfo{ID: "cod", Title: "Cash on delivery"}, nil, 2)
		require.NoError(t, err)

		assert.Equal(t, "manual", session.MethodDescription())
	})
}
