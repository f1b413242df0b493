package refund

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/refund"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// MockStoreGateway is a mock implementation of refund.StoreGateway
type MockStoreGateway struct {
	mock.Mock
}

func (m *MockStoreGateway) FetchOrder(ctx context.Context, orderID int64) (*refund.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Order), args.Error(1)
}

func (m *MockStoreGateway) FetchRefunds(ctx context.Context, orderID int64) ([]refund.Record, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]refund.Record), args.Error(1)
}

func (m *MockStoreGateway) FetchGateway(ctx context.Context, gatewayID string) (refund.GatewayInfo, error) {
	args := m.Called(ctx, gatewayID)
	return args.Get(0).(refund.GatewayInfo), args.Error(1)
}

func (m *MockStoreGateway) FetchCharge(ctx context.Context, chargeID string) (*refund.ChargeDetails, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.ChargeDetails), args.Error(1)
}

func (m *MockStoreGateway) FetchCurrencyDecimals(ctx context.Context) (int32, error) {
	args := m.Called(ctx)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockStoreGateway) CreateItemsRefund(ctx context.Context, req refund.ItemsRequest) (*refund.Record, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Record), args.Error(1)
}

func (m *MockStoreGateway) CreateAmountRefund(ctx context.Context, req refund.AmountRequest) (*refund.Record, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Record), args.Error(1)
}

func (m *MockStoreGateway) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	args := m.Called(ctx, orderID, note)
	return args.Error(0)
}

// fakeSessionRepo keeps sessions in memory
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*refund.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*refund.Session)}
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *refund.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.GetID()] = session
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*refund.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, refund.ErrSessionNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// fakeNetwork reports a fixed connectivity state
type fakeNetwork struct {
	connected bool
}

func (n *fakeNetwork) IsConnected(ctx context.Context) bool {
	return n.connected
}

// fakeGuard is an in-memory submission guard
type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: make(map[string]bool)}
}

func (g *fakeGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquires++
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}

func (g *fakeGuard) isHeld(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[key]
}

func testOrder() *refund.Order {
	return &refund.Order{
		ID:                 42,
		Number:             "42",
		Currency:           valueobject.USD,
		Total:              decimal.RequireFromString("33.00"),
		RefundTotal:        decimal.Zero,
		PaymentMethod:      "woocommerce_payments",
		PaymentMethodTitle: "Credit card",
		Items: []refund.LineItem{
			{ItemID: 1, ProductID: 101, Name: "Mug", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2, Total: decimal.RequireFromString("20.00"), TotalTax: decimal.RequireFromString("2.00")},
			{ItemID: 2, ProductID: 102, Name: "Poster", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1, Total: decimal.RequireFromString("10.00"), TotalTax: decimal.RequireFromString("1.00")},
		},
	}
}

func testGateway() refund.GatewayInfo {
	return refund.GatewayInfo{ID: "woocommerce_payments", Title: "Credit card", IsEnabled: true, SupportsRefunds: true}
}

type serviceFixture struct {
	service *Service
	store   *MockStoreGateway
	repo    *fakeSessionRepo
	network *fakeNetwork
	guard   *fakeGuard
}

func newServiceFixture() *serviceFixture {
	store := new(MockStoreGateway)
	repo := newFakeSessionRepo()
	network := &fakeNetwork{connected: true}
	guard := newFakeGuard()
	service := NewService(store, repo, network, guard, zap.NewNop(), Options{ShippingRefundEnabled: true})
	return &serviceFixture{service: service, store: store, repo: repo, network: network, guard: guard}
}

func (f *serviceFixture) openSession(t *testing.T) *SessionResponse {
	t.Helper()
	f.store.On("FetchOrder", mock.Anything, int64(42)).Return(testOrder(), nil).Once()
	f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
	f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(testGateway(), nil).Once()
	f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

	response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
	require.NoError(t, err)
	return response
}

func (f *serviceFixture) selectAll(t *testing.T, sessionID uuid.UUID) {
	t.Helper()
	all := true
	_, err := f.service.UpdateSelection(context.Background(), sessionID, UpdateSelectionRequest{SelectAllItems: &all})
	require.NoError(t, err)
}

func TestOpenSession(t *testing.T) {
	t.Run("builds the session view from store data", func(t *testing.T) {
		f := newServiceFixture()

		response := f.openSession(t)

		assert.Equal(t, int64(42), response.OrderID)
		assert.Equal(t, "IDLE", response.State)
		assert.Equal(t, refund.MethodStandardGateway, response.Method)
		assert.Equal(t, "33.00", response.MaxRefundable)
		assert.Len(t, response.Items, 2)
		assert.Equal(t, 2, response.Items[0].MaxQuantity)
		f.store.AssertExpectations(t)
	})

	t.Run("fully refunded order cannot open a session", func(t *testing.T) {
		f := newServiceFixture()
		order := testOrder()
		order.RefundTotal = order.Total
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(order, nil).Once()

		_, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})

		assert.ErrorIs(t, err, refund.ErrNothingToRefund)
	})

	t.Run("charge lookup failure degrades to standard handling", func(t *testing.T) {
		f := newServiceFixture()
		order := testOrder()
		order.ChargeID = "ch_123"
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(order, nil).Once()
		f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
		f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(testGateway(), nil).Once()
		f.store.On("FetchCharge", mock.Anything, "ch_123").Return(nil, assert.AnError).Once()
		f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

		response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
		require.NoError(t, err)

		assert.Equal(t, refund.MethodStandardGateway, response.Method)
	})

	t.Run("interac charge routes to the client-side branch", func(t *testing.T) {
		f := newServiceFixture()
		order := testOrder()
		order.ChargeID = "ch_123"
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(order, nil).Once()
		f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
		f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(testGateway(), nil).Once()
		f.store.On("FetchCharge", mock.Anything, "ch_123").Return(&refund.ChargeDetails{PaymentMethodType: "interac_present"}, nil).Once()
		f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

		response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
		require.NoError(t, err)

		assert.Equal(t, refund.MethodCardPresentInterac, response.Method)
	})

	t.Run("flags orders with more than one refundable shipping line", func(t *testing.T) {
		f := newServiceFixture()
		order := testOrder()
		order.ShippingLines = []refund.ShippingLine{
			{ItemID: 10, MethodTitle: "Flat rate", Total: decimal.RequireFromString("5.00")},
			{ItemID: 11, MethodTitle: "Express", Total: decimal.RequireFromString("9.00")},
		}
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(order, nil).Once()
		f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
		f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(testGateway(), nil).Once()
		f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

		response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
		require.NoError(t, err)

		assert.True(t, response.MultipleShippingLines)
	})

	t.Run("single shipping line raises no multiple-lines flag", func(t *testing.T) {
		f := newServiceFixture()

		response := f.openSession(t)

		assert.False(t, response.MultipleShippingLines)
	})

	t.Run("gateway lookup failure degrades to manual", func(t *testing.T) {
		f := newServiceFixture()
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(testOrder(), nil).Once()
		f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
		f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(refund.GatewayInfo{}, assert.AnError).Once()
		f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

		response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
		require.NoError(t, err)

		assert.Equal(t, refund.MethodManualOffline, response.Method)
		assert.NotEmpty(t, response.RefundNotice)
	})
}

func TestUpdateSelection(t *testing.T) {
	t.Run("item quantities and totals recompute", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)

		response, err := f.service.UpdateSelection(context.Background(), opened.SessionID, UpdateSelectionRequest{
			Items: []ItemQuantityInput{{ItemID: 1, Quantity: 1}},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, response.Items[0].SelectedQuantity)
		assert.Equal(t, "11.00", response.Totals.ProductsRefund)
		assert.Equal(t, "11.00", response.RefundTotal)
		assert.True(t, response.CanSubmit)
	})

	t.Run("amount mode validates against the maximum", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		mode := refund.ModeAmount
		amount := decimal.RequireFromString("99.00")

		response, err := f.service.UpdateSelection(context.Background(), opened.SessionID, UpdateSelectionRequest{
			Mode:   &mode,
			Amount: &amount,
		})
		require.NoError(t, err)

		assert.Equal(t, "TOO_HIGH", response.Validation)
		assert.False(t, response.CanSubmit)
	})

	t.Run("unknown session is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.UpdateSelection(context.Background(), uuid.New(), UpdateSelectionRequest{})

		assert.ErrorIs(t, err, refund.ErrSessionNotFound)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("items mode submits the prorated lines once", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		f.selectAll(t, opened.SessionID)

		f.store.On("CreateItemsRefund", mock.Anything, mock.MatchedBy(func(req refund.ItemsRequest) bool {
			return req.OrderID == 42 &&
				req.Amount.Equal(decimal.RequireFromString("33.00")) &&
				req.AutomaticGatewayRefund &&
				len(req.Lines) == 2
		})).Return(&refund.Record{ID: 7, OrderID: 42, Amount: decimal.RequireFromString("33.00")}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

		response, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{Reason: "damaged"})
		require.NoError(t, err)

		assert.Equal(t, int64(7), response.RefundID)
		assert.False(t, response.AwaitingClientConfirmation)
		assert.False(t, f.guard.isHeld("refund:order:42"))
		f.store.AssertExpectations(t)
	})

	t.Run("amount mode submits without lines", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		mode := refund.ModeAmount
		amount := decimal.RequireFromString("10.00")
		_, err := f.service.UpdateSelection(context.Background(), opened.SessionID, UpdateSelectionRequest{Mode: &mode, Amount: &amount})
		require.NoError(t, err)

		f.store.On("CreateAmountRefund", mock.Anything, mock.MatchedBy(func(req refund.AmountRequest) bool {
			return req.OrderID == 42 && req.Amount.Equal(amount)
		})).Return(&refund.Record{ID: 8, OrderID: 42, Amount: amount}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

		_, err = f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)
		f.store.AssertExpectations(t)
	})

	t.Run("offline submission fails fast without consuming the guard", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		f.selectAll(t, opened.SessionID)
		f.network.connected = false

		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})

		assert.ErrorIs(t, err, refund.ErrNetworkUnavailable)
		assert.Equal(t, 0, f.guard.acquires)

		// session is still submittable once connectivity returns
		f.network.connected = true
		response, err := f.service.GetSession(context.Background(), opened.SessionID)
		require.NoError(t, err)
		assert.True(t, response.CanSubmit)
	})

	t.Run("guard held elsewhere rejects the attempt", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		f.selectAll(t, opened.SessionID)
		acquired, err := f.guard.Acquire(context.Background(), "refund:order:42", time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		_, err = f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})

		assert.ErrorIs(t, err, refund.ErrRefundInProgress)
	})

	t.Run("store rejection settles the session for retry", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		f.selectAll(t, opened.SessionID)

		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(nil, refund.ErrRefundRejected).Once()

		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		assert.ErrorIs(t, err, refund.ErrRefundRejected)
		assert.False(t, f.guard.isHeld("refund:order:42"))

		// selection survives and a retry succeeds
		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(&refund.Record{ID: 9, OrderID: 42, Amount: decimal.RequireFromString("33.00")}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

		response, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(9), response.RefundID)
	})

	t.Run("note failure does not fail the refund", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)
		f.selectAll(t, opened.SessionID)

		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(&refund.Record{ID: 10, OrderID: 42, Amount: decimal.RequireFromString("33.00")}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(assert.AnError).Once()

		response, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})

		require.NoError(t, err)
		assert.Equal(t, int64(10), response.RefundID)
	})

	t.Run("empty selection cannot be submitted", func(t *testing.T) {
		f := newServiceFixture()
		opened := f.openSession(t)

		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})

		assert.ErrorIs(t, err, refund.ErrNothingToRefund)
	})
}

func TestInteracFlow(t *testing.T) {
	openInterac := func(t *testing.T, f *serviceFixture) *SessionResponse {
		t.Helper()
		order := testOrder()
		order.ChargeID = "ch_123"
		f.store.On("FetchOrder", mock.Anything, int64(42)).Return(order, nil).Once()
		f.store.On("FetchRefunds", mock.Anything, int64(42)).Return([]refund.Record{}, nil).Once()
		f.store.On("FetchGateway", mock.Anything, "woocommerce_payments").Return(testGateway(), nil).Once()
		f.store.On("FetchCharge", mock.Anything, "ch_123").Return(&refund.ChargeDetails{PaymentMethodType: "interac_present"}, nil).Once()
		f.store.On("FetchCurrencyDecimals", mock.Anything).Return(int32(2), nil).Once()

		response, err := f.service.OpenSession(context.Background(), OpenSessionRequest{OrderID: 42})
		require.NoError(t, err)
		return response
	}

	t.Run("submit parks awaiting client confirmation without a store call", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)
		f.selectAll(t, opened.SessionID)

		response, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)

		assert.True(t, response.AwaitingClientConfirmation)
		assert.True(t, f.guard.isHeld("refund:order:42"))
		f.store.AssertNotCalled(t, "CreateItemsRefund", mock.Anything, mock.Anything)
	})

	t.Run("confirmation dispatches the completion notification", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)
		f.selectAll(t, opened.SessionID)
		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)

		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(&refund.Record{ID: 11, OrderID: 42, Amount: decimal.RequireFromString("33.00")}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

		response, err := f.service.ConfirmClientRefund(context.Background(), opened.SessionID)
		require.NoError(t, err)

		assert.Equal(t, int64(11), response.RefundID)
		assert.False(t, f.guard.isHeld("refund:order:42"))
	})

	t.Run("notification failure settles back to idle with the selection intact", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)
		f.selectAll(t, opened.SessionID)
		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)

		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

		_, err = f.service.ConfirmClientRefund(context.Background(), opened.SessionID)
		assert.ErrorIs(t, err, refund.ErrInteracNotifyFailed)
		assert.False(t, f.guard.isHeld("refund:order:42"))

		view, err := f.service.GetSession(context.Background(), opened.SessionID)
		require.NoError(t, err)
		assert.Equal(t, "IDLE", view.State)
		assert.Equal(t, 2, view.Items[0].SelectedQuantity)
		assert.True(t, view.CanSubmit)
	})

	t.Run("resubmission after a failed notification retries only the notification", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)
		f.selectAll(t, opened.SessionID)
		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)

		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()
		_, err = f.service.ConfirmClientRefund(context.Background(), opened.SessionID)
		require.ErrorIs(t, err, refund.ErrInteracNotifyFailed)

		// the money already moved; the retry must not park for the card
		// reader again, it dispatches the pending notification directly
		f.store.On("CreateItemsRefund", mock.Anything, mock.Anything).Return(&refund.Record{ID: 12, OrderID: 42, Amount: decimal.RequireFromString("33.00")}, nil).Once()
		f.store.On("AddOrderNote", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

		response, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)
		assert.False(t, response.AwaitingClientConfirmation)
		assert.Equal(t, int64(12), response.RefundID)
		assert.False(t, f.guard.isHeld("refund:order:42"))
	})

	t.Run("cancel releases the guard", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)
		f.selectAll(t, opened.SessionID)
		_, err := f.service.Submit(context.Background(), opened.SessionID, SubmitRequest{})
		require.NoError(t, err)

		require.NoError(t, f.service.CancelClientRefund(context.Background(), opened.SessionID))

		assert.False(t, f.guard.isHeld("refund:order:42"))
		response, err := f.service.GetSession(context.Background(), opened.SessionID)
		require.NoError(t, err)
		assert.Equal(t, "IDLE", response.State)
	})

	t.Run("confirm without a parked submission is rejected", func(t *testing.T) {
		f := newServiceFixture()
		opened := openInterac(t, f)

		_, err := f.service.ConfirmClientRefund(context.Background(), opened.SessionID)

		assert.ErrorIs(t, err, refund.ErrNotAwaitingConfirmation)
	})
}
