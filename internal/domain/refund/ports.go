package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreGateway is the outbound port to the storefront backend. The
// adapter translates these calls to the store's REST API and maps wire
// failures to domain errors.
type StoreGateway interface {
	// FetchOrder loads an order with its line items, shipping and fee lines
	FetchOrder(ctx context.Context, orderID int64) (*Order, error)
	// FetchRefunds loads every refund already issued against the order
	FetchRefunds(ctx context.Context, orderID int64) ([]Record, error)
	// FetchGateway loads the payment gateway the order was paid through.
	// A gateway the store does not know resolves to a disabled GatewayInfo,
	// not an error.
	FetchGateway(ctx context.Context, gatewayID string) (GatewayInfo, error)
	// FetchCharge loads the payment processor's charge record. Returns
	// nil without error when the lookup is inconclusive; classification
	// then falls back to standard card-present handling.
	FetchCharge(ctx context.Context, chargeID string) (*ChargeDetails, error)
	// FetchCurrencyDecimals returns the store's configured number of
	// decimal places for money formatting
	FetchCurrencyDecimals(ctx context.Context) (int32, error)
	// CreateItemsRefund submits an items-mode refund
	CreateItemsRefund(ctx context.Context, req ItemsRequest) (*Record, error)
	// CreateAmountRefund submits an amount-mode refund
	CreateAmountRefund(ctx context.Context, req AmountRequest) (*Record, error)
	// AddOrderNote attaches a note to the order, visible to store staff
	AddOrderNote(ctx context.Context, orderID int64, note string) error
}

// NetworkStatus reports whether the storefront backend is reachable.
// Checked before any submission so an offline attempt fails fast without
// consuming the in-flight guard.
type NetworkStatus interface {
	IsConnected(ctx context.Context) bool
}

// SubmissionGuard enforces at most one in-flight submission per order
// across processes. Acquire returns false when another submission holds
// the guard; Release is idempotent.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SessionRepository stores open refund sessions between requests
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
