package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/shared"
)

// Snapshot captures the complete state of a session for persistence.
// Remaining and Method are derived facts and are recomputed on restore.
type Snapshot struct {
	ID               uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Order            *Order
	History          []Record
	Gateway          GatewayInfo
	Charge           *ChargeDetails
	CurrencyDecimals int32
	State            SessionState
	Mode             EntryMode
	Quantities       map[int64]int
	SelectedShipping []int64
	SelectedFees     []int64
	EnteredAmount    decimal.Decimal
	Reason           string
	ClientCompleted  bool
}

// Snapshot exports the session state for persistence
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Order:            s.Order,
		History:          s.History,
		Gateway:          s.Gateway,
		Charge:           s.Charge,
		CurrencyDecimals: s.CurrencyDecimals,
		State:            s.state,
		Mode:             s.mode,
		Quantities:       s.SelectedQuantities(),
		SelectedShipping: s.SelectedShippingLineIDs(),
		SelectedFees:     s.SelectedFeeLineIDs(),
		EnteredAmount:    s.enteredAmount,
		Reason:           s.reason,
		ClientCompleted:  s.clientCompleted,
	}
}

// RestoreSession rebuilds a session from a persisted snapshot without
// emitting events. Derived facts are recomputed from the snapshot's order
// and history.
func RestoreSession(snap Snapshot) (*Session, error) {
	if snap.Order == nil {
		return nil, shared.NewDomainError("INVALID_SNAPSHOT", "Session snapshot is missing its order")
	}

	quantities := snap.Quantities
	if quantities == nil {
		quantities = make(map[int64]int)
	}

	return &Session{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			ID:        snap.ID,
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
		},
		Order:            snap.Order,
		History:          snap.History,
		Remaining:        ResolveRemaining(snap.Order, snap.History),
		Gateway:          snap.Gateway,
		Charge:           snap.Charge,
		Method:           ClassifyMethod(snap.Gateway, snap.Charge),
		CurrencyDecimals: snap.CurrencyDecimals,
		state:            snap.State,
		mode:             snap.Mode,
		quantities:       quantities,
		selectedShipping: append([]int64(nil), snap.SelectedShipping...),
		selectedFees:     append([]int64(nil), snap.SelectedFees...),
		enteredAmount:    snap.EnteredAmount,
		reason:           snap.Reason,
		clientCompleted:  snap.ClientCompleted,
	}, nil
}
