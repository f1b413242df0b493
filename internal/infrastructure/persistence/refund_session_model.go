package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/refund"
)

// RefundSessionModel persists a refund session snapshot. The order and
// history are point-in-time copies fetched from the store at open; they
// are stored as JSON because the engine never queries inside them.
type RefundSessionModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID          int64     `gorm:"not null;index"`
	State            string    `gorm:"not null"`
	Mode             string    `gorm:"not null"`
	EnteredAmount    string    `gorm:"not null"`
	Reason           string
	ClientCompleted  bool
	CurrencyDecimals int32  `gorm:"not null"`
	OrderJSON        []byte `gorm:"type:bytes;not null"`
	HistoryJSON      []byte `gorm:"type:bytes"`
	GatewayJSON      []byte `gorm:"type:bytes;not null"`
	ChargeJSON       []byte `gorm:"type:bytes"`
	SelectionJSON    []byte `gorm:"type:bytes"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName sets the table name for RefundSessionModel
func (RefundSessionModel) TableName() string {
	return "refund_sessions"
}

// selectionDoc is the JSON shape of the persisted selection state
type selectionDoc struct {
	Quantities       map[int64]int `json:"quantities"`
	SelectedShipping []int64       `json:"selected_shipping"`
	SelectedFees     []int64       `json:"selected_fees"`
}

// RefundSessionModelFromDomain converts a session into its persistence model
func RefundSessionModelFromDomain(session *refund.Session) (*RefundSessionModel, error) {
	snap := session.Snapshot()

	orderJSON, err := json.Marshal(snap.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session order: %w", err)
	}
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session history: %w", err)
	}
	gatewayJSON, err := json.Marshal(snap.Gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session gateway: %w", err)
	}
	var chargeJSON []byte
	if snap.Charge != nil {
		chargeJSON, err = json.Marshal(snap.Charge)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session charge: %w", err)
		}
	}
	selectionJSON, err := json.Marshal(selectionDoc{
		Quantities:       snap.Quantities,
		SelectedShipping: snap.SelectedShipping,
		SelectedFees:     snap.SelectedFees,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session selection: %w", err)
	}

	return &RefundSessionModel{
		ID:               snap.ID,
		OrderID:          snap.Order.ID,
		State:            string(snap.State),
		Mode:             string(snap.Mode),
		EnteredAmount:    snap.EnteredAmount.String(),
		Reason:           snap.Reason,
		ClientCompleted:  snap.ClientCompleted,
		CurrencyDecimals: snap.CurrencyDecimals,
		OrderJSON:        orderJSON,
		HistoryJSON:      historyJSON,
		GatewayJSON:      gatewayJSON,
		ChargeJSON:       chargeJSON,
		SelectionJSON:    selectionJSON,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        snap.UpdatedAt,
	}, nil
}

// ToDomain rebuilds the session aggregate from the persisted snapshot
func (m *RefundSessionModel) ToDomain() (*refund.Session, error) {
	var order refund.Order
	if err := json.Unmarshal(m.OrderJSON, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session order: %w", err)
	}
	var history []refund.Record
	if len(m.HistoryJSON) > 0 {
		if err := json.Unmarshal(m.HistoryJSON, &history); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session history: %w", err)
		}
	}
	var gateway refund.GatewayInfo
	if err := json.Unmarshal(m.GatewayJSON, &gateway); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session gateway: %w", err)
	}
	var charge *refund.ChargeDetails
	if len(m.ChargeJSON) > 0 {
		charge = &refund.ChargeDetails{}
		if err := json.Unmarshal(m.ChargeJSON, charge); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session charge: %w", err)
		}
	}
	var selection selectionDoc
	if len(m.SelectionJSON) > 0 {
		if err := json.Unmarshal(m.SelectionJSON, &selection); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session selection: %w", err)
		}
	}
	enteredAmount, err := decimal.NewFromString(m.EnteredAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session amount: %w", err)
	}

	return refund.RestoreSession(refund.Snapshot{
		ID:               m.ID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Order:            &order,
		History:          history,
		Gateway:          gateway,
		Charge:           charge,
		CurrencyDecimals: m.CurrencyDecimals,
		State:            refund.SessionState(m.State),
		Mode:             refund.EntryMode(m.Mode),
		Quantities:       selection.Quantities,
		SelectedShipping: selection.SelectedShipping,
		SelectedFees:     selection.SelectedFees,
		EnteredAmount:    enteredAmount,
		Reason:           m.Reason,
		ClientCompleted:  m.ClientCompleted,
	})
}
