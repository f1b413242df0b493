package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/refund"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// defaultGuardTTL bounds how long a crashed submission can block an order
const defaultGuardTTL = 2 * time.Minute

// Options tune service behavior from configuration
type Options struct {
	// ShippingRefundEnabled exposes shipping lines for selection. Stores
	// that handle shipping refunds out of band turn this off.
	ShippingRefundEnabled bool
	// GuardTTL overrides how long the per-order submission guard is held
	GuardTTL time.Duration
}

// Service orchestrates interactive refund sessions: opening them against
// store data, applying selection changes, and driving submissions through
// the at-most-once state machine.
type Service struct {
	store     refund.StoreGateway
	sessions  refund.SessionRepository
	network   refund.NetworkStatus
	guard     refund.SubmissionGuard
	publisher shared.EventPublisher
	logger    *zap.Logger
	options   Options
}

// NewService creates a refund Service
func NewService(
	store refund.StoreGateway,
	sessions refund.SessionRepository,
	network refund.NetworkStatus,
	guard refund.SubmissionGuard,
	logger *zap.Logger,
	options Options,
) *Service {
	if options.GuardTTL <= 0 {
		options.GuardTTL = defaultGuardTTL
	}
	return &Service{
		store:    store,
		sessions: sessions,
		network:  network,
		guard:    guard,
		logger:   logger,
		options:  options,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// OpenSession loads an order and everything needed to refund it, and
// opens a fresh session. Gateway, charge and currency lookups degrade
// gracefully: a failed charge lookup falls back to standard handling and
// a failed settings lookup falls back to two decimals.
func (s *Service) OpenSession(ctx context.Context, req OpenSessionRequest) (*SessionResponse, error) {
	order, err := s.store.FetchOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.MaxRefundable().IsPositive() {
		return nil, refund.ErrNothingToRefund
	}

	history, err := s.store.FetchRefunds(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	gateway, err := s.store.FetchGateway(ctx, order.PaymentMethod)
	if err != nil {
		s.logger.Warn("gateway lookup failed, treating refund as manual",
			zap.Int64("order_id", order.ID),
			zap.String("gateway_id", order.PaymentMethod),
			zap.Error(err))
		gateway = refund.GatewayInfo{ID: order.PaymentMethod, Title: order.PaymentMethodTitle}
	}

	var charge *refund.ChargeDetails
	if order.ChargeID != "" {
		charge, err = s.store.FetchCharge(ctx, order.ChargeID)
		if err != nil {
			s.logger.Warn("charge lookup failed, falling back to card-present handling",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			charge = nil
		}
	}

	decimals, err := s.store.FetchCurrencyDecimals(ctx)
	if err != nil {
		s.logger.Warn("currency settings lookup failed, using default decimals", zap.Error(err))
		decimals = valueobject.DefaultDecimals
	}

	session, err := refund.NewSession(order, history, gateway, charge, decimals)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, session)

	response := ToSessionResponse(session, s.options.ShippingRefundEnabled)
	return &response, nil
}

// GetSession returns the current view of an open session
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	response := ToSessionResponse(session, s.options.ShippingRefundEnabled)
	return &response, nil
}

// CloseSession discards an open session
func (s *Service) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

// UpdateSelection applies a batch of selection changes and returns the
// recomputed session view
func (s *Service) UpdateSelection(ctx context.Context, sessionID uuid.UUID, req UpdateSelectionRequest) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.applySelection(session, req); err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	response := ToSessionResponse(session, s.options.ShippingRefundEnabled)
	return &response, nil
}

func (s *Service) applySelection(session *refund.Session, req UpdateSelectionRequest) error {
	if req.SelectAllItems != nil && *req.SelectAllItems {
		if err := session.SelectAllItems(); err != nil {
			return err
		}
	}
	if req.ClearItems != nil && *req.ClearItems {
		if err := session.ClearItems(); err != nil {
			return err
		}
	}
	for _, item := range req.Items {
		if _, err := session.SetItemQuantity(item.ItemID, item.Quantity); err != nil {
			return err
		}
	}
	if req.AllShipping != nil {
		if !s.options.ShippingRefundEnabled {
			return shared.NewDomainError("SHIPPING_REFUND_DISABLED", "Shipping refunds are not enabled for this store")
		}
		if err := session.SetAllShippingSelected(*req.AllShipping); err != nil {
			return err
		}
	}
	for _, line := range req.ShippingLines {
		if !s.options.ShippingRefundEnabled {
			return shared.NewDomainError("SHIPPING_REFUND_DISABLED", "Shipping refunds are not enabled for this store")
		}
		if err := session.SetShippingLineSelected(line.LineID, line.Selected); err != nil {
			return err
		}
	}
	if req.AllFees != nil {
		if err := session.SetAllFeesSelected(*req.AllFees); err != nil {
			return err
		}
	}
	for _, line := range req.FeeLines {
		if err := session.SetFeeLineSelected(line.LineID, line.Selected); err != nil {
			return err
		}
	}
	if req.Mode != nil {
		switch *req.Mode {
		case refund.ModeItems:
			if err := session.UseItemsMode(); err != nil {
				return err
			}
		case refund.ModeAmount:
			if err := session.UseAmountMode(); err != nil {
				return err
			}
		default:
			return shared.ErrInvalidInput
		}
	}
	if req.Amount != nil {
		if _, err := session.SetEnteredAmount(*req.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Submit drives one submission attempt. Standard and manual refunds call
// the store synchronously; Interac sessions park awaiting the card
// reader's client-side confirmation instead, holding the guard until
// ConfirmClientRefund or CancelClientRefund settles them.
func (s *Service) Submit(ctx context.Context, sessionID uuid.UUID, req SubmitRequest) (*SubmitResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !s.network.IsConnected(ctx) {
		return nil, refund.ErrNetworkUnavailable
	}

	if err := session.BeginSubmission(req.Reason); err != nil {
		return nil, err
	}

	acquired, err := s.guard.Acquire(ctx, s.guardKey(session), s.options.GuardTTL)
	if err != nil || !acquired {
		failErr := session.CompleteFailure(refund.ErrRefundInProgress)
		if failErr != nil {
			s.logger.Error("failed to settle session after guard rejection", zap.Error(failErr))
		}
		s.saveAndPublish(ctx, session)
		if err != nil {
			return nil, err
		}
		return nil, refund.ErrRefundInProgress
	}

	// Interac refunds park for the card reader first. Once the reader has
	// already moved the money, a resubmission is only the pending backend
	// notification, dispatched directly.
	if session.Method == refund.MethodCardPresentInterac && !session.ClientRefundCompleted() {
		if err := session.AwaitClientConfirmation(); err != nil {
			s.releaseGuard(ctx, session)
			return nil, err
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			s.releaseGuard(ctx, session)
			return nil, err
		}
		return &SubmitResponse{
			SessionID:                  session.GetID(),
			OrderID:                    session.Order.ID,
			Amount:                     session.RefundTotalMoney().Format(session.CurrencyDecimals),
			AwaitingClientConfirmation: true,
		}, nil
	}

	return s.dispatch(ctx, session, session.ClientRefundCompleted())
}

// ConfirmClientRefund completes an Interac submission after the card
// reader reported success on the client side. The store call here is a
// completion notification; its failure settles the session back to idle
// with the client-completed fact kept, so resubmitting retries only the
// notification and never touches the card again.
func (s *Service) ConfirmClientRefund(ctx context.Context, sessionID uuid.UUID) (*SubmitResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.ResumeFromClientConfirmation(); err != nil {
		return nil, err
	}

	response, err := s.dispatch(ctx, session, true)
	if err != nil {
		return nil, err
	}
	return response, nil
}

// CancelClientRefund abandons an Interac submission that was awaiting
// client confirmation, releasing the guard so a new attempt can start
func (s *Service) CancelClientRefund(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := session.CompleteFailure(shared.NewDomainError("CLIENT_REFUND_CANCELLED", "Client-side refund was cancelled")); err != nil {
		return err
	}
	s.releaseGuard(ctx, session)
	s.saveAndPublish(ctx, session)
	return nil
}

// dispatch performs the store call for a session in StateSubmitting and
// settles the session to idle either way. interacNotify marks the call as
// an Interac completion notification, whose failures map to a distinct
// error; the money has already moved, so the settled session keeps that
// fact and a resubmission retries only the notification.
func (s *Service) dispatch(ctx context.Context, session *refund.Session, interacNotify bool) (*SubmitResponse, error) {
	record, err := s.createRefund(ctx, session)
	if err != nil {
		cause := err
		if interacNotify {
			s.logger.Error("interac completion notification failed",
				zap.Int64("order_id", session.Order.ID),
				zap.Error(err))
			cause = refund.ErrInteracNotifyFailed
		}

		if failErr := session.CompleteFailure(cause); failErr != nil {
			s.logger.Error("failed to settle session after store rejection", zap.Error(failErr))
		}
		s.releaseGuard(ctx, session)
		s.saveAndPublish(ctx, session)
		return nil, cause
	}

	s.addOrderNote(ctx, session)

	if err := session.CompleteSuccess(record); err != nil {
		s.logger.Error("failed to settle session after success", zap.Error(err))
	}
	s.releaseGuard(ctx, session)
	s.saveAndPublish(ctx, session)

	response := &SubmitResponse{
		SessionID: session.GetID(),
		OrderID:   session.Order.ID,
		Amount:    session.RefundTotalMoney().Format(session.CurrencyDecimals),
	}
	if record != nil {
		response.RefundID = record.ID
	}
	return response, nil
}

func (s *Service) createRefund(ctx context.Context, session *refund.Session) (*refund.Record, error) {
	autoRefund := session.Method != refund.MethodManualOffline

	if session.Mode() == refund.ModeAmount {
		return s.store.CreateAmountRefund(ctx, refund.AmountRequest{
			OrderID:                session.Order.ID,
			Amount:                 session.RefundTotal(),
			Reason:                 session.Reason(),
			AutomaticGatewayRefund: autoRefund,
		})
	}
	return s.store.CreateItemsRefund(ctx, refund.ItemsRequest{
		OrderID:                session.Order.ID,
		Amount:                 session.RefundTotal(),
		Reason:                 session.Reason(),
		AutomaticGatewayRefund: autoRefund,
		Lines:                  session.ItemsPayload(),
	})
}

// addOrderNote attaches a staff-visible note about the refund. Best
// effort: the refund has already been accepted, so a note failure is
// logged and never surfaced.
func (s *Service) addOrderNote(ctx context.Context, session *refund.Session) {
	total := session.RefundTotalMoney()
	note := fmt.Sprintf("Refund of %s %s issued.", total.Format(session.CurrencyDecimals), total.Currency())
	if reason := session.Reason(); reason != "" {
		note = fmt.Sprintf("%s Reason: %s", note, reason)
	}

	if err := s.store.AddOrderNote(ctx, session.Order.ID, note); err != nil {
		s.logger.Warn("failed to add refund note to order",
			zap.Int64("order_id", session.Order.ID),
			zap.Error(err))
	}
}

func (s *Service) guardKey(session *refund.Session) string {
	return fmt.Sprintf("refund:order:%d", session.Order.ID)
}

func (s *Service) releaseGuard(ctx context.Context, session *refund.Session) {
	if err := s.guard.Release(ctx, s.guardKey(session)); err != nil {
		s.logger.Warn("failed to release submission guard",
			zap.Int64("order_id", session.Order.ID),
			zap.Error(err))
	}
}

func (s *Service) saveAndPublish(ctx context.Context, session *refund.Session) {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("failed to save refund session",
			zap.String("session_id", session.GetID().String()),
			zap.Error(err))
	}
	s.publishEvents(ctx, session)
}

func (s *Service) publishEvents(ctx context.Context, session *refund.Session) {
	if s.publisher == nil {
		session.ClearDomainEvents()
		return
	}
	for _, event := range session.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	session.ClearDomainEvents()
}
