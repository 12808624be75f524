package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/pkg/trm"
	"github.com/shoply/fulfillment-service/pkg/utils"

	"github.com/google/uuid"
)

type ReconcilerRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error)
	SaveOrder(ctx context.Context, o entities.Order) (bool, error)
	UpdateOrder(ctx context.Context, o entities.Order) error
	AppendTracking(ctx context.Context, orderID string, ev entities.TrackingEvent) error

	GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error)
	UpdateReturnOrder(ctx context.Context, ro entities.ReturnOrder) error

	SavePayment(ctx context.Context, p entities.Payment) error
	MarkPaymentRefunded(ctx context.Context, orderID, refundID string, amount int64, returnOrderID *string, at time.Time) error
}

type Gateway interface {
	RetrieveSession(ctx context.Context, sessionID string) (gateway.Session, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount int64, metadata map[string]string) (gateway.Refund, error)
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (string, error)
}

// RefundEvent is a refund outcome reported by the gateway. Exactly one of
// ReturnOrderID / CancelOrderID routes it.
type RefundEvent struct {
	RefundID      string
	ReturnOrderID string
	CancelOrderID string
	Amount        int64
	FailureReason string
}

// RefundTarget addresses InitiateRefund at either a return request or a
// cancelled order.
type RefundTarget struct {
	ReturnOrderID  string
	OrderID        string
	AmountOverride int64
}

// reconcilerService turns at-least-once gateway events into local state.
// Every entry point is idempotent on a natural key (session_id, refund
// status), never on a delivery-id cache, so redelivery after a crash is
// still safe.
type reconcilerService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      ReconcilerRepo
	users     UserDirectory
	gateway   Gateway
	outbox    Outbox
	cache     Cache
	now       func() time.Time
}

func NewReconcilerService(logger *slog.Logger, txManager trm.Manager, repo ReconcilerRepo, users UserDirectory, gw Gateway, outbox Outbox, cache Cache) *reconcilerService {
	return &reconcilerService{
		logger:    logger.With(slog.String("service", "reconciler")),
		txManager: txManager,
		repo:      repo,
		users:     users,
		gateway:   gw,
		outbox:    outbox,
		cache:     cache,
		now:       time.Now,
	}
}

var writeRetry = utils.RetryConfig{
	InitialDelay: 100 * time.Millisecond,
	MaxAttempts:  5,
	Multiplier:   2,
}

// OnCheckoutCompleted materializes an order and its payment from a completed
// checkout session. The unique session id short-circuits duplicates before
// any side effect; the idempotent inserts catch the remaining race.
func (s *reconcilerService) OnCheckoutCompleted(ctx context.Context, sessionID string) (string, error) {
	existing, err := s.repo.GetOrderBySessionID(ctx, sessionID)
	if err == nil {
		s.logger.InfoContext(ctx, "checkout event already processed", slog.String("session_id", sessionID))
		return existing.OrderUID, nil
	}
	if !errors.Is(err, entities.ErrOrderNotFound) {
		return "", err
	}

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	userID := s.resolveUser(ctx, sess)

	items := make([]entities.OrderItem, 0, len(sess.Items))
	for _, line := range sess.Items {
		price := line.Amount
		if line.Quantity > 0 {
			price = line.Amount / int64(line.Quantity)
		}
		items = append(items, entities.OrderItem{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Category:      line.Category,
			Image:         line.Image,
			Price:         price,
			OriginalPrice: line.OriginalPrice,
			Quantity:      line.Quantity,
		})
	}

	order := entities.Order{
		ID:              uuid.NewString(),
		OrderUID:        uuid.NewString(),
		SessionID:       sess.ID,
		UserID:          userID,
		GuestID:         sess.GuestID,
		Email:           sess.Email,
		Items:           items,
		ShippingAddress: sess.ShippingAddress,
		TotalAmount:     sess.AmountTotal,
		Status:          entities.OrderProcessing,
		CurrentLocation: entities.DefaultLocation,
		RefundStatus:    entities.RefundPending,
	}

	payment := entities.Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		UserID:        userID,
		GuestID:       sess.GuestID,
		Email:         sess.Email,
		Amount:        sess.AmountTotal,
		PaymentStatus: entities.PaymentPaid,
		PaymentMethod: sess.PaymentMethod,
		Gateway:       "stripe",
		SessionID:     sess.ID,
		ReceiptURL:    sess.ReceiptURL,
		PaymentTime:   sess.CreatedAt,
	}

	orderUID := order.OrderUID
	fn := func() error {
		return s.txManager.Do(ctx, func(ctx context.Context) error {
			inserted, err := s.repo.SaveOrder(ctx, order)
			if err != nil {
				return err
			}
			if !inserted {
				// Lost the race against a concurrent delivery of the same
				// session; the winner's order stands.
				winner, err := s.repo.GetOrderBySessionID(ctx, sessionID)
				if err != nil {
					return err
				}
				orderUID = winner.OrderUID
				return nil
			}
			if err := s.repo.SavePayment(ctx, payment); err != nil {
				return err
			}
			if err := s.repo.AppendTracking(ctx, order.ID, entities.TrackingEvent{
				Status:    entities.OrderProcessing,
				Location:  entities.DefaultLocation,
				Timestamp: s.now(),
			}); err != nil {
				return err
			}
			if userID != nil {
				s.notifyOrderPlaced(ctx, *userID, order.OrderUID)
			}
			return nil
		})
	}
	if err := utils.Retry(writeRetry, fn); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "order created from checkout",
		slog.String("session_id", sessionID), slog.String("order_uid", orderUID))
	return orderUID, nil
}

// OnRefundSucceeded records a confirmed refund. The refund-status guard makes
// redelivery a no-op, including the payment's refunded amount.
func (s *reconcilerService) OnRefundSucceeded(ctx context.Context, ev RefundEvent) error {
	switch {
	case ev.ReturnOrderID != "":
		return s.returnRefundSucceeded(ctx, ev)
	case ev.CancelOrderID != "":
		return s.cancelRefundSucceeded(ctx, ev)
	default:
		return fmt.Errorf("refund event carries no target: %w", entities.ErrValidation)
	}
}

func (s *reconcilerService) returnRefundSucceeded(ctx context.Context, ev RefundEvent) error {
	ro, err := s.repo.GetReturnOrderByID(ctx, ev.ReturnOrderID)
	if err != nil {
		return err
	}
	if ro.RefundStatus == entities.RefundSucceeded {
		s.logger.InfoContext(ctx, "refund already processed", slog.String("return_order_id", ro.ID))
		return nil
	}

	now := s.now()
	// The gateway is the source of truth here; the status is written
	// directly rather than routed through the admin transition table.
	ro.RefundStatus = entities.RefundSucceeded
	ro.Status = entities.ReturnRefunded
	ro.RefundID = ev.RefundID
	ro.RefundAmount = ev.Amount
	ro.RefundedAt = &now

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateReturnOrder(ctx, ro); err != nil {
			return err
		}
		order, err := s.repo.GetOrderByID(ctx, ro.OrderID)
		if err != nil {
			return err
		}
		if order.Status != entities.OrderReturned {
			order.Status = entities.OrderReturned
			if err := s.repo.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Remove(ro.OrderID)

	s.markPaymentRefunded(ctx, ro.OrderID, ev.RefundID, ev.Amount, &ro.ID, now)
	s.logger.InfoContext(ctx, "return refund succeeded",
		slog.String("return_order_id", ro.ID), slog.String("refund_id", ev.RefundID))
	return nil
}

func (s *reconcilerService) cancelRefundSucceeded(ctx context.Context, ev RefundEvent) error {
	order, err := s.repo.GetOrderByID(ctx, ev.CancelOrderID)
	if err != nil {
		return err
	}
	if order.RefundStatus == entities.RefundSucceeded {
		s.logger.InfoContext(ctx, "refund already processed", slog.String("order_id", order.ID))
		return nil
	}

	now := s.now()
	order.RefundStatus = entities.RefundSucceeded
	order.RefundID = ev.RefundID
	order.RefundAmount = ev.Amount
	order.RefundedAt = &now

	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return err
	}
	s.cache.Remove(order.ID)

	s.markPaymentRefunded(ctx, order.ID, ev.RefundID, ev.Amount, nil, now)
	s.logger.InfoContext(ctx, "cancellation refund succeeded",
		slog.String("order_id", order.ID), slog.String("refund_id", ev.RefundID))
	return nil
}

// markPaymentRefunded is best-effort: a missing or delayed payment row must
// not block refund reconciliation.
func (s *reconcilerService) markPaymentRefunded(ctx context.Context, orderID, refundID string, amount int64, returnOrderID *string, at time.Time) {
	err := s.repo.MarkPaymentRefunded(ctx, orderID, refundID, amount, returnOrderID, at)
	if err != nil && !errors.Is(err, entities.ErrPaymentNotFound) {
		s.logger.ErrorContext(ctx, "failed to mark payment refunded",
			slog.String("order_id", orderID), slog.Any("error", err))
	}
}

// OnRefundFailed records the failure reason. No prior state is reverted.
func (s *reconcilerService) OnRefundFailed(ctx context.Context, ev RefundEvent) error {
	switch {
	case ev.ReturnOrderID != "":
		ro, err := s.repo.GetReturnOrderByID(ctx, ev.ReturnOrderID)
		if err != nil {
			return err
		}
		ro.RefundStatus = entities.RefundFailed
		ro.RefundFailureReason = ev.FailureReason
		return s.repo.UpdateReturnOrder(ctx, ro)
	case ev.CancelOrderID != "":
		order, err := s.repo.GetOrderByID(ctx, ev.CancelOrderID)
		if err != nil {
			return err
		}
		order.RefundStatus = entities.RefundFailed
		order.RefundFailureReason = ev.FailureReason
		if err := s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		s.cache.Remove(order.ID)
		return nil
	default:
		return fmt.Errorf("refund event carries no target: %w", entities.ErrValidation)
	}
}

// InitiateRefund asks the gateway to refund a return request or a cancelled
// order. The refund-status guards stop double-initiation; a gateway failure
// leaves local state at its pre-call value so a retry is safe.
func (s *reconcilerService) InitiateRefund(ctx context.Context, target RefundTarget) (gateway.Refund, error) {
	switch {
	case target.ReturnOrderID != "":
		return s.initiateReturnRefund(ctx, target)
	case target.OrderID != "":
		return s.initiateCancelRefund(ctx, target)
	default:
		return gateway.Refund{}, fmt.Errorf("refund target is required: %w", entities.ErrValidation)
	}
}

func (s *reconcilerService) initiateReturnRefund(ctx context.Context, target RefundTarget) (gateway.Refund, error) {
	ro, err := s.repo.GetReturnOrderByID(ctx, target.ReturnOrderID)
	if err != nil {
		return gateway.Refund{}, err
	}
	if ro.RefundStatus == entities.RefundInitiated {
		return gateway.Refund{}, fmt.Errorf("refund already initiated: %w", entities.ErrInvalidTransition)
	}
	if ro.RefundStatus == entities.RefundSucceeded {
		return gateway.Refund{}, fmt.Errorf("refund already processed: %w", entities.ErrInvalidTransition)
	}

	order, err := s.repo.GetOrderByID(ctx, ro.OrderID)
	if err != nil {
		return gateway.Refund{}, err
	}

	amount := ro.RefundAmount
	if target.AmountOverride > 0 {
		amount = target.AmountOverride
	}

	refund, err := s.createRefund(ctx, order.SessionID, amount, map[string]string{gateway.MetaReturnOrderID: ro.ID})
	if err != nil {
		return gateway.Refund{}, err
	}

	ro.RefundStatus = entities.RefundInitiated
	ro.RefundID = refund.ID
	ro.RefundAmount = refund.Amount
	if err := s.repo.UpdateReturnOrder(ctx, ro); err != nil {
		return gateway.Refund{}, err
	}

	s.logger.InfoContext(ctx, "return refund initiated",
		slog.String("return_order_id", ro.ID), slog.String("refund_id", refund.ID))
	return refund, nil
}

func (s *reconcilerService) initiateCancelRefund(ctx context.Context, target RefundTarget) (gateway.Refund, error) {
	order, err := s.repo.GetOrderByID(ctx, target.OrderID)
	if err != nil {
		return gateway.Refund{}, err
	}
	if order.Status != entities.OrderCancelled {
		return gateway.Refund{}, fmt.Errorf("order is not cancelled: %w", entities.ErrInvalidTransition)
	}
	if order.RefundStatus == entities.RefundInitiated {
		return gateway.Refund{}, fmt.Errorf("refund already initiated: %w", entities.ErrInvalidTransition)
	}
	if order.RefundStatus == entities.RefundSucceeded {
		return gateway.Refund{}, fmt.Errorf("refund already processed: %w", entities.ErrInvalidTransition)
	}

	amount := order.TotalAmount
	if target.AmountOverride > 0 {
		amount = target.AmountOverride
	}

	refund, err := s.createRefund(ctx, order.SessionID, amount, map[string]string{gateway.MetaCancelOrderID: order.ID})
	if err != nil {
		return gateway.Refund{}, err
	}

	order.RefundStatus = entities.RefundInitiated
	order.RefundID = refund.ID
	order.RefundAmount = refund.Amount
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return gateway.Refund{}, err
	}
	s.cache.Remove(order.ID)

	s.logger.InfoContext(ctx, "cancellation refund initiated",
		slog.String("order_id", order.ID), slog.String("refund_id", refund.ID))
	return refund, nil
}

func (s *reconcilerService) createRefund(ctx context.Context, sessionID string, amount int64, metadata map[string]string) (gateway.Refund, error) {
	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return gateway.Refund{}, err
	}
	if sess.PaymentIntentID == "" {
		return gateway.Refund{}, fmt.Errorf("no payment intent found in session: %w", entities.ErrExternalService)
	}
	return s.gateway.CreateRefund(ctx, sess.PaymentIntentID, amount, metadata)
}

// CreateCheckoutSession is a pass-through to the gateway; the order itself is
// only created once the completion event arrives.
func (s *reconcilerService) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (string, error) {
	return s.gateway.CreateCheckoutSession(ctx, req)
}

// resolveUser maps the session's owner hints to a registered account: the
// explicit user id first, then the buyer email. Guests resolve to nil.
func (s *reconcilerService) resolveUser(ctx context.Context, sess gateway.Session) *string {
	if sess.UserID != "" {
		user, err := s.users.GetUserByID(ctx, sess.UserID)
		if err == nil {
			return &user.ID
		}
		s.logger.WarnContext(ctx, "session user not found, treating as guest",
			slog.String("session_id", sess.ID), slog.String("user_id", sess.UserID))
	}
	if sess.IsGuest || sess.Email == "" {
		return nil
	}
	user, err := s.users.GetUserByEmail(ctx, sess.Email)
	if err != nil {
		return nil
	}
	return &user.ID
}

func (s *reconcilerService) notifyOrderPlaced(ctx context.Context, userID, orderUID string) {
	err := s.outbox.EnqueueNotification(ctx, entities.Notification{
		UserID:  userID,
		Type:    entities.NotificationTypeOrder,
		Title:   "Order Placed",
		Message: fmt.Sprintf("Your order #%s has been placed successfully.", orderUID),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue notification", slog.Any("error", err))
	}
}
