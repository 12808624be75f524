package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/pkg/trm"
)

type OrderRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	// UpdateOrder is a compare-and-set on the order version; a stale version
	// returns entities.ErrConflict.
	UpdateOrder(ctx context.Context, o entities.Order) error
	AppendTracking(ctx context.Context, orderID string, ev entities.TrackingEvent) error
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) (entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (entities.User, error)
}

type Outbox interface {
	EnqueueNotification(ctx context.Context, n entities.Notification) error
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Remove(key string)
}

type orderService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      OrderRepo
	users     UserDirectory
	outbox    Outbox
	cache     Cache
	now       func() time.Time
}

func NewOrderService(logger *slog.Logger, txManager trm.Manager, repo OrderRepo, users UserDirectory, outbox Outbox, cache Cache) *orderService {
	return &orderService{
		logger:    logger.With(slog.String("service", "order")),
		txManager: txManager,
		repo:      repo,
		users:     users,
		outbox:    outbox,
		cache:     cache,
		now:       time.Now,
	}
}

// UpdateStatus moves an order along the lifecycle graph. The status write and
// the tracking-history append commit together; the notification goes through
// the outbox in the same transaction.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status entities.OrderStatus, location string) (entities.Order, error) {
	if !status.Valid() {
		return entities.Order{}, fmt.Errorf("unknown status %q: %w", status, entities.ErrValidation)
	}
	// Cancelled has its own operation, Returned is reachable only through the
	// return workflow.
	if status == entities.OrderCancelled || status == entities.OrderReturned {
		return entities.Order{}, fmt.Errorf("status %q cannot be set directly: %w", status, entities.ErrInvalidTransition)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	if order.Status == status {
		return entities.Order{}, fmt.Errorf("order already %s: %w", status, entities.ErrInvalidTransition)
	}
	if !order.Status.CanTransition(status) {
		return entities.Order{}, fmt.Errorf("cannot move order from %s to %s: %w", order.Status, status, entities.ErrInvalidTransition)
	}

	now := s.now()
	if location == "" {
		location = entities.DefaultLocation
	}

	if status == entities.OrderShipped && order.ShippedAt == nil {
		order.ShippedAt = &now
		estimated := now.Add(entities.DeliveryEstimate)
		order.EstimatedDeliveryDate = &estimated
	}
	if status == entities.OrderDelivered && order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}

	order.Status = status
	order.CurrentLocation = location

	event := entities.TrackingEvent{Status: status, Location: location, Timestamp: now}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.repo.AppendTracking(ctx, order.ID, event); err != nil {
			return err
		}
		s.notifyOrderUpdated(ctx, order, string(status))
		return nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cache.Remove(order.ID)
	order.Version++
	order.TrackingHistory = append(order.TrackingHistory, event)
	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID), slog.String("status", string(status)))
	return order, nil
}

// Cancel moves an order to Cancelled. A refund, if one is due, is a separate
// admin-initiated step guarded by the order's refund status.
func (s *orderService) Cancel(ctx context.Context, orderID string) (entities.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	if order.Status == entities.OrderCancelled {
		return entities.Order{}, fmt.Errorf("order already cancelled: %w", entities.ErrInvalidTransition)
	}
	if !order.Status.CanTransition(entities.OrderCancelled) {
		return entities.Order{}, fmt.Errorf("order cannot be cancelled after it has been %s: %w", order.Status, entities.ErrInvalidTransition)
	}

	now := s.now()
	order.Status = entities.OrderCancelled
	order.CancelledAt = &now

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		s.notifyOrderUpdated(ctx, order, string(entities.OrderCancelled))
		return nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cache.Remove(order.ID)
	order.Version++
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", order.ID))
	return order, nil
}

// AssignDeliveryAgent attaches an active delivery agent to an order. A repeat
// assignment of the same agent is reported as a conflict, not swallowed.
func (s *orderService) AssignDeliveryAgent(ctx context.Context, orderID, agentID string) (entities.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	if order.Status == entities.OrderDelivered || order.Status == entities.OrderCancelled {
		return entities.Order{}, fmt.Errorf("order is already %s: %w", order.Status, entities.ErrInvalidTransition)
	}

	agent, err := s.users.GetUserByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return entities.Order{}, entities.ErrAgentNotFound
		}
		return entities.Order{}, err
	}
	if agent.Role != entities.RoleDelivery {
		return entities.Order{}, fmt.Errorf("user %s is not a delivery agent: %w", agentID, entities.ErrAgentNotFound)
	}
	if agent.Status != entities.UserActive {
		return entities.Order{}, fmt.Errorf("delivery agent is not active: %w", entities.ErrValidation)
	}
	if order.DeliveryAgentID != nil && *order.DeliveryAgentID == agentID {
		return entities.Order{}, fmt.Errorf("delivery agent already assigned to this order: %w", entities.ErrConflict)
	}

	order.DeliveryAgentID = &agentID
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return entities.Order{}, err
	}

	s.cache.Remove(order.ID)
	order.Version++
	s.logger.InfoContext(ctx, "delivery agent assigned",
		slog.String("order_id", order.ID), slog.String("agent_id", agentID))
	return order, nil
}

func (s *orderService) AddDeliveryNotes(ctx context.Context, orderID, notes string) (entities.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	order.DeliveryNotes = notes
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return entities.Order{}, err
	}

	s.cache.Remove(order.ID)
	order.Version++
	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderID); ok {
		var order entities.Order
		if err := json.Unmarshal(data, &order); err == nil {
			return order, nil
		}
		s.cache.Remove(orderID)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	if data, err := json.Marshal(order); err == nil {
		s.cache.Set(orderID, data)
	}
	return order, nil
}

// notifyOrderUpdated appends an outbox row for registered users. Guest orders
// are skipped; enqueue failures are logged and never fail the transition.
func (s *orderService) notifyOrderUpdated(ctx context.Context, order entities.Order, status string) {
	if order.UserID == nil {
		return
	}
	err := s.outbox.EnqueueNotification(ctx, entities.Notification{
		UserID:  *order.UserID,
		Type:    entities.NotificationTypeOrder,
		Title:   "Order Updated",
		Message: fmt.Sprintf("Your order #%s status has been updated to %q.", order.OrderUID, status),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue notification",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}
}
