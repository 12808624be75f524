package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/pkg/trm"

	"github.com/google/uuid"
)

type ReturnRepo interface {
	GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error)
	SaveReturnOrder(ctx context.Context, ro entities.ReturnOrder) error
	UpdateReturnOrder(ctx context.Context, ro entities.ReturnOrder) error

	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	UpdateOrder(ctx context.Context, o entities.Order) error
	SetItemReturnedQuantity(ctx context.Context, orderID, productID string, returned int) error
}

type ReturnRequestItem struct {
	ProductID string
	Quantity  int
}

type ReturnRequest struct {
	OrderID  string
	Reason   string
	Comment  string
	ImageURL string
	Items    []ReturnRequestItem
}

type returnService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      ReturnRepo
	users     UserDirectory
	outbox    Outbox
	cache     Cache
	now       func() time.Time
}

func NewReturnService(logger *slog.Logger, txManager trm.Manager, repo ReturnRepo, users UserDirectory, outbox Outbox, cache Cache) *returnService {
	return &returnService{
		logger:    logger.With(slog.String("service", "returns")),
		txManager: txManager,
		repo:      repo,
		users:     users,
		outbox:    outbox,
		cache:     cache,
		now:       time.Now,
	}
}

// RequestReturn opens a return for a subset of an order's items. The new
// return order and the incremented returned quantities on the parent order
// commit in one transaction; the CAS on the order version means two
// concurrent requests cannot both claim the same remaining quantity.
func (s *returnService) RequestReturn(ctx context.Context, req ReturnRequest) (entities.ReturnOrder, error) {
	if req.Reason == "" || req.Comment == "" || len(req.Items) == 0 {
		return entities.ReturnOrder{}, fmt.Errorf("reason, comment and items are required: %w", entities.ErrValidation)
	}

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	now := s.now()
	if order.DeliveredAt == nil {
		return entities.ReturnOrder{}, fmt.Errorf("order has not been delivered: %w", entities.ErrReturnWindowExpired)
	}
	if !order.ReturnWindowOpen(now) {
		return entities.ReturnOrder{}, entities.ErrReturnWindowExpired
	}

	var (
		returnItems  []entities.ReturnItem
		refundAmount int64
	)
	for _, reqItem := range req.Items {
		line, ok := order.Item(reqItem.ProductID)
		if !ok {
			return entities.ReturnOrder{}, fmt.Errorf("product %s is not part of this order: %w", reqItem.ProductID, entities.ErrValidation)
		}

		if reqItem.Quantity > line.Returnable() {
			return entities.ReturnOrder{}, fmt.Errorf(
				"cannot return more than remaining quantity for %s (already returned: %d): %w",
				line.Name, line.ReturnedQuantity, entities.ErrValidation)
		}
		if reqItem.Quantity <= 0 || line.Returnable() <= 0 {
			continue
		}

		returnItems = append(returnItems, entities.ReturnItem{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Category:      line.Category,
			Image:         line.Image,
			Price:         line.Price,
			OriginalPrice: line.OriginalPrice,
			Quantity:      reqItem.Quantity,
		})
		refundAmount += line.Price * int64(reqItem.Quantity)
		line.ReturnedQuantity += reqItem.Quantity
	}

	if len(returnItems) == 0 {
		return entities.ReturnOrder{}, fmt.Errorf("all selected products have already been fully returned: %w", entities.ErrValidation)
	}

	ro := entities.ReturnOrder{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		UserID:        order.UserID,
		Reason:        req.Reason,
		Comment:       req.Comment,
		ImageURL:      req.ImageURL,
		Items:         returnItems,
		PickupAddress: order.ShippingAddress,
		RefundAmount:  refundAmount,
		Status:        entities.ReturnRequested,
		RefundStatus:  entities.RefundPending,
		RequestedAt:   now,
		Version:       1,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		// The CAS bump is what serializes concurrent return requests on the
		// same order; the per-line quantity writes ride in its transaction.
		if err := s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		for _, it := range returnItems {
			line, _ := order.Item(it.ProductID)
			if err := s.repo.SetItemReturnedQuantity(ctx, order.ID, it.ProductID, line.ReturnedQuantity); err != nil {
				return err
			}
		}
		return s.repo.SaveReturnOrder(ctx, ro)
	})
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	s.cache.Remove(order.ID)
	s.logger.InfoContext(ctx, "return requested",
		slog.String("order_id", order.ID), slog.String("return_order_id", ro.ID))
	return ro, nil
}

func (s *returnService) CancelReturnRequest(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error) {
	ro, err := s.repo.GetReturnOrderByID(ctx, returnOrderID)
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	if ro.Status == entities.ReturnPicked || ro.Status == entities.ReturnRefunded {
		return entities.ReturnOrder{}, fmt.Errorf("return request cannot be cancelled after it has been picked or refunded: %w", entities.ErrInvalidTransition)
	}
	if ro.Status == entities.ReturnCancelled {
		return entities.ReturnOrder{}, fmt.Errorf("return request is already cancelled: %w", entities.ErrInvalidTransition)
	}

	now := s.now()
	ro.Status = entities.ReturnCancelled
	ro.CancelledAt = &now

	if err := s.repo.UpdateReturnOrder(ctx, ro); err != nil {
		return entities.ReturnOrder{}, err
	}

	ro.Version++
	s.logger.InfoContext(ctx, "return request cancelled", slog.String("return_order_id", ro.ID))
	return ro, nil
}

// UpdateReturnStatus applies an admin decision to a return request. Picked
// and Refunded also force the parent order to Returned, in the same
// transaction.
func (s *returnService) UpdateReturnStatus(ctx context.Context, returnOrderID string, status entities.ReturnStatus) (entities.ReturnOrder, error) {
	if !status.Valid() || status == entities.ReturnRequested {
		return entities.ReturnOrder{}, fmt.Errorf("invalid status %q: %w", status, entities.ErrValidation)
	}

	ro, err := s.repo.GetReturnOrderByID(ctx, returnOrderID)
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	if !ro.Status.CanTransition(status) {
		return entities.ReturnOrder{}, fmt.Errorf("cannot move return from %s to %s: %w", ro.Status, status, entities.ErrInvalidTransition)
	}

	now := s.now()
	ro.Status = status
	switch status {
	case entities.ReturnApproved:
		ro.ApprovedAt = &now
	case entities.ReturnRejected:
		ro.RejectedAt = &now
	case entities.ReturnPicked:
		ro.PickedAt = &now
	case entities.ReturnRefunded:
		ro.RefundedAt = &now
	case entities.ReturnCancelled:
		ro.CancelledAt = &now
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateReturnOrder(ctx, ro); err != nil {
			return err
		}
		if status.ForcesOrderReturned() {
			return s.markOrderReturned(ctx, ro.OrderID)
		}
		return nil
	})
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	s.cache.Remove(ro.OrderID)
	ro.Version++
	s.logger.InfoContext(ctx, "return status updated",
		slog.String("return_order_id", ro.ID), slog.String("status", string(status)))
	return ro, nil
}

// AssignPickupAgent is only legal for approved returns.
func (s *returnService) AssignPickupAgent(ctx context.Context, returnOrderID, agentID string) (entities.ReturnOrder, error) {
	ro, err := s.repo.GetReturnOrderByID(ctx, returnOrderID)
	if err != nil {
		return entities.ReturnOrder{}, err
	}

	if ro.Status != entities.ReturnApproved {
		return entities.ReturnOrder{}, fmt.Errorf("return request is not approved: %w", entities.ErrInvalidTransition)
	}

	agent, err := s.users.GetUserByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return entities.ReturnOrder{}, entities.ErrAgentNotFound
		}
		return entities.ReturnOrder{}, err
	}
	if agent.Role != entities.RoleDelivery {
		return entities.ReturnOrder{}, fmt.Errorf("user %s is not a delivery agent: %w", agentID, entities.ErrAgentNotFound)
	}
	if agent.Status != entities.UserActive {
		return entities.ReturnOrder{}, fmt.Errorf("pickup agent is not active: %w", entities.ErrValidation)
	}
	if ro.PickupAgentID != nil && *ro.PickupAgentID == agentID {
		return entities.ReturnOrder{}, fmt.Errorf("pickup agent already assigned to this return: %w", entities.ErrConflict)
	}

	ro.PickupAgentID = &agentID
	if err := s.repo.UpdateReturnOrder(ctx, ro); err != nil {
		return entities.ReturnOrder{}, err
	}

	ro.Version++
	s.logger.InfoContext(ctx, "pickup agent assigned",
		slog.String("return_order_id", ro.ID), slog.String("agent_id", agentID))
	return ro, nil
}

func (s *returnService) GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error) {
	return s.repo.GetReturnOrderByID(ctx, returnOrderID)
}

func (s *returnService) markOrderReturned(ctx context.Context, orderID string) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == entities.OrderReturned {
		return nil
	}
	order.Status = entities.OrderReturned
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return err
	}
	s.notifyReturned(ctx, order)
	return nil
}

func (s *returnService) notifyReturned(ctx context.Context, order entities.Order) {
	if order.UserID == nil {
		return
	}
	err := s.outbox.EnqueueNotification(ctx, entities.Notification{
		UserID:  *order.UserID,
		Type:    entities.NotificationTypeOrder,
		Title:   "Order Updated",
		Message: fmt.Sprintf("Your order #%s status has been updated to %q.", order.OrderUID, entities.OrderReturned),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue notification",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}
}
