package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shoply/fulfillment-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var orderColumns = []string{
	"id", "order_uid", "session_id", "user_id", "guest_id", "email",
	"total_amount", "status", "current_location", "estimated_delivery_date",
	"delivery_agent_id", "delivery_notes",
	"ship_full_name", "ship_phone_number", "ship_address_line", "ship_city",
	"ship_state", "ship_postal_code", "ship_country",
	"refund_status", "refund_id", "refund_amount", "refund_failure_reason",
	"shipped_at", "delivered_at", "cancelled_at", "refunded_at",
	"version", "created_at", "updated_at",
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return r.loadOrderParts(ctx, order)
}

// GetOrderBySessionID is the duplicate-delivery check for checkout events:
// session_id is unique, so an existing row means the event was already
// processed.
func (r *postgresRepo) GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"session_id": sessionID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order by session: %w", err)
	}

	return r.loadOrderParts(ctx, order)
}

func (r *postgresRepo) loadOrderParts(ctx context.Context, order Order) (entities.Order, error) {
	query, args := r.qb.Select(
		"id", "order_id", "product_id", "name", "category", "image",
		"price", "original_price", "quantity", "returned_quantity").
		From("order_items").
		Where(sq.Eq{"order_id": order.ID}).
		OrderBy("id").
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order items: %w", err)
	}

	query, args = r.qb.Select("id", "order_id", "status", "location", "created_at").
		From("order_tracking").
		Where(sq.Eq{"order_id": order.ID}).
		OrderBy("id").
		MustSql()

	var tracking []TrackingEvent
	if err := r.selectContext(ctx, &tracking, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order tracking: %w", err)
	}

	return OrderToEntity(order, items, tracking), nil
}

// SaveOrder inserts a new order with its items. The insert is keyed on the
// unique session_id, so a concurrent duplicate delivery collapses onto the
// constraint: the loser observes inserted=false and writes nothing else.
func (r *postgresRepo) SaveOrder(ctx context.Context, o entities.Order) (inserted bool, err error) {
	query, args := r.qb.Insert("orders").
		Columns(
			"id", "order_uid", "session_id", "user_id", "guest_id", "email",
			"total_amount", "status", "current_location",
			"ship_full_name", "ship_phone_number", "ship_address_line", "ship_city",
			"ship_state", "ship_postal_code", "ship_country",
		).
		Values(
			o.ID, o.OrderUID, o.SessionID, nullStringPtr(o.UserID), nullString(o.GuestID), o.Email,
			o.TotalAmount, string(o.Status), nullString(o.CurrentLocation),
			nullString(o.ShippingAddress.FullName), nullString(o.ShippingAddress.PhoneNumber),
			nullString(o.ShippingAddress.AddressLine), nullString(o.ShippingAddress.City),
			nullString(o.ShippingAddress.State), nullString(o.ShippingAddress.PostalCode),
			nullString(o.ShippingAddress.Country),
		).
		Suffix("ON CONFLICT (session_id) DO NOTHING").
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to save order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save order: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := r.saveOrderItems(ctx, o.ID, o.Items); err != nil {
		return false, err
	}
	return true, nil
}

func (r *postgresRepo) saveOrderItems(ctx context.Context, orderID string, items []entities.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").
		Columns("order_id", "product_id", "name", "category", "image",
			"price", "original_price", "quantity", "returned_quantity")

	for _, it := range items {
		q = q.Values(
			orderID, it.ProductID, it.Name, nullString(it.Category), nullString(it.Image),
			it.Price, it.OriginalPrice, it.Quantity, it.ReturnedQuantity,
		)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order items: %w", err)
	}
	return nil
}

// UpdateOrder writes back the mutable order fields with a compare-and-set on
// version. A stale version loses the race and gets ErrConflict.
func (r *postgresRepo) UpdateOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Update("orders").
		Set("status", string(o.Status)).
		Set("current_location", nullString(o.CurrentLocation)).
		Set("estimated_delivery_date", nullTime(o.EstimatedDeliveryDate)).
		Set("delivery_agent_id", nullStringPtr(o.DeliveryAgentID)).
		Set("delivery_notes", nullString(o.DeliveryNotes)).
		Set("refund_status", string(o.RefundStatus)).
		Set("refund_id", nullString(o.RefundID)).
		Set("refund_amount", o.RefundAmount).
		Set("refund_failure_reason", nullString(o.RefundFailureReason)).
		Set("shipped_at", nullTime(o.ShippedAt)).
		Set("delivered_at", nullTime(o.DeliveredAt)).
		Set("cancelled_at", nullTime(o.CancelledAt)).
		Set("refunded_at", nullTime(o.RefundedAt)).
		Set("version", o.Version+1).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": o.ID, "version": o.Version}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if rows == 0 {
		return r.orderMissingOrStale(ctx, o.ID)
	}
	return nil
}

func (r *postgresRepo) orderMissingOrStale(ctx context.Context, orderID string) error {
	query, args := r.qb.Select("1").From("orders").Where(sq.Eq{"id": orderID}).MustSql()

	var one int
	err := r.getContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	return entities.ErrConflict
}

// AppendTracking adds one history entry. The table is append-only.
func (r *postgresRepo) AppendTracking(ctx context.Context, orderID string, ev entities.TrackingEvent) error {
	query, args := r.qb.Insert("order_tracking").
		Columns("order_id", "status", "location", "created_at").
		Values(orderID, string(ev.Status), ev.Location, ev.Timestamp).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to append tracking: %w", err)
	}
	return nil
}

func (r *postgresRepo) SetItemReturnedQuantity(ctx context.Context, orderID, productID string, returned int) error {
	query, args := r.qb.Update("order_items").
		Set("returned_quantity", returned).
		Where(sq.Eq{"order_id": orderID, "product_id": productID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update returned quantity: %w", err)
	}
	return nil
}
