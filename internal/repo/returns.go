package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shoply/fulfillment-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var returnOrderColumns = []string{
	"id", "order_id", "user_id", "reason", "comment", "image_url",
	"pickup_agent_id", "refund_amount", "status", "refund_status",
	"refund_id", "refund_failure_reason",
	"pickup_full_name", "pickup_phone_number", "pickup_address_line",
	"pickup_city", "pickup_state", "pickup_postal_code", "pickup_country",
	"requested_at", "approved_at", "rejected_at", "picked_at", "refunded_at", "cancelled_at",
	"version",
}

func (r *postgresRepo) GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error) {
	query, args := r.qb.Select(returnOrderColumns...).
		From("return_orders").
		Where(sq.Eq{"id": returnOrderID}).
		MustSql()

	var ro ReturnOrder
	err := r.getContext(ctx, &ro, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ReturnOrder{}, entities.ErrReturnOrderNotFound
	}
	if err != nil {
		return entities.ReturnOrder{}, fmt.Errorf("failed to get return order: %w", err)
	}

	query, args = r.qb.Select(
		"id", "return_order_id", "product_id", "name", "category", "image",
		"price", "original_price", "quantity").
		From("return_order_items").
		Where(sq.Eq{"return_order_id": ro.ID}).
		OrderBy("id").
		MustSql()

	var items []ReturnOrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.ReturnOrder{}, fmt.Errorf("failed to get return order items: %w", err)
	}

	return ReturnOrderToEntity(ro, items), nil
}

func (r *postgresRepo) SaveReturnOrder(ctx context.Context, ro entities.ReturnOrder) error {
	query, args := r.qb.Insert("return_orders").
		Columns(
			"id", "order_id", "user_id", "reason", "comment", "image_url",
			"refund_amount", "status", "refund_status",
			"pickup_full_name", "pickup_phone_number", "pickup_address_line",
			"pickup_city", "pickup_state", "pickup_postal_code", "pickup_country",
			"requested_at",
		).
		Values(
			ro.ID, ro.OrderID, nullStringPtr(ro.UserID), ro.Reason, ro.Comment, nullString(ro.ImageURL),
			ro.RefundAmount, string(ro.Status), string(ro.RefundStatus),
			nullString(ro.PickupAddress.FullName), nullString(ro.PickupAddress.PhoneNumber),
			nullString(ro.PickupAddress.AddressLine), nullString(ro.PickupAddress.City),
			nullString(ro.PickupAddress.State), nullString(ro.PickupAddress.PostalCode),
			nullString(ro.PickupAddress.Country),
			ro.RequestedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save return order: %w", err)
	}

	if len(ro.Items) == 0 {
		return nil
	}

	q := r.qb.Insert("return_order_items").
		Columns("return_order_id", "product_id", "name", "category", "image",
			"price", "original_price", "quantity")
	for _, it := range ro.Items {
		q = q.Values(
			ro.ID, it.ProductID, it.Name, nullString(it.Category), nullString(it.Image),
			it.Price, it.OriginalPrice, it.Quantity,
		)
	}

	query, args = q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save return order items: %w", err)
	}
	return nil
}

// UpdateReturnOrder writes back mutable fields with a compare-and-set on
// version, like UpdateOrder.
func (r *postgresRepo) UpdateReturnOrder(ctx context.Context, ro entities.ReturnOrder) error {
	query, args := r.qb.Update("return_orders").
		Set("status", string(ro.Status)).
		Set("refund_status", string(ro.RefundStatus)).
		Set("refund_id", nullString(ro.RefundID)).
		Set("refund_amount", ro.RefundAmount).
		Set("refund_failure_reason", nullString(ro.RefundFailureReason)).
		Set("pickup_agent_id", nullStringPtr(ro.PickupAgentID)).
		Set("approved_at", nullTime(ro.ApprovedAt)).
		Set("rejected_at", nullTime(ro.RejectedAt)).
		Set("picked_at", nullTime(ro.PickedAt)).
		Set("refunded_at", nullTime(ro.RefundedAt)).
		Set("cancelled_at", nullTime(ro.CancelledAt)).
		Set("version", ro.Version+1).
		Where(sq.Eq{"id": ro.ID, "version": ro.Version}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update return order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update return order: %w", err)
	}
	if rows == 0 {
		return r.returnOrderMissingOrStale(ctx, ro.ID)
	}
	return nil
}

func (r *postgresRepo) returnOrderMissingOrStale(ctx context.Context, returnOrderID string) error {
	query, args := r.qb.Select("1").From("return_orders").Where(sq.Eq{"id": returnOrderID}).MustSql()

	var one int
	err := r.getContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ErrReturnOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check return order: %w", err)
	}
	return entities.ErrConflict
}
