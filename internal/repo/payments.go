package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

func (r *postgresRepo) GetPaymentByOrderID(ctx context.Context, orderID string) (entities.Payment, error) {
	query, args := r.qb.Select(
		"id", "order_id", "user_id", "guest_id", "email", "amount",
		"payment_status", "payment_method", "gateway", "session_id", "receipt_url",
		"refunded_amount", "refund_id", "refund_time", "return_order_id",
		"payment_time", "created_at").
		From("payments").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var p Payment
	err := r.getContext(ctx, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return PaymentToEntity(p), nil
}

// SavePayment is idempotent on the unique order reference: at most one
// payment row per order no matter how many times the completion event lands.
func (r *postgresRepo) SavePayment(ctx context.Context, p entities.Payment) error {
	query, args := r.qb.Insert("payments").
		Columns(
			"id", "order_id", "user_id", "guest_id", "email", "amount",
			"payment_status", "payment_method", "gateway", "session_id",
			"receipt_url", "payment_time",
		).
		Values(
			p.ID, p.OrderID, nullStringPtr(p.UserID), nullString(p.GuestID), p.Email, p.Amount,
			string(p.PaymentStatus), nullString(p.PaymentMethod), nullString(p.Gateway), p.SessionID,
			nullString(p.ReceiptURL), p.PaymentTime,
		).
		Suffix("ON CONFLICT (order_id) DO NOTHING").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// MarkPaymentRefunded is guarded on payment_status so a redelivered refund
// event cannot double-count the refunded amount.
func (r *postgresRepo) MarkPaymentRefunded(ctx context.Context, orderID, refundID string, amount int64, returnOrderID *string, at time.Time) error {
	query, args := r.qb.Update("payments").
		Set("payment_status", string(entities.PaymentRefunded)).
		Set("refund_id", nullString(refundID)).
		Set("refunded_amount", amount).
		Set("return_order_id", nullStringPtr(returnOrderID)).
		Set("refund_time", at).
		Where(sq.Eq{"order_id": orderID}).
		Where(sq.NotEq{"payment_status": string(entities.PaymentRefunded)}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	if rows == 0 {
		return entities.ErrPaymentNotFound
	}
	return nil
}
