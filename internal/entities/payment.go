package entities

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Payment records one charge, linked 1:1 to an order. The unique order
// reference is what makes duplicate checkout-completed deliveries collapse
// onto a single row.
type Payment struct {
	ID      string
	OrderID string
	UserID  *string
	GuestID string
	Email   string

	Amount        int64
	PaymentStatus PaymentStatus
	PaymentMethod string
	Gateway       string
	SessionID     string
	ReceiptURL    string

	RefundedAmount int64
	RefundID       string
	RefundTime     *time.Time
	ReturnOrderID  *string

	PaymentTime time.Time
	CreatedAt   time.Time
}
