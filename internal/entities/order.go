package entities

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderReturned   OrderStatus = "Returned"
	OrderCancelled  OrderStatus = "Cancelled"
)

// orderEdges enumerates every legal status transition. Cancelled is reachable
// only from Pending/Processing, Returned only from Delivered (via the return
// workflow, never through UpdateStatus).
var orderEdges = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderReturned},
	OrderReturned:   nil,
	OrderCancelled:  nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderEdges[s]
	return ok
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return len(orderEdges[s]) == 0
}

type Address struct {
	FullName    string
	PhoneNumber string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
}

type OrderItem struct {
	ProductID        string
	Name             string
	Category         string
	Image            string
	Price            int64
	OriginalPrice    int64
	Quantity         int
	ReturnedQuantity int
}

// Returnable is how many units of the line can still be returned.
func (i OrderItem) Returnable() int {
	return i.Quantity - i.ReturnedQuantity
}

type TrackingEvent struct {
	Status    OrderStatus
	Location  string
	Timestamp time.Time
}

const (
	// ReturnWindow is measured from DeliveredAt.
	ReturnWindow = 24 * time.Hour

	// DeliveryEstimate is added to the ship time to compute the
	// estimated delivery date.
	DeliveryEstimate = 5 * 24 * time.Hour

	DefaultLocation = "Warehouse"
)

type Order struct {
	ID       string
	OrderUID string
	// SessionID is the checkout session identifier and the idempotency key
	// for order creation: at most one order per session, enforced by a
	// unique constraint.
	SessionID string
	UserID    *string
	GuestID   string
	Email     string

	Items           []OrderItem
	ShippingAddress Address
	TotalAmount     int64

	Status                OrderStatus
	CurrentLocation       string
	EstimatedDeliveryDate *time.Time
	TrackingHistory       []TrackingEvent

	DeliveryAgentID *string
	DeliveryNotes   string

	// Refund tracking for cancelled orders. Return-triggered refunds live on
	// the ReturnOrder instead.
	RefundStatus        RefundStatus
	RefundID            string
	RefundAmount        int64
	RefundFailureReason string

	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time

	// Version guards concurrent writes: updates are compare-and-set on it.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReturnWindowOpen reports whether a return may still be requested at now.
func (o *Order) ReturnWindowOpen(now time.Time) bool {
	if o.DeliveredAt == nil {
		return false
	}
	return now.Sub(*o.DeliveredAt) <= ReturnWindow
}

// Item finds the order line for productID.
func (o *Order) Item(productID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i], true
		}
	}
	return nil, false
}
