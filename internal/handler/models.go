package handler

import (
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/internal/service"
)

// Order is the API view of an order.
type Order struct {
	ID        string  `json:"id"`
	OrderUID  string  `json:"order_uid"`
	SessionID string  `json:"session_id,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
	GuestID   string  `json:"guest_id,omitempty"`
	Email     string  `json:"email,omitempty"`

	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shipping_address"`
	TotalAmount     int64       `json:"total_amount"`

	Status                string          `json:"status"`
	CurrentLocation       string          `json:"current_location,omitempty"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	TrackingHistory       []TrackingEvent `json:"tracking_history,omitempty"`

	DeliveryAgentID *string `json:"delivery_agent_id,omitempty"`
	DeliveryNotes   string  `json:"delivery_notes,omitempty"`

	RefundStatus        string `json:"refund_status,omitempty"`
	RefundID            string `json:"refund_id,omitempty"`
	RefundAmount        int64  `json:"refund_amount,omitempty"`
	RefundFailureReason string `json:"refund_failure_reason,omitempty"`

	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address is a shipping or pickup address.
type Address struct {
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required"`
}

type OrderItem struct {
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	Category         string `json:"category,omitempty"`
	Image            string `json:"image,omitempty"`
	Price            int64  `json:"price"`
	OriginalPrice    int64  `json:"original_price,omitempty"`
	Quantity         int    `json:"quantity"`
	ReturnedQuantity int    `json:"returned_quantity,omitempty"`
}

type TrackingEvent struct {
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// ReturnOrder is the API view of a return request.
type ReturnOrder struct {
	ID      string  `json:"id"`
	OrderID string  `json:"order_id"`
	UserID  *string `json:"user_id,omitempty"`

	Reason   string `json:"reason"`
	Comment  string `json:"comment,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	Items         []ReturnItem `json:"items"`
	PickupAddress Address      `json:"pickup_address"`
	PickupAgentID *string      `json:"pickup_agent_id,omitempty"`

	Status       string `json:"status"`
	RefundStatus string `json:"refund_status"`

	RefundID            string `json:"refund_id,omitempty"`
	RefundAmount        int64  `json:"refund_amount"`
	RefundFailureReason string `json:"refund_failure_reason,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	PickedAt    *time.Time `json:"picked_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type ReturnItem struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	Image         string `json:"image,omitempty"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"original_price,omitempty"`
	Quantity      int    `json:"quantity"`
}

type UpdateOrderStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Location string `json:"location,omitempty"`
}

type UpdateReturnStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AssignAgentRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
}

type DeliveryNotesRequest struct {
	Notes string `json:"notes" validate:"required"`
}

type CreateReturnRequest struct {
	Reason   string             `json:"reason" validate:"required"`
	Comment  string             `json:"comment" validate:"required"`
	ImageURL string             `json:"image_url,omitempty" validate:"omitempty,url"`
	Items    []CreateReturnItem `json:"items" validate:"required,min=1,dive"`
}

type CreateReturnItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateRefundRequest addresses a refund at either a return request or a
// cancelled order, never both.
type CreateRefundRequest struct {
	ReturnOrderID string `json:"return_order_id,omitempty" validate:"required_without=OrderID,excluded_with=OrderID"`
	OrderID       string `json:"order_id,omitempty" validate:"required_without=ReturnOrderID,excluded_with=ReturnOrderID"`
	Amount        int64  `json:"amount,omitempty" validate:"gte=0"`
}

type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

type CreateCheckoutSessionRequest struct {
	UserID          string         `json:"user_id,omitempty"`
	GuestID         string         `json:"guest_id,omitempty"`
	IsGuest         bool           `json:"is_guest"`
	Email           string         `json:"email" validate:"required,email"`
	Currency        string         `json:"currency,omitempty" validate:"omitempty,len=3"`
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	ShippingAddress Address        `json:"shipping_address" validate:"required"`
}

type CheckoutItem struct {
	ProductID     string `json:"product_id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Category      string `json:"category,omitempty"`
	Image         string `json:"image,omitempty"`
	Price         int64  `json:"price" validate:"required,gt=0"`
	OriginalPrice int64  `json:"original_price,omitempty"`
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
}

type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

func AddressEntityToJSON(a entities.Address) Address {
	return Address{
		FullName:    a.FullName,
		PhoneNumber: a.PhoneNumber,
		AddressLine: a.AddressLine,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
	}
}

func AddressJSONToEntity(a Address) entities.Address {
	return entities.Address{
		FullName:    a.FullName,
		PhoneNumber: a.PhoneNumber,
		AddressLine: a.AddressLine,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
	}
}

func OrderItemEntityToJSON(i entities.OrderItem) OrderItem {
	return OrderItem{
		ProductID:        i.ProductID,
		Name:             i.Name,
		Category:         i.Category,
		Image:            i.Image,
		Price:            i.Price,
		OriginalPrice:    i.OriginalPrice,
		Quantity:         i.Quantity,
		ReturnedQuantity: i.ReturnedQuantity,
	}
}

func TrackingEventEntityToJSON(e entities.TrackingEvent) TrackingEvent {
	return TrackingEvent{
		Status:    string(e.Status),
		Location:  e.Location,
		Timestamp: e.Timestamp,
	}
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemEntityToJSON(it))
	}

	history := make([]TrackingEvent, 0, len(o.TrackingHistory))
	for _, ev := range o.TrackingHistory {
		history = append(history, TrackingEventEntityToJSON(ev))
	}

	return Order{
		ID:        o.ID,
		OrderUID:  o.OrderUID,
		SessionID: o.SessionID,
		UserID:    o.UserID,
		GuestID:   o.GuestID,
		Email:     o.Email,

		Items:           items,
		ShippingAddress: AddressEntityToJSON(o.ShippingAddress),
		TotalAmount:     o.TotalAmount,

		Status:                string(o.Status),
		CurrentLocation:       o.CurrentLocation,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		TrackingHistory:       history,

		DeliveryAgentID: o.DeliveryAgentID,
		DeliveryNotes:   o.DeliveryNotes,

		RefundStatus:        string(o.RefundStatus),
		RefundID:            o.RefundID,
		RefundAmount:        o.RefundAmount,
		RefundFailureReason: o.RefundFailureReason,

		ShippedAt:   o.ShippedAt,
		DeliveredAt: o.DeliveredAt,
		CancelledAt: o.CancelledAt,
		RefundedAt:  o.RefundedAt,

		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func ReturnItemEntityToJSON(i entities.ReturnItem) ReturnItem {
	return ReturnItem{
		ProductID:     i.ProductID,
		Name:          i.Name,
		Category:      i.Category,
		Image:         i.Image,
		Price:         i.Price,
		OriginalPrice: i.OriginalPrice,
		Quantity:      i.Quantity,
	}
}

func ReturnOrderEntityToJSON(ro entities.ReturnOrder) ReturnOrder {
	items := make([]ReturnItem, 0, len(ro.Items))
	for _, it := range ro.Items {
		items = append(items, ReturnItemEntityToJSON(it))
	}

	return ReturnOrder{
		ID:      ro.ID,
		OrderID: ro.OrderID,
		UserID:  ro.UserID,

		Reason:   ro.Reason,
		Comment:  ro.Comment,
		ImageURL: ro.ImageURL,

		Items:         items,
		PickupAddress: AddressEntityToJSON(ro.PickupAddress),
		PickupAgentID: ro.PickupAgentID,

		Status:       string(ro.Status),
		RefundStatus: string(ro.RefundStatus),

		RefundID:            ro.RefundID,
		RefundAmount:        ro.RefundAmount,
		RefundFailureReason: ro.RefundFailureReason,

		RequestedAt: ro.RequestedAt,
		ApprovedAt:  ro.ApprovedAt,
		RejectedAt:  ro.RejectedAt,
		PickedAt:    ro.PickedAt,
		RefundedAt:  ro.RefundedAt,
		CancelledAt: ro.CancelledAt,
	}
}

func (r CreateReturnRequest) ToServiceRequest(orderID string) service.ReturnRequest {
	items := make([]service.ReturnRequestItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, service.ReturnRequestItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return service.ReturnRequest{
		OrderID:  orderID,
		Reason:   r.Reason,
		Comment:  r.Comment,
		ImageURL: r.ImageURL,
		Items:    items,
	}
}

func (r CreateCheckoutSessionRequest) ToGatewayRequest() gateway.CheckoutRequest {
	items := make([]gateway.CheckoutItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, gateway.CheckoutItem{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Category:      it.Category,
			Image:         it.Image,
			Price:         it.Price,
			OriginalPrice: it.OriginalPrice,
			Quantity:      it.Quantity,
		})
	}
	return gateway.CheckoutRequest{
		UserID:          r.UserID,
		GuestID:         r.GuestID,
		IsGuest:         r.IsGuest,
		Email:           r.Email,
		Currency:        r.Currency,
		Items:           items,
		ShippingAddress: AddressJSONToEntity(r.ShippingAddress),
	}
}
