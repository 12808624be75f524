package repo

import (
	"database/sql"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
)

type Order struct {
	ID                    string         `db:"id"`
	OrderUID              string         `db:"order_uid"`
	SessionID             string         `db:"session_id"`
	UserID                sql.NullString `db:"user_id"`
	GuestID               sql.NullString `db:"guest_id"`
	Email                 string         `db:"email"`
	TotalAmount           int64          `db:"total_amount"`
	Status                string         `db:"status"`
	CurrentLocation       sql.NullString `db:"current_location"`
	EstimatedDeliveryDate sql.NullTime   `db:"estimated_delivery_date"`
	DeliveryAgentID       sql.NullString `db:"delivery_agent_id"`
	DeliveryNotes         sql.NullString `db:"delivery_notes"`

	ShipFullName    sql.NullString `db:"ship_full_name"`
	ShipPhoneNumber sql.NullString `db:"ship_phone_number"`
	ShipAddressLine sql.NullString `db:"ship_address_line"`
	ShipCity        sql.NullString `db:"ship_city"`
	ShipState       sql.NullString `db:"ship_state"`
	ShipPostalCode  sql.NullString `db:"ship_postal_code"`
	ShipCountry     sql.NullString `db:"ship_country"`

	RefundStatus        string         `db:"refund_status"`
	RefundID            sql.NullString `db:"refund_id"`
	RefundAmount        int64          `db:"refund_amount"`
	RefundFailureReason sql.NullString `db:"refund_failure_reason"`

	ShippedAt   sql.NullTime `db:"shipped_at"`
	DeliveredAt sql.NullTime `db:"delivered_at"`
	CancelledAt sql.NullTime `db:"cancelled_at"`
	RefundedAt  sql.NullTime `db:"refunded_at"`

	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type OrderItem struct {
	ID               int64          `db:"id"`
	OrderID          string         `db:"order_id"`
	ProductID        string         `db:"product_id"`
	Name             string         `db:"name"`
	Category         sql.NullString `db:"category"`
	Image            sql.NullString `db:"image"`
	Price            int64          `db:"price"`
	OriginalPrice    int64          `db:"original_price"`
	Quantity         int            `db:"quantity"`
	ReturnedQuantity int            `db:"returned_quantity"`
}

type TrackingEvent struct {
	ID        int64     `db:"id"`
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	Location  string    `db:"location"`
	CreatedAt time.Time `db:"created_at"`
}

type Payment struct {
	ID             string         `db:"id"`
	OrderID        string         `db:"order_id"`
	UserID         sql.NullString `db:"user_id"`
	GuestID        sql.NullString `db:"guest_id"`
	Email          string         `db:"email"`
	Amount         int64          `db:"amount"`
	PaymentStatus  string         `db:"payment_status"`
	PaymentMethod  sql.NullString `db:"payment_method"`
	Gateway        sql.NullString `db:"gateway"`
	SessionID      string         `db:"session_id"`
	ReceiptURL     sql.NullString `db:"receipt_url"`
	RefundedAmount int64          `db:"refunded_amount"`
	RefundID       sql.NullString `db:"refund_id"`
	RefundTime     sql.NullTime   `db:"refund_time"`
	ReturnOrderID  sql.NullString `db:"return_order_id"`
	PaymentTime    time.Time      `db:"payment_time"`
	CreatedAt      time.Time      `db:"created_at"`
}

type ReturnOrder struct {
	ID                  string         `db:"id"`
	OrderID             string         `db:"order_id"`
	UserID              sql.NullString `db:"user_id"`
	Reason              string         `db:"reason"`
	Comment             string         `db:"comment"`
	ImageURL            sql.NullString `db:"image_url"`
	PickupAgentID       sql.NullString `db:"pickup_agent_id"`
	RefundAmount        int64          `db:"refund_amount"`
	Status              string         `db:"status"`
	RefundStatus        string         `db:"refund_status"`
	RefundID            sql.NullString `db:"refund_id"`
	RefundFailureReason sql.NullString `db:"refund_failure_reason"`

	PickupFullName    sql.NullString `db:"pickup_full_name"`
	PickupPhoneNumber sql.NullString `db:"pickup_phone_number"`
	PickupAddressLine sql.NullString `db:"pickup_address_line"`
	PickupCity        sql.NullString `db:"pickup_city"`
	PickupState       sql.NullString `db:"pickup_state"`
	PickupPostalCode  sql.NullString `db:"pickup_postal_code"`
	PickupCountry     sql.NullString `db:"pickup_country"`

	RequestedAt time.Time    `db:"requested_at"`
	ApprovedAt  sql.NullTime `db:"approved_at"`
	RejectedAt  sql.NullTime `db:"rejected_at"`
	PickedAt    sql.NullTime `db:"picked_at"`
	RefundedAt  sql.NullTime `db:"refunded_at"`
	CancelledAt sql.NullTime `db:"cancelled_at"`

	Version int64 `db:"version"`
}

type ReturnOrderItem struct {
	ID            int64          `db:"id"`
	ReturnOrderID string         `db:"return_order_id"`
	ProductID     string         `db:"product_id"`
	Name          string         `db:"name"`
	Category      sql.NullString `db:"category"`
	Image         sql.NullString `db:"image"`
	Price         int64          `db:"price"`
	OriginalPrice int64          `db:"original_price"`
	Quantity      int            `db:"quantity"`
}

type User struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Role   string `db:"role"`
	Status string `db:"status"`
}

type Notification struct {
	ID        int64        `db:"id"`
	UserID    string       `db:"user_id"`
	Type      string       `db:"type"`
	Title     string       `db:"title"`
	Message   string       `db:"message"`
	CreatedAt time.Time    `db:"created_at"`
	SentAt    sql.NullTime `db:"sent_at"`
}

func OrderToEntity(o Order, items []OrderItem, tracking []TrackingEvent) entities.Order {
	order := entities.Order{
		ID:                    o.ID,
		OrderUID:              o.OrderUID,
		SessionID:             o.SessionID,
		UserID:                nullStringToPtr(o.UserID),
		GuestID:               nullStringToString(o.GuestID),
		Email:                 o.Email,
		TotalAmount:           o.TotalAmount,
		Status:                entities.OrderStatus(o.Status),
		CurrentLocation:       nullStringToString(o.CurrentLocation),
		EstimatedDeliveryDate: nullTimeToPtr(o.EstimatedDeliveryDate),
		DeliveryAgentID:       nullStringToPtr(o.DeliveryAgentID),
		DeliveryNotes:         nullStringToString(o.DeliveryNotes),
		ShippingAddress: entities.Address{
			FullName:    nullStringToString(o.ShipFullName),
			PhoneNumber: nullStringToString(o.ShipPhoneNumber),
			AddressLine: nullStringToString(o.ShipAddressLine),
			City:        nullStringToString(o.ShipCity),
			State:       nullStringToString(o.ShipState),
			PostalCode:  nullStringToString(o.ShipPostalCode),
			Country:     nullStringToString(o.ShipCountry),
		},
		RefundStatus:        entities.RefundStatus(o.RefundStatus),
		RefundID:            nullStringToString(o.RefundID),
		RefundAmount:        o.RefundAmount,
		RefundFailureReason: nullStringToString(o.RefundFailureReason),
		ShippedAt:           nullTimeToPtr(o.ShippedAt),
		DeliveredAt:         nullTimeToPtr(o.DeliveredAt),
		CancelledAt:         nullTimeToPtr(o.CancelledAt),
		RefundedAt:          nullTimeToPtr(o.RefundedAt),
		Version:             o.Version,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, OrderItemToEntity(it))
		}
	}
	if len(tracking) > 0 {
		order.TrackingHistory = make([]entities.TrackingEvent, 0, len(tracking))
		for _, ev := range tracking {
			order.TrackingHistory = append(order.TrackingHistory, entities.TrackingEvent{
				Status:    entities.OrderStatus(ev.Status),
				Location:  ev.Location,
				Timestamp: ev.CreatedAt,
			})
		}
	}

	return order
}

func OrderItemToEntity(i OrderItem) entities.OrderItem {
	return entities.OrderItem{
		ProductID:        i.ProductID,
		Name:             i.Name,
		Category:         nullStringToString(i.Category),
		Image:            nullStringToString(i.Image),
		Price:            i.Price,
		OriginalPrice:    i.OriginalPrice,
		Quantity:         i.Quantity,
		ReturnedQuantity: i.ReturnedQuantity,
	}
}

func PaymentToEntity(p Payment) entities.Payment {
	return entities.Payment{
		ID:             p.ID,
		OrderID:        p.OrderID,
		UserID:         nullStringToPtr(p.UserID),
		GuestID:        nullStringToString(p.GuestID),
		Email:          p.Email,
		Amount:         p.Amount,
		PaymentStatus:  entities.PaymentStatus(p.PaymentStatus),
		PaymentMethod:  nullStringToString(p.PaymentMethod),
		Gateway:        nullStringToString(p.Gateway),
		SessionID:      p.SessionID,
		ReceiptURL:     nullStringToString(p.ReceiptURL),
		RefundedAmount: p.RefundedAmount,
		RefundID:       nullStringToString(p.RefundID),
		RefundTime:     nullTimeToPtr(p.RefundTime),
		ReturnOrderID:  nullStringToPtr(p.ReturnOrderID),
		PaymentTime:    p.PaymentTime,
		CreatedAt:      p.CreatedAt,
	}
}

func ReturnOrderToEntity(ro ReturnOrder, items []ReturnOrderItem) entities.ReturnOrder {
	ret := entities.ReturnOrder{
		ID:                  ro.ID,
		OrderID:             ro.OrderID,
		UserID:              nullStringToPtr(ro.UserID),
		Reason:              ro.Reason,
		Comment:             ro.Comment,
		ImageURL:            nullStringToString(ro.ImageURL),
		PickupAgentID:       nullStringToPtr(ro.PickupAgentID),
		RefundAmount:        ro.RefundAmount,
		Status:              entities.ReturnStatus(ro.Status),
		RefundStatus:        entities.RefundStatus(ro.RefundStatus),
		RefundID:            nullStringToString(ro.RefundID),
		RefundFailureReason: nullStringToString(ro.RefundFailureReason),
		PickupAddress: entities.Address{
			FullName:    nullStringToString(ro.PickupFullName),
			PhoneNumber: nullStringToString(ro.PickupPhoneNumber),
			AddressLine: nullStringToString(ro.PickupAddressLine),
			City:        nullStringToString(ro.PickupCity),
			State:       nullStringToString(ro.PickupState),
			PostalCode:  nullStringToString(ro.PickupPostalCode),
			Country:     nullStringToString(ro.PickupCountry),
		},
		RequestedAt: ro.RequestedAt,
		ApprovedAt:  nullTimeToPtr(ro.ApprovedAt),
		RejectedAt:  nullTimeToPtr(ro.RejectedAt),
		PickedAt:    nullTimeToPtr(ro.PickedAt),
		RefundedAt:  nullTimeToPtr(ro.RefundedAt),
		CancelledAt: nullTimeToPtr(ro.CancelledAt),
		Version:     ro.Version,
	}

	if len(items) > 0 {
		ret.Items = make([]entities.ReturnItem, 0, len(items))
		for _, it := range items {
			ret.Items = append(ret.Items, entities.ReturnItem{
				ProductID:     it.ProductID,
				Name:          it.Name,
				Category:      nullStringToString(it.Category),
				Image:         nullStringToString(it.Image),
				Price:         it.Price,
				OriginalPrice: it.OriginalPrice,
				Quantity:      it.Quantity,
			})
		}
	}

	return ret
}

func UserToEntity(u User) entities.User {
	return entities.User{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   entities.UserRole(u.Role),
		Status: entities.UserStatus(u.Status),
	}
}

func NotificationToEntity(n Notification) entities.Notification {
	return entities.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
		SentAt:    nullTimeToPtr(n.SentAt),
	}
}
