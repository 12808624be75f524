package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shoply/fulfillment-service/internal/entities"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	allowed := map[entities.OrderStatus][]entities.OrderStatus{
		entities.OrderPending:    {entities.OrderProcessing, entities.OrderCancelled},
		entities.OrderProcessing: {entities.OrderShipped, entities.OrderCancelled},
		entities.OrderShipped:    {entities.OrderDelivered},
		entities.OrderDelivered:  {entities.OrderReturned},
		entities.OrderReturned:   nil,
		entities.OrderCancelled:  nil,
	}

	statuses := []entities.OrderStatus{
		entities.OrderPending, entities.OrderProcessing, entities.OrderShipped,
		entities.OrderDelivered, entities.OrderReturned, entities.OrderCancelled,
	}

	for from, targets := range allowed {
		legal := map[entities.OrderStatus]bool{}
		for _, to := range targets {
			legal[to] = true
		}
		for _, to := range statuses {
			assert.Equal(t, legal[to], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, entities.OrderPending.Valid())
	assert.True(t, entities.OrderCancelled.Valid())
	assert.False(t, entities.OrderStatus("Lost").Valid())
	assert.False(t, entities.OrderStatus("").Valid())
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, entities.OrderReturned.Terminal())
	assert.True(t, entities.OrderCancelled.Terminal())
	assert.False(t, entities.OrderShipped.Terminal())
}

func TestReturnStatus_CanTransition(t *testing.T) {
	assert.True(t, entities.ReturnRequested.CanTransition(entities.ReturnApproved))
	assert.True(t, entities.ReturnRequested.CanTransition(entities.ReturnRejected))
	assert.True(t, entities.ReturnRequested.CanTransition(entities.ReturnCancelled))
	assert.True(t, entities.ReturnApproved.CanTransition(entities.ReturnPicked))
	assert.True(t, entities.ReturnPicked.CanTransition(entities.ReturnRefunded))

	assert.False(t, entities.ReturnRequested.CanTransition(entities.ReturnPicked))
	assert.False(t, entities.ReturnPicked.CanTransition(entities.ReturnCancelled))
	assert.False(t, entities.ReturnRejected.CanTransition(entities.ReturnApproved))
	assert.False(t, entities.ReturnRefunded.CanTransition(entities.ReturnRequested))
	assert.False(t, entities.ReturnCancelled.CanTransition(entities.ReturnApproved))
}

func TestReturnStatus_ForcesOrderReturned(t *testing.T) {
	assert.True(t, entities.ReturnPicked.ForcesOrderReturned())
	assert.True(t, entities.ReturnRefunded.ForcesOrderReturned())
	assert.False(t, entities.ReturnApproved.ForcesOrderReturned())
	assert.False(t, entities.ReturnRejected.ForcesOrderReturned())
}

func TestOrder_ReturnWindowOpen(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not delivered", func(t *testing.T) {
		order := entities.Order{}
		assert.False(t, order.ReturnWindowOpen(now))
	})

	t.Run("inside the window", func(t *testing.T) {
		delivered := now.Add(-entities.ReturnWindow + time.Minute)
		order := entities.Order{DeliveredAt: &delivered}
		assert.True(t, order.ReturnWindowOpen(now))
	})

	t.Run("exactly at the deadline", func(t *testing.T) {
		delivered := now.Add(-entities.ReturnWindow)
		order := entities.Order{DeliveredAt: &delivered}
		assert.True(t, order.ReturnWindowOpen(now))
	})

	t.Run("past the deadline", func(t *testing.T) {
		delivered := now.Add(-entities.ReturnWindow - time.Minute)
		order := entities.Order{DeliveredAt: &delivered}
		assert.False(t, order.ReturnWindowOpen(now))
	})
}

func TestOrderItem_Returnable(t *testing.T) {
	item := entities.OrderItem{Quantity: 3, ReturnedQuantity: 1}
	assert.Equal(t, 2, item.Returnable())

	item.ReturnedQuantity = 3
	assert.Zero(t, item.Returnable())
}

func TestOrder_Item(t *testing.T) {
	order := entities.Order{Items: []entities.OrderItem{
		{ProductID: "p1"},
		{ProductID: "p2"},
	}}

	line, ok := order.Item("p2")
	assert.True(t, ok)
	assert.Equal(t, "p2", line.ProductID)

	// lookups return a pointer into the order so callers can mutate lines
	line.ReturnedQuantity = 1
	assert.Equal(t, 1, order.Items[1].ReturnedQuantity)

	_, ok = order.Item("p9")
	assert.False(t, ok)
}
