package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/internal/service"
)

func completedSession() gateway.Session {
	return gateway.Session{
		ID:              "cs_123",
		PaymentIntentID: "pi_123",
		Email:           "buyer@example.com",
		UserID:          "user-1",
		AmountTotal:     34000,
		PaymentMethod:   "card",
		ReceiptURL:      "https://stripe.test/receipt",
		CreatedAt:       time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Items: []gateway.LineItem{
			{ProductID: "p1", Name: "Keyboard", Quantity: 2, Amount: 50000},
		},
	}
}

func TestReconciler_OnCheckoutCompleted(t *testing.T) {
	t.Run("creates order and payment", func(t *testing.T) {
		var (
			savedOrder   *entities.Order
			savedPayment *entities.Payment
			tracked      []entities.TrackingEvent
		)
		repo := &repoStub{
			getOrderBySessionID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{}, entities.ErrOrderNotFound
			},
			saveOrder: func(_ context.Context, o entities.Order) (bool, error) {
				savedOrder = &o
				return true, nil
			},
			savePayment: func(_ context.Context, p entities.Payment) error {
				savedPayment = &p
				return nil
			},
			appendTracking: func(_ context.Context, _ string, ev entities.TrackingEvent) error {
				tracked = append(tracked, ev)
				return nil
			},
		}
		users := &usersStub{
			getUserByID: func(_ context.Context, id string) (entities.User, error) {
				return entities.User{ID: id}, nil
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return completedSession(), nil
			},
		}
		outbox := &outboxStub{}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, users, gw, outbox, newCacheStub())

		orderUID, err := svc.OnCheckoutCompleted(context.Background(), "cs_123")
		require.NoError(t, err)
		assert.NotEmpty(t, orderUID)

		require.NotNil(t, savedOrder)
		assert.Equal(t, "cs_123", savedOrder.SessionID)
		assert.Equal(t, entities.OrderProcessing, savedOrder.Status)
		assert.Equal(t, entities.DefaultLocation, savedOrder.CurrentLocation)
		assert.Equal(t, int64(34000), savedOrder.TotalAmount)
		require.NotNil(t, savedOrder.UserID)
		assert.Equal(t, "user-1", *savedOrder.UserID)
		require.Len(t, savedOrder.Items, 1)
		// unit price from the line total
		assert.Equal(t, int64(25000), savedOrder.Items[0].Price)

		require.NotNil(t, savedPayment)
		assert.Equal(t, savedOrder.ID, savedPayment.OrderID)
		assert.Equal(t, entities.PaymentPaid, savedPayment.PaymentStatus)
		assert.Equal(t, "stripe", savedPayment.Gateway)

		require.Len(t, tracked, 1)
		assert.Equal(t, entities.OrderProcessing, tracked[0].Status)

		require.Len(t, outbox.notifications, 1)
		assert.Equal(t, "Order Placed", outbox.notifications[0].Title)
	})

	t.Run("redelivery short-circuits on the session id", func(t *testing.T) {
		gatewayCalls := 0
		repo := &repoStub{
			getOrderBySessionID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", OrderUID: "uid-1", SessionID: "cs_123"}, nil
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				gatewayCalls++
				return gateway.Session{}, nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		orderUID, err := svc.OnCheckoutCompleted(context.Background(), "cs_123")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", orderUID)
		assert.Zero(t, gatewayCalls)
	})

	t.Run("lost insert race adopts the winner", func(t *testing.T) {
		lookups := 0
		repo := &repoStub{
			getOrderBySessionID: func(_ context.Context, _ string) (entities.Order, error) {
				lookups++
				if lookups == 1 {
					return entities.Order{}, entities.ErrOrderNotFound
				}
				return entities.Order{ID: "order-9", OrderUID: "uid-9", SessionID: "cs_123"}, nil
			},
			saveOrder: func(_ context.Context, _ entities.Order) (bool, error) {
				return false, nil
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return completedSession(), nil
			},
		}
		outbox := &outboxStub{}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, outbox, newCacheStub())

		orderUID, err := svc.OnCheckoutCompleted(context.Background(), "cs_123")
		require.NoError(t, err)
		assert.Equal(t, "uid-9", orderUID)
		assert.Empty(t, outbox.notifications)
	})

	t.Run("guest session resolves to no user", func(t *testing.T) {
		var savedOrder *entities.Order
		repo := &repoStub{
			getOrderBySessionID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{}, entities.ErrOrderNotFound
			},
			saveOrder: func(_ context.Context, o entities.Order) (bool, error) {
				savedOrder = &o
				return true, nil
			},
			savePayment: func(_ context.Context, _ entities.Payment) error { return nil },
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				sess := completedSession()
				sess.UserID = ""
				sess.GuestID = "guest-7"
				sess.IsGuest = true
				return sess, nil
			},
		}
		outbox := &outboxStub{}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, outbox, newCacheStub())

		_, err := svc.OnCheckoutCompleted(context.Background(), "cs_123")
		require.NoError(t, err)

		require.NotNil(t, savedOrder)
		assert.Nil(t, savedOrder.UserID)
		assert.Equal(t, "guest-7", savedOrder.GuestID)
		assert.Empty(t, outbox.notifications)
	})

	t.Run("gateway failure surfaces", func(t *testing.T) {
		repo := &repoStub{
			getOrderBySessionID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{}, entities.ErrOrderNotFound
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return gateway.Session{}, entities.ErrExternalService
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		_, err := svc.OnCheckoutCompleted(context.Background(), "cs_123")
		require.ErrorIs(t, err, entities.ErrExternalService)
	})
}

func TestReconciler_OnRefundSucceeded_Return(t *testing.T) {
	t.Run("marks return refunded and forces the order over", func(t *testing.T) {
		var (
			savedReturn *entities.ReturnOrder
			savedOrder  *entities.Order
		)
		var refundedPayments int
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return entities.ReturnOrder{
					ID:           "ret-1",
					OrderID:      "order-1",
					Status:       entities.ReturnPicked,
					RefundStatus: entities.RefundInitiated,
				}, nil
			},
			updateReturnOrder: func(_ context.Context, ro entities.ReturnOrder) error {
				savedReturn = &ro
				return nil
			},
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", Status: entities.OrderDelivered}, nil
			},
			updateOrder: func(_ context.Context, o entities.Order) error {
				savedOrder = &o
				return nil
			},
			markPaymentRefunded: func(_ context.Context, _, _ string, _ int64, _ *string, _ time.Time) error {
				refundedPayments++
				return nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		ev := service.RefundEvent{RefundID: "re_1", ReturnOrderID: "ret-1", Amount: 25000}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))

		require.NotNil(t, savedReturn)
		assert.Equal(t, entities.RefundSucceeded, savedReturn.RefundStatus)
		assert.Equal(t, entities.ReturnRefunded, savedReturn.Status)
		assert.Equal(t, "re_1", savedReturn.RefundID)
		assert.Equal(t, int64(25000), savedReturn.RefundAmount)
		require.NotNil(t, savedReturn.RefundedAt)

		require.NotNil(t, savedOrder)
		assert.Equal(t, entities.OrderReturned, savedOrder.Status)
		assert.Equal(t, 1, refundedPayments)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		writes := 0
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return entities.ReturnOrder{ID: "ret-1", RefundStatus: entities.RefundSucceeded}, nil
			},
			updateReturnOrder: func(_ context.Context, _ entities.ReturnOrder) error {
				writes++
				return nil
			},
			markPaymentRefunded: func(_ context.Context, _, _ string, _ int64, _ *string, _ time.Time) error {
				writes++
				return nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		ev := service.RefundEvent{RefundID: "re_1", ReturnOrderID: "ret-1", Amount: 25000}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))
		assert.Zero(t, writes)
	})

	t.Run("missing payment row does not fail reconciliation", func(t *testing.T) {
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return entities.ReturnOrder{ID: "ret-1", OrderID: "order-1", Status: entities.ReturnPicked}, nil
			},
			updateReturnOrder: func(_ context.Context, _ entities.ReturnOrder) error { return nil },
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", Status: entities.OrderReturned}, nil
			},
			markPaymentRefunded: func(_ context.Context, _, _ string, _ int64, _ *string, _ time.Time) error {
				return entities.ErrPaymentNotFound
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		ev := service.RefundEvent{RefundID: "re_1", ReturnOrderID: "ret-1"}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))
	})
}

func TestReconciler_OnRefundSucceeded_Cancel(t *testing.T) {
	t.Run("marks the cancelled order refunded", func(t *testing.T) {
		var savedOrder *entities.Order
		repo := &repoStub{
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", Status: entities.OrderCancelled, RefundStatus: entities.RefundInitiated}, nil
			},
			updateOrder: func(_ context.Context, o entities.Order) error {
				savedOrder = &o
				return nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		ev := service.RefundEvent{RefundID: "re_2", CancelOrderID: "order-1", Amount: 34000}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))

		require.NotNil(t, savedOrder)
		assert.Equal(t, entities.RefundSucceeded, savedOrder.RefundStatus)
		assert.Equal(t, int64(34000), savedOrder.RefundAmount)
		assert.Equal(t, entities.OrderCancelled, savedOrder.Status)
		require.NotNil(t, savedOrder.RefundedAt)
	})

	t.Run("no target is a validation error", func(t *testing.T) {
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, &repoStub{}, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())
		err := svc.OnRefundSucceeded(context.Background(), service.RefundEvent{RefundID: "re_3"})
		require.ErrorIs(t, err, entities.ErrValidation)
	})
}

func TestReconciler_RefundEventsInvalidateCachedOrder(t *testing.T) {
	repo := &repoStub{
		getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
			return entities.Order{ID: "order-1", Status: entities.OrderCancelled, RefundStatus: entities.RefundInitiated}, nil
		},
		updateOrder: func(_ context.Context, _ entities.Order) error { return nil },
		getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
			return entities.ReturnOrder{ID: "ret-1", OrderID: "order-1", Status: entities.ReturnPicked}, nil
		},
		updateReturnOrder: func(_ context.Context, _ entities.ReturnOrder) error { return nil },
	}

	t.Run("succeeded refund on a cancelled order", func(t *testing.T) {
		cache := newCacheStub()
		cache.Set("order-1", []byte("stale"))
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, cache)

		ev := service.RefundEvent{RefundID: "re_2", CancelOrderID: "order-1", Amount: 34000}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))

		_, ok := cache.Get("order-1")
		assert.False(t, ok, "stale order left in cache after refund")
	})

	t.Run("succeeded refund on a return", func(t *testing.T) {
		cache := newCacheStub()
		cache.Set("order-1", []byte("stale"))
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, cache)

		ev := service.RefundEvent{RefundID: "re_1", ReturnOrderID: "ret-1", Amount: 25000}
		require.NoError(t, svc.OnRefundSucceeded(context.Background(), ev))

		_, ok := cache.Get("order-1")
		assert.False(t, ok)
	})

	t.Run("failed refund on a cancelled order", func(t *testing.T) {
		cache := newCacheStub()
		cache.Set("order-1", []byte("stale"))
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, cache)

		ev := service.RefundEvent{CancelOrderID: "order-1", FailureReason: "card expired"}
		require.NoError(t, svc.OnRefundFailed(context.Background(), ev))

		_, ok := cache.Get("order-1")
		assert.False(t, ok)
	})
}

func TestReconciler_OnRefundFailed(t *testing.T) {
	var savedReturn *entities.ReturnOrder
	repo := &repoStub{
		getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
			return entities.ReturnOrder{ID: "ret-1", RefundStatus: entities.RefundInitiated}, nil
		},
		updateReturnOrder: func(_ context.Context, ro entities.ReturnOrder) error {
			savedReturn = &ro
			return nil
		},
	}
	svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

	ev := service.RefundEvent{ReturnOrderID: "ret-1", FailureReason: "insufficient funds"}
	require.NoError(t, svc.OnRefundFailed(context.Background(), ev))

	require.NotNil(t, savedReturn)
	assert.Equal(t, entities.RefundFailed, savedReturn.RefundStatus)
	assert.Equal(t, "insufficient funds", savedReturn.RefundFailureReason)
}

func TestReconciler_InitiateRefund_Return(t *testing.T) {
	baseReturn := func(refundStatus entities.RefundStatus) entities.ReturnOrder {
		return entities.ReturnOrder{
			ID:           "ret-1",
			OrderID:      "order-1",
			Status:       entities.ReturnPicked,
			RefundStatus: refundStatus,
			RefundAmount: 25000,
		}
	}

	t.Run("creates the refund with routing metadata", func(t *testing.T) {
		var (
			gotIntent   string
			gotAmount   int64
			gotMetadata map[string]string
			savedReturn *entities.ReturnOrder
		)
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return baseReturn(entities.RefundPending), nil
			},
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", SessionID: "cs_123"}, nil
			},
			updateReturnOrder: func(_ context.Context, ro entities.ReturnOrder) error {
				savedReturn = &ro
				return nil
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return gateway.Session{ID: "cs_123", PaymentIntentID: "pi_123"}, nil
			},
			createRefund: func(_ context.Context, intent string, amount int64, metadata map[string]string) (gateway.Refund, error) {
				gotIntent, gotAmount, gotMetadata = intent, amount, metadata
				return gateway.Refund{ID: "re_1", Amount: amount, Status: "pending"}, nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		refund, err := svc.InitiateRefund(context.Background(), service.RefundTarget{ReturnOrderID: "ret-1"})
		require.NoError(t, err)
		assert.Equal(t, "re_1", refund.ID)
		assert.Equal(t, "pi_123", gotIntent)
		assert.Equal(t, int64(25000), gotAmount)
		assert.Equal(t, map[string]string{gateway.MetaReturnOrderID: "ret-1"}, gotMetadata)

		require.NotNil(t, savedReturn)
		assert.Equal(t, entities.RefundInitiated, savedReturn.RefundStatus)
		assert.Equal(t, "re_1", savedReturn.RefundID)
	})

	t.Run("double initiation is rejected", func(t *testing.T) {
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return baseReturn(entities.RefundInitiated), nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{ReturnOrderID: "ret-1"})
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("already refunded is rejected", func(t *testing.T) {
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return baseReturn(entities.RefundSucceeded), nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{ReturnOrderID: "ret-1"})
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("gateway failure leaves local state untouched", func(t *testing.T) {
		updates := 0
		repo := &repoStub{
			getReturnOrderByID: func(_ context.Context, _ string) (entities.ReturnOrder, error) {
				return baseReturn(entities.RefundPending), nil
			},
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", SessionID: "cs_123"}, nil
			},
			updateReturnOrder: func(_ context.Context, _ entities.ReturnOrder) error {
				updates++
				return nil
			},
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return gateway.Session{ID: "cs_123", PaymentIntentID: "pi_123"}, nil
			},
			createRefund: func(_ context.Context, _ string, _ int64, _ map[string]string) (gateway.Refund, error) {
				return gateway.Refund{}, entities.ErrExternalService
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{ReturnOrderID: "ret-1"})
		require.ErrorIs(t, err, entities.ErrExternalService)
		assert.Zero(t, updates)
	})
}

func TestReconciler_InitiateRefund_Cancel(t *testing.T) {
	t.Run("refunds a cancelled order in full", func(t *testing.T) {
		var gotAmount int64
		var gotMetadata map[string]string
		repo := &repoStub{
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{
					ID:           "order-1",
					SessionID:    "cs_123",
					Status:       entities.OrderCancelled,
					TotalAmount:  34000,
					RefundStatus: entities.RefundPending,
				}, nil
			},
			updateOrder: func(_ context.Context, _ entities.Order) error { return nil },
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return gateway.Session{ID: "cs_123", PaymentIntentID: "pi_123"}, nil
			},
			createRefund: func(_ context.Context, _ string, amount int64, metadata map[string]string) (gateway.Refund, error) {
				gotAmount, gotMetadata = amount, metadata
				return gateway.Refund{ID: "re_2", Amount: amount, Status: "pending"}, nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		refund, err := svc.InitiateRefund(context.Background(), service.RefundTarget{OrderID: "order-1"})
		require.NoError(t, err)
		assert.Equal(t, "re_2", refund.ID)
		assert.Equal(t, int64(34000), gotAmount)
		assert.Equal(t, map[string]string{gateway.MetaCancelOrderID: "order-1"}, gotMetadata)
	})

	t.Run("order must be cancelled first", func(t *testing.T) {
		repo := &repoStub{
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", Status: entities.OrderProcessing}, nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())

		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{OrderID: "order-1"})
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("amount override wins", func(t *testing.T) {
		var gotAmount int64
		repo := &repoStub{
			getOrderByID: func(_ context.Context, _ string) (entities.Order, error) {
				return entities.Order{ID: "order-1", SessionID: "cs_123", Status: entities.OrderCancelled, TotalAmount: 34000}, nil
			},
			updateOrder: func(_ context.Context, _ entities.Order) error { return nil },
		}
		gw := &gatewayStub{
			retrieveSession: func(_ context.Context, _ string) (gateway.Session, error) {
				return gateway.Session{ID: "cs_123", PaymentIntentID: "pi_123"}, nil
			},
			createRefund: func(_ context.Context, _ string, amount int64, _ map[string]string) (gateway.Refund, error) {
				gotAmount = amount
				return gateway.Refund{ID: "re_2", Amount: amount}, nil
			},
		}
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, repo, &usersStub{}, gw, &outboxStub{}, newCacheStub())

		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{OrderID: "order-1", AmountOverride: 5000})
		require.NoError(t, err)
		assert.Equal(t, int64(5000), gotAmount)
	})

	t.Run("no target", func(t *testing.T) {
		svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, &repoStub{}, &usersStub{}, &gatewayStub{}, &outboxStub{}, newCacheStub())
		_, err := svc.InitiateRefund(context.Background(), service.RefundTarget{})
		require.ErrorIs(t, err, entities.ErrValidation)
	})
}

func TestReconciler_CreateCheckoutSession(t *testing.T) {
	gw := &gatewayStub{
		createCheckoutSession: func(_ context.Context, req gateway.CheckoutRequest) (string, error) {
			if len(req.Items) == 0 {
				return "", errors.New("no items")
			}
			return "https://checkout.stripe.test/cs_123", nil
		},
	}
	svc := service.NewReconcilerService(discardLogger(), stubTxManager{}, &repoStub{}, &usersStub{}, gw, &outboxStub{}, newCacheStub())

	url, err := svc.CreateCheckoutSession(context.Background(), gateway.CheckoutRequest{
		Email: "buyer@example.com",
		Items: []gateway.CheckoutItem{{ProductID: "p1", Name: "Keyboard", Price: 25000, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_123", url)
}
