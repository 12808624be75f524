package service_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/pkg/trm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubTxManager runs callbacks inline; the repo stubs don't care about the
// transaction context.
type stubTxManager struct{}

func (stubTxManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, nil
}

func (stubTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type repoStub struct {
	getOrderByID            func(ctx context.Context, orderID string) (entities.Order, error)
	getOrderBySessionID     func(ctx context.Context, sessionID string) (entities.Order, error)
	saveOrder               func(ctx context.Context, o entities.Order) (bool, error)
	updateOrder             func(ctx context.Context, o entities.Order) error
	appendTracking          func(ctx context.Context, orderID string, ev entities.TrackingEvent) error
	setItemReturnedQuantity func(ctx context.Context, orderID, productID string, returned int) error

	getReturnOrderByID func(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error)
	saveReturnOrder    func(ctx context.Context, ro entities.ReturnOrder) error
	updateReturnOrder  func(ctx context.Context, ro entities.ReturnOrder) error

	savePayment         func(ctx context.Context, p entities.Payment) error
	markPaymentRefunded func(ctx context.Context, orderID, refundID string, amount int64, returnOrderID *string, at time.Time) error
}

func (s *repoStub) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	return s.getOrderByID(ctx, orderID)
}

func (s *repoStub) GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error) {
	return s.getOrderBySessionID(ctx, sessionID)
}

func (s *repoStub) SaveOrder(ctx context.Context, o entities.Order) (bool, error) {
	return s.saveOrder(ctx, o)
}

func (s *repoStub) UpdateOrder(ctx context.Context, o entities.Order) error {
	return s.updateOrder(ctx, o)
}

func (s *repoStub) AppendTracking(ctx context.Context, orderID string, ev entities.TrackingEvent) error {
	if s.appendTracking == nil {
		return nil
	}
	return s.appendTracking(ctx, orderID, ev)
}

func (s *repoStub) SetItemReturnedQuantity(ctx context.Context, orderID, productID string, returned int) error {
	if s.setItemReturnedQuantity == nil {
		return nil
	}
	return s.setItemReturnedQuantity(ctx, orderID, productID, returned)
}

func (s *repoStub) GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error) {
	return s.getReturnOrderByID(ctx, returnOrderID)
}

func (s *repoStub) SaveReturnOrder(ctx context.Context, ro entities.ReturnOrder) error {
	return s.saveReturnOrder(ctx, ro)
}

func (s *repoStub) UpdateReturnOrder(ctx context.Context, ro entities.ReturnOrder) error {
	return s.updateReturnOrder(ctx, ro)
}

func (s *repoStub) SavePayment(ctx context.Context, p entities.Payment) error {
	return s.savePayment(ctx, p)
}

func (s *repoStub) MarkPaymentRefunded(ctx context.Context, orderID, refundID string, amount int64, returnOrderID *string, at time.Time) error {
	if s.markPaymentRefunded == nil {
		return nil
	}
	return s.markPaymentRefunded(ctx, orderID, refundID, amount, returnOrderID, at)
}

type usersStub struct {
	getUserByID    func(ctx context.Context, userID string) (entities.User, error)
	getUserByEmail func(ctx context.Context, email string) (entities.User, error)
}

func (s *usersStub) GetUserByID(ctx context.Context, userID string) (entities.User, error) {
	if s.getUserByID == nil {
		return entities.User{}, entities.ErrUserNotFound
	}
	return s.getUserByID(ctx, userID)
}

func (s *usersStub) GetUserByEmail(ctx context.Context, email string) (entities.User, error) {
	if s.getUserByEmail == nil {
		return entities.User{}, entities.ErrUserNotFound
	}
	return s.getUserByEmail(ctx, email)
}

type outboxStub struct {
	notifications []entities.Notification
}

func (s *outboxStub) EnqueueNotification(_ context.Context, n entities.Notification) error {
	s.notifications = append(s.notifications, n)
	return nil
}

type cacheStub struct {
	data map[string][]byte
}

func newCacheStub() *cacheStub {
	return &cacheStub{data: make(map[string][]byte)}
}

func (s *cacheStub) Get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *cacheStub) Set(key string, value []byte) {
	s.data[key] = value
}

func (s *cacheStub) Remove(key string) {
	delete(s.data, key)
}

type gatewayStub struct {
	retrieveSession       func(ctx context.Context, sessionID string) (gateway.Session, error)
	createRefund          func(ctx context.Context, paymentIntentID string, amount int64, metadata map[string]string) (gateway.Refund, error)
	createCheckoutSession func(ctx context.Context, req gateway.CheckoutRequest) (string, error)
}

func (s *gatewayStub) RetrieveSession(ctx context.Context, sessionID string) (gateway.Session, error) {
	return s.retrieveSession(ctx, sessionID)
}

func (s *gatewayStub) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, metadata map[string]string) (gateway.Refund, error) {
	return s.createRefund(ctx, paymentIntentID, amount, metadata)
}

func (s *gatewayStub) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (string, error) {
	return s.createCheckoutSession(ctx, req)
}
