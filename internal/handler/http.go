package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/internal/service"
	"github.com/shoply/fulfillment-service/pkg/utils"
)

type OrderService interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status entities.OrderStatus, location string) (entities.Order, error)
	Cancel(ctx context.Context, orderID string) (entities.Order, error)
	AssignDeliveryAgent(ctx context.Context, orderID, agentID string) (entities.Order, error)
	AddDeliveryNotes(ctx context.Context, orderID, notes string) (entities.Order, error)
}

type ReturnService interface {
	GetReturnOrderByID(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error)
	RequestReturn(ctx context.Context, req service.ReturnRequest) (entities.ReturnOrder, error)
	CancelReturnRequest(ctx context.Context, returnOrderID string) (entities.ReturnOrder, error)
	UpdateReturnStatus(ctx context.Context, returnOrderID string, status entities.ReturnStatus) (entities.ReturnOrder, error)
	AssignPickupAgent(ctx context.Context, returnOrderID, agentID string) (entities.ReturnOrder, error)
}

type CheckoutService interface {
	InitiateRefund(ctx context.Context, target service.RefundTarget) (gateway.Refund, error)
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (string, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate

	orders   OrderService
	returns  ReturnService
	checkout CheckoutService

	successURL string
	cancelURL  string
}

func NewHTTPHandler(logger *slog.Logger, orders OrderService, returns ReturnService, checkout CheckoutService, successURL, cancelURL string) *HTTPHandler {
	return &HTTPHandler{
		logger:     logger.With(slog.String("handler", "http")),
		validate:   validator.New(),
		orders:     orders,
		returns:    returns,
		checkout:   checkout,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Get("/orders/{order_id}", h.GetOrderByID)
	r.Get("/orders/{order_id}/tracking", h.GetOrderTracking)
	r.Patch("/orders/{order_id}/status", h.UpdateOrderStatus)
	r.Patch("/orders/{order_id}/cancel", h.CancelOrder)
	r.Patch("/orders/{order_id}/notes", h.AddDeliveryNotes)
	r.Post("/orders/{order_id}/delivery-agent", h.AssignDeliveryAgent)
	r.Post("/orders/{order_id}/returns", h.RequestReturn)

	r.Get("/returns/{return_id}", h.GetReturnOrderByID)
	r.Patch("/returns/{return_id}/status", h.UpdateReturnStatus)
	r.Patch("/returns/{return_id}/cancel", h.CancelReturn)
	r.Post("/returns/{return_id}/pickup-agent", h.AssignPickupAgent)

	r.Post("/refunds", h.CreateRefund)
	r.Post("/checkout/sessions", h.CreateCheckoutSession)
}

// GetOrderByID returns a single order.
// @Summary      Get order by ID
// @Description  Returns the full order with items, tracking history and refund state
// @Tags         orders
// @Param        order_id   path      string  true  "Order identifier"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get order")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// GetOrderTracking returns the tracking history of an order.
// @Summary      Get order tracking history
// @Tags         orders
// @Param        order_id   path      string  true  "Order identifier"
// @Success      200  {array}   TrackingEvent
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Router       /orders/{order_id}/tracking [get]
func (h *HTTPHandler) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get order")
		return
	}

	history := make([]TrackingEvent, 0, len(order.TrackingHistory))
	for _, ev := range order.TrackingHistory {
		history = append(history, TrackingEventEntityToJSON(ev))
	}

	utils.WriteJSON(w, history, http.StatusOK)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req UpdateOrderStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, entities.OrderStatus(req.Status), req.Location)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to update order status")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to cancel order")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) AddDeliveryNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req DeliveryNotesRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.AddDeliveryNotes(ctx, orderID, req.Notes)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to add delivery notes")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) AssignDeliveryAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req AssignAgentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.AssignDeliveryAgent(ctx, orderID, req.AgentID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to assign delivery agent")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req CreateReturnRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ro, err := h.returns.RequestReturn(ctx, req.ToServiceRequest(orderID))
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to request return")
		return
	}

	utils.WriteJSON(w, ReturnOrderEntityToJSON(ro), http.StatusCreated)
}

// GetReturnOrderByID returns a single return order.
// @Summary      Get return order by ID
// @Tags         returns
// @Param        return_id   path      string  true  "Return order identifier"
// @Success      200  {object}  ReturnOrder
// @Failure      404  {object}  utils.ErrorResponse "Return order not found"
// @Router       /returns/{return_id} [get]
func (h *HTTPHandler) GetReturnOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "return_id")

	if err := h.validate.Var(returnID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ro, err := h.returns.GetReturnOrderByID(ctx, returnID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get return order")
		return
	}

	utils.WriteJSON(w, ReturnOrderEntityToJSON(ro), http.StatusOK)
}

func (h *HTTPHandler) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "return_id")

	var req UpdateReturnStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ro, err := h.returns.UpdateReturnStatus(ctx, returnID, entities.ReturnStatus(req.Status))
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to update return status")
		return
	}

	utils.WriteJSON(w, ReturnOrderEntityToJSON(ro), http.StatusOK)
}

func (h *HTTPHandler) CancelReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "return_id")

	if err := h.validate.Var(returnID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ro, err := h.returns.CancelReturnRequest(ctx, returnID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to cancel return")
		return
	}

	utils.WriteJSON(w, ReturnOrderEntityToJSON(ro), http.StatusOK)
}

func (h *HTTPHandler) AssignPickupAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "return_id")

	var req AssignAgentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ro, err := h.returns.AssignPickupAgent(ctx, returnID, req.AgentID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to assign pickup agent")
		return
	}

	utils.WriteJSON(w, ReturnOrderEntityToJSON(ro), http.StatusOK)
}

func (h *HTTPHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRefundRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	refund, err := h.checkout.InitiateRefund(ctx, service.RefundTarget{
		ReturnOrderID:  req.ReturnOrderID,
		OrderID:        req.OrderID,
		AmountOverride: req.Amount,
	})
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to initiate refund")
		return
	}

	utils.WriteJSON(w, RefundResponse{
		RefundID: refund.ID,
		Amount:   refund.Amount,
		Status:   refund.Status,
	}, http.StatusAccepted)
}

func (h *HTTPHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCheckoutSessionRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	gwReq := req.ToGatewayRequest()
	gwReq.SuccessURL = h.successURL
	gwReq.CancelURL = h.cancelURL

	url, err := h.checkout.CreateCheckoutSession(ctx, gwReq)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to create checkout session")
		return
	}

	utils.WriteJSON(w, CheckoutSessionResponse{URL: url}, http.StatusCreated)
}

// writeDomainError maps domain sentinels onto HTTP statuses. Messages come
// from the wrapped error so callers see which precondition failed.
func (h *HTTPHandler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound),
		errors.Is(err, entities.ErrReturnOrderNotFound),
		errors.Is(err, entities.ErrPaymentNotFound),
		errors.Is(err, entities.ErrAgentNotFound),
		errors.Is(err, entities.ErrUserNotFound):
		utils.WriteError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, entities.ErrConflict):
		utils.WriteError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrReturnWindowExpired):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, entities.ErrExternalService):
		h.logger.ErrorContext(ctx, logMsg, slog.Any("error", err))
		utils.WriteError(w, "payment gateway unavailable", http.StatusBadGateway)

	default:
		h.logger.ErrorContext(ctx, logMsg, slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
