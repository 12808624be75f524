package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/shoply/fulfillment-service/internal/entities"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/internal/service"
	"github.com/shoply/fulfillment-service/pkg/utils"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventChargeRefunded    = "charge.refunded"
	eventChargeFailed      = "charge.failed"

	// Stripe recommends capping webhook bodies at 64KB.
	maxWebhookBody = 65536
)

type Reconciler interface {
	OnCheckoutCompleted(ctx context.Context, sessionID string) (string, error)
	OnRefundSucceeded(ctx context.Context, ev service.RefundEvent) error
	OnRefundFailed(ctx context.Context, ev service.RefundEvent) error
}

// WebhookHandler receives Stripe events. Delivery is at-least-once, so every
// branch delegates to an idempotent reconciler entry point and a processing
// failure answers 500 to request redelivery.
type WebhookHandler struct {
	logger     *slog.Logger
	secret     string
	reconciler Reconciler
}

func NewWebhookHandler(logger *slog.Logger, secret string, reconciler Reconciler) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger.With(slog.String("handler", "webhook")),
		secret:     secret,
		reconciler: reconciler,
	}
}

func (h *WebhookHandler) Init(r chi.Router) {
	r.Post("/webhook/stripe", h.HandleStripeEvent)
}

func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		webhookSignatureErrors.Inc()
		h.logger.WarnContext(ctx, "webhook signature verification failed", slog.Any("error", err))
		utils.WriteError(w, entities.ErrInvalidSignature.Error(), http.StatusBadRequest)
		return
	}

	eventType := string(event.Type)
	if err := h.process(ctx, event); err != nil {
		webhookEventsFailed.WithLabelValues(eventType).Inc()
		h.logger.ErrorContext(ctx, "failed to process webhook event",
			slog.String("type", eventType),
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
		utils.WriteError(w, "event processing failed", http.StatusInternalServerError)
		return
	}

	webhookEventsProcessed.WithLabelValues(eventType).Inc()
	webhookProcessingDuration.Observe(time.Since(start).Seconds())
	utils.WriteJSON(w, map[string]bool{"received": true}, http.StatusOK)
}

func (h *WebhookHandler) process(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case eventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.logger.WarnContext(ctx, "malformed checkout session payload", slog.Any("error", err))
			return nil
		}

		orderUID, err := h.reconciler.OnCheckoutCompleted(ctx, sess.ID)
		if err != nil {
			return err
		}
		h.logger.InfoContext(ctx, "checkout session reconciled",
			slog.String("session_id", sess.ID),
			slog.String("order_uid", orderUID),
		)
		return nil

	case eventChargeRefunded:
		ev, status, ok := h.refundEvent(ctx, event)
		if !ok {
			return nil
		}
		// The charge event fires for every refund state change; only the
		// refund object's own status says whether the money moved.
		switch status {
		case stripe.RefundStatusSucceeded:
			return h.reconciler.OnRefundSucceeded(ctx, ev)
		case stripe.RefundStatusFailed:
			return h.reconciler.OnRefundFailed(ctx, ev)
		default:
			h.logger.InfoContext(ctx, "refund not settled yet",
				slog.String("refund_id", ev.RefundID),
				slog.String("status", string(status)),
			)
			return nil
		}

	case eventChargeFailed:
		ev, status, ok := h.refundEvent(ctx, event)
		if !ok {
			return nil
		}
		if status != "" && status != stripe.RefundStatusFailed {
			h.logger.InfoContext(ctx, "charge failed but refund is not",
				slog.String("refund_id", ev.RefundID),
				slog.String("status", string(status)),
			)
			return nil
		}
		return h.reconciler.OnRefundFailed(ctx, ev)

	default:
		// Acknowledge types this service does not consume so Stripe stops
		// redelivering them.
		h.logger.DebugContext(ctx, "ignoring webhook event", slog.String("type", string(event.Type)))
		return nil
	}
}

// refundEvent extracts the refund outcome from a charge event. Routing
// metadata lives on the refund when the gateway created it, on the charge
// otherwise. Events without routing metadata belong to other systems and are
// acked without processing.
func (h *WebhookHandler) refundEvent(ctx context.Context, event stripe.Event) (service.RefundEvent, stripe.RefundStatus, bool) {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		h.logger.WarnContext(ctx, "malformed charge payload", slog.Any("error", err))
		return service.RefundEvent{}, "", false
	}

	ev := service.RefundEvent{FailureReason: charge.FailureMessage}

	var status stripe.RefundStatus
	metadata := charge.Metadata
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		refund := charge.Refunds.Data[0]
		ev.RefundID = refund.ID
		ev.Amount = refund.Amount
		status = refund.Status
		if len(refund.Metadata) > 0 {
			metadata = refund.Metadata
		}
		if refund.FailureReason != "" {
			ev.FailureReason = string(refund.FailureReason)
		}
	}

	ev.ReturnOrderID = metadata[gateway.MetaReturnOrderID]
	ev.CancelOrderID = metadata[gateway.MetaCancelOrderID]

	if ev.ReturnOrderID == "" && ev.CancelOrderID == "" {
		h.logger.WarnContext(ctx, "charge event without routing metadata",
			slog.String("event_id", event.ID),
			slog.String("charge_id", charge.ID),
		)
		return service.RefundEvent{}, "", false
	}
	return ev, status, true
}
