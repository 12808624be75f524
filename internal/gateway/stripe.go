package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shoply/fulfillment-service/internal/entities"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Metadata keys carried on checkout sessions and refunds. The webhook reads
// them back to route events, so both sides must agree.
const (
	MetaUserID        = "user_id"
	MetaGuestID       = "guest_id"
	MetaIsGuest       = "is_guest"
	MetaReturnOrderID = "return_order_id"
	MetaCancelOrderID = "cancel_order_id"

	metaProductID     = "product_id"
	metaCategory      = "category"
	metaOriginalPrice = "original_price"

	metaShipFullName    = "shipping_full_name"
	metaShipPhoneNumber = "shipping_phone_number"
	metaShipAddressLine = "shipping_address_line"
	metaShipCity        = "shipping_city"
	metaShipState       = "shipping_state"
	metaShipPostalCode  = "shipping_postal_code"
	metaShipCountry     = "shipping_country"
)

type LineItem struct {
	ProductID     string
	Name          string
	Category      string
	Image         string
	OriginalPrice int64
	Quantity      int
	Amount        int64
}

// Session is the expanded view of a completed checkout session: everything
// the reconciler needs to materialize an order and its payment.
type Session struct {
	ID              string
	PaymentIntentID string
	Email           string
	UserID          string
	GuestID         string
	IsGuest         bool
	AmountTotal     int64
	PaymentMethod   string
	ReceiptURL      string
	CreatedAt       time.Time
	ShippingAddress entities.Address
	Items           []LineItem
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

type CheckoutItem struct {
	ProductID     string
	Name          string
	Category      string
	Image         string
	Price         int64
	OriginalPrice int64
	Quantity      int
}

type CheckoutRequest struct {
	UserID          string
	GuestID         string
	IsGuest         bool
	Email           string
	Currency        string
	Items           []CheckoutItem
	ShippingAddress entities.Address
	SuccessURL      string
	CancelURL       string
}

type Config struct {
	SecretKey string
	Timeout   time.Duration
	Currency  string
}

type stripeSessionAPI interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Client wraps the Stripe API surface the core needs: retrieve/expand a
// checkout session, create a checkout session, create a refund. Calls carry
// the request timeout on the HTTP client, never a held lock.
type Client struct {
	sessions stripeSessionAPI
	refunds  stripeRefundAPI
	currency string
	logger   *slog.Logger
}

func New(logger *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sc := client.New(cfg.SecretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	currency := cfg.Currency
	if currency == "" {
		currency = "aed"
	}

	return &Client{
		sessions: sc.CheckoutSessions,
		refunds:  sc.Refunds,
		currency: currency,
		logger:   logger.With(slog.String("component", "stripe")),
	}
}

// NewWithAPI wires explicit API implementations, for tests.
func NewWithAPI(logger *slog.Logger, sessions stripeSessionAPI, refunds stripeRefundAPI) *Client {
	return &Client{
		sessions: sessions,
		refunds:  refunds,
		currency: "aed",
		logger:   logger.With(slog.String("component", "stripe")),
	}
}

// RetrieveSession fetches a checkout session with line items, products and
// the payment intent's latest charge expanded.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	params.AddExpand("payment_intent.latest_charge")

	sess, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: retrieve session %s: %v", entities.ErrExternalService, sessionID, err)
	}
	return sessionFromStripe(sess), nil
}

// CreateRefund starts a refund against the session's payment intent. The
// metadata names the local entity so the refund webhook can route back.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, metadata map[string]string) (Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	refund, err := c.refunds.New(params)
	if err != nil {
		return Refund{}, fmt.Errorf("%w: create refund: %v", entities.ErrExternalService, err)
	}

	c.logger.InfoContext(ctx, "refund created",
		slog.String("refund_id", refund.ID), slog.Int64("amount", refund.Amount))
	return Refund{ID: refund.ID, Amount: refund.Amount, Status: string(refund.Status)}, nil
}

// CreateCheckoutSession builds a payment-mode checkout session. The shipping
// address and owner hints ride in session metadata so the completion webhook
// can reconstruct them without another data source.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
			Metadata: map[string]string{
				metaProductID:     item.ProductID,
				metaCategory:      item.Category,
				metaOriginalPrice: strconv.FormatInt(item.OriginalPrice, 10),
			},
		}
		if item.Image != "" {
			product.Images = stripe.StringSlice([]string{item.Image})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.Price),
				ProductData: product,
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.Email),
		LineItems:     lineItems,
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		Params: stripe.Params{
			Metadata: map[string]string{
				MetaUserID:          req.UserID,
				MetaGuestID:         req.GuestID,
				MetaIsGuest:         strconv.FormatBool(req.IsGuest),
				metaShipFullName:    req.ShippingAddress.FullName,
				metaShipPhoneNumber: req.ShippingAddress.PhoneNumber,
				metaShipAddressLine: req.ShippingAddress.AddressLine,
				metaShipCity:        req.ShippingAddress.City,
				metaShipState:       req.ShippingAddress.State,
				metaShipPostalCode:  req.ShippingAddress.PostalCode,
				metaShipCountry:     req.ShippingAddress.Country,
			},
		},
	}
	params.Context = ctx

	sess, err := c.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", entities.ErrExternalService, err)
	}
	return sess.URL, nil
}

func sessionFromStripe(sess *stripe.CheckoutSession) Session {
	meta := sess.Metadata

	out := Session{
		ID:          sess.ID,
		UserID:      meta[MetaUserID],
		GuestID:     meta[MetaGuestID],
		IsGuest:     meta[MetaIsGuest] == "true",
		AmountTotal: sess.AmountTotal,
		CreatedAt:   time.Unix(sess.Created, 0),
		ShippingAddress: entities.Address{
			FullName:    meta[metaShipFullName],
			PhoneNumber: meta[metaShipPhoneNumber],
			AddressLine: meta[metaShipAddressLine],
			City:        meta[metaShipCity],
			State:       meta[metaShipState],
			PostalCode:  meta[metaShipPostalCode],
			Country:     meta[metaShipCountry],
		},
	}

	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		out.Email = sess.CustomerDetails.Email
	} else {
		out.Email = sess.CustomerEmail
	}

	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
		if sess.PaymentIntent.LatestCharge != nil {
			out.ReceiptURL = sess.PaymentIntent.LatestCharge.ReceiptURL
		}
	}
	if len(sess.PaymentMethodTypes) > 0 {
		out.PaymentMethod = sess.PaymentMethodTypes[0]
	}

	if sess.LineItems != nil {
		out.Items = make([]LineItem, 0, len(sess.LineItems.Data))
		for _, item := range sess.LineItems.Data {
			line := LineItem{
				Name:     item.Description,
				Quantity: int(item.Quantity),
				Amount:   item.AmountTotal,
			}
			if item.Price != nil && item.Price.Product != nil {
				product := item.Price.Product
				line.ProductID = product.Metadata[metaProductID]
				line.Category = product.Metadata[metaCategory]
				if raw, ok := product.Metadata[metaOriginalPrice]; ok {
					line.OriginalPrice, _ = strconv.ParseInt(raw, 10, 64)
				}
				if len(product.Images) > 0 {
					line.Image = product.Images[0]
				}
			}
			out.Items = append(out.Items, line)
		}
	}

	return out
}
