package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/backend"
	"checkout-service/internal/broker"
	"checkout-service/internal/cart"
	"checkout-service/internal/models"
	"checkout-service/internal/phone"
	"checkout-service/internal/poller"
	"checkout-service/internal/pricing"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCart rejects checkout before any network call.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDuplicateCheckout rejects a re-submitted idempotency key.
	ErrDuplicateCheckout = errors.New("checkout already in progress for this key")
)

const idempotencyTTL = 10 * time.Minute

// CheckoutService drives the cart -> order -> payment -> poll workflow.
type CheckoutService struct {
	backend *backend.Client
	cart    *cart.Store
	store   *store.Store
	events  *broker.EventPublisher
	rules   pricing.Rules
	pollCfg poller.Config
	logger  *zap.Logger

	mu      sync.Mutex
	watches map[string]*poller.Poller
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	bc *backend.Client,
	cartStore *cart.Store,
	st *store.Store,
	events *broker.EventPublisher,
	rules pricing.Rules,
	pollCfg poller.Config,
) *CheckoutService {
	return &CheckoutService{
		backend: bc,
		cart:    cartStore,
		store:   st,
		events:  events,
		rules:   rules,
		pollCfg: pollCfg,
		logger:  util.GetLogger(),
		watches: make(map[string]*poller.Poller),
	}
}

// PlaceOrderRequest is the checkout submission from the storefront.
type PlaceOrderRequest struct {
	Shipping       models.ShippingInfo `json:"shipping" binding:"required"`
	PaymentMethod  string              `json:"payment_method"`
	Phone          string              `json:"phone" binding:"required"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

// PlaceOrderResponse reports the created order and the payment correlation id.
type PlaceOrderResponse struct {
	OrderID           string              `json:"order_id"`
	CheckoutRequestID string              `json:"checkout_request_id"`
	Summary           models.OrderSummary `json:"summary"`
	State             string              `json:"state"`
}

// PlaceOrder validates the cart and phone, submits the order upstream,
// initiates the STK push, and starts the status watch. The cart is not
// touched until payment is confirmed.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID, token string, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	util.CheckoutsStartedTotal.Inc()

	msisdn, err := phone.Normalize(req.Phone)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_phone").Inc()
		return nil, err
	}

	items, err := s.cart.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}
	claimed, err := s.cart.ClaimIdempotencyKey(ctx, req.IdempotencyKey, idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateCheckout
	}

	summary := pricing.Summarize(items, s.rules)
	method := req.PaymentMethod
	if method == "" {
		method = "mpesa"
	}

	order, err := s.backend.CreateOrder(ctx, token, buildOrderRequest(items, req.Shipping, method, summary))
	if err != nil {
		s.releaseKey(req.IdempotencyKey)
		util.CheckoutsFailedTotal.WithLabelValues("order_submission").Inc()
		return nil, fmt.Errorf("order submission failed: %w", err)
	}

	s.logger.Info("Order created upstream",
		zap.String("order_id", order.ID),
		zap.Float64("total", summary.Total))

	payment, err := s.backend.InitiatePayment(ctx, token, &backend.PaymentRequest{
		OrderID:          order.ID,
		PhoneNumber:      msisdn,
		Amount:           summary.Total,
		AccountReference: order.ID,
		TransactionDesc:  fmt.Sprintf("Payment for order %s", order.ID),
	})
	if err != nil {
		// The order now exists upstream in an unpaid state; the key is
		// released so the user can retry checkout.
		s.releaseKey(req.IdempotencyKey)
		util.CheckoutsFailedTotal.WithLabelValues("payment_initiation").Inc()
		return nil, fmt.Errorf("payment initiation failed: %w", err)
	}

	util.PaymentsInitiatedTotal.Inc()

	tx := &models.CheckoutTransaction{
		UserID:            userID,
		OrderID:           order.ID,
		CheckoutRequestID: payment.CheckoutRequestID,
		Kind:              models.TransactionKindPayment,
		Phone:             msisdn,
		Amount:            summary.Total,
		State:             string(poller.StateChecking),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.logger.Error("Failed to record checkout transaction", zap.Error(err))
	}

	event := &models.PaymentInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentInitiated,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		CheckoutRequestID: payment.CheckoutRequestID,
		Phone:             msisdn,
		Amount:            summary.Total,
	}
	if err := s.events.PublishPaymentInitiated(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentInitiated event", zap.Error(err))
	}

	s.startWatch(userID, token, order.ID, payment.CheckoutRequestID, summary.Total)

	return &PlaceOrderResponse{
		OrderID:           order.ID,
		CheckoutRequestID: payment.CheckoutRequestID,
		Summary:           summary,
		State:             string(poller.StateChecking),
	}, nil
}

// startWatch launches the status poller for a checkout request and registers
// it so status queries and cancellation can reach it.
func (s *CheckoutService) startWatch(userID, token, orderID, checkoutRequestID string, amount float64) {
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		return s.backend.PaymentStatus(ctx, token, checkoutRequestID)
	}

	p := poller.New(fetch, s.pollCfg,
		func() { s.handleSuccess(userID, token, orderID, checkoutRequestID, amount) },
		func(r poller.Result) { s.handleFailure(orderID, checkoutRequestID, r) },
	)

	s.mu.Lock()
	s.watches[checkoutRequestID] = p
	s.mu.Unlock()

	go func() {
		<-p.Done()
		// Keep terminal watches around briefly so the UI sees the final
		// state before the DB row takes over.
		time.Sleep(time.Minute)
		s.mu.Lock()
		delete(s.watches, checkoutRequestID)
		s.mu.Unlock()
	}()

	p.Start(context.Background())
}

func (s *CheckoutService) handleSuccess(userID, token, orderID, checkoutRequestID string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Payment confirmed",
		zap.String("order_id", orderID),
		zap.String("checkout_request_id", checkoutRequestID))

	order, err := s.backend.GetOrder(ctx, token, orderID)
	if err != nil {
		s.logger.Warn("Failed to fetch confirmed order", zap.String("order_id", orderID), zap.Error(err))
		order = nil
	} else if order.PaymentStatus != models.PaymentStatusPaid {
		s.logger.Warn("Order not yet marked paid upstream",
			zap.String("order_id", orderID),
			zap.String("payment_status", order.PaymentStatus))
	}

	event := &models.PaymentSuccessEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSuccess,
			Timestamp: time.Now(),
		},
		OrderID:           orderID,
		CheckoutRequestID: checkoutRequestID,
		Amount:            settledAmount(order, amount),
	}
	if err := s.events.PublishPaymentSuccess(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentSuccess event", zap.Error(err))
	}

	// The backend clears the cart server-side after confirmed payment;
	// mirror that here.
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart after payment", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CheckoutService) handleFailure(orderID, checkoutRequestID string, res poller.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Warn("Payment did not complete",
		zap.String("order_id", orderID),
		zap.String("checkout_request_id", checkoutRequestID),
		zap.String("state", string(res.State)),
		zap.String("reason", res.Reason))

	base := models.BaseEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now(),
	}

	var err error
	if res.State == poller.StateTimeout {
		base.EventType = models.EventTypePaymentTimeout
		err = s.events.PublishPaymentTimeout(ctx, &models.PaymentTimeoutEvent{
			BaseEvent:         base,
			OrderID:           orderID,
			CheckoutRequestID: checkoutRequestID,
		})
	} else {
		base.EventType = models.EventTypePaymentFailed
		err = s.events.PublishPaymentFailed(ctx, &models.PaymentFailedEvent{
			BaseEvent:         base,
			OrderID:           orderID,
			CheckoutRequestID: checkoutRequestID,
			Reason:            res.Reason,
		})
	}
	if err != nil {
		s.logger.Error("Failed to publish payment outcome event", zap.Error(err))
	}
}

// StatusResponse reports poll progress to the storefront.
type StatusResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	State             string `json:"state"`
	Reason            string `json:"reason,omitempty"`
	RemainingSeconds  int    `json:"remaining_seconds"`
}

// Status reports the live watch state when one is running, falling back to
// the recorded transaction.
func (s *CheckoutService) Status(ctx context.Context, checkoutRequestID string) (*StatusResponse, error) {
	s.mu.Lock()
	p, ok := s.watches[checkoutRequestID]
	s.mu.Unlock()

	if ok {
		resp := &StatusResponse{
			CheckoutRequestID: checkoutRequestID,
			State:             string(p.State()),
			RemainingSeconds:  int(p.Remaining().Seconds()),
		}
		if res, terminal := p.Result(); terminal {
			resp.Reason = res.Reason
		}
		return resp, nil
	}

	tx, err := s.store.GetTransactionByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		CheckoutRequestID: checkoutRequestID,
		State:             tx.State,
		Reason:            tx.Reason,
	}, nil
}

// CancelWatch stops the server-side watch for a checkout request, e.g. when
// the user closes the payment modal. Safe to call for unknown ids.
func (s *CheckoutService) CancelWatch(checkoutRequestID string) {
	s.mu.Lock()
	p, ok := s.watches[checkoutRequestID]
	delete(s.watches, checkoutRequestID)
	s.mu.Unlock()

	if ok {
		p.Stop()
	}
}

// Transactions lists a user's checkout attempts.
func (s *CheckoutService) Transactions(ctx context.Context, userID string) ([]models.CheckoutTransaction, error) {
	return s.store.GetTransactionsByUserID(ctx, userID)
}

func (s *CheckoutService) releaseKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cart.ReleaseIdempotencyKey(ctx, key); err != nil {
		s.logger.Error("Failed to release idempotency key", zap.Error(err))
	}
}

// settledAmount prefers the backend's recorded order total over the amount
// tracked at initiation, falling back when the confirmed order could not be
// fetched.
func settledAmount(order *models.Order, initiated float64) float64 {
	if order != nil && order.TotalAmount > 0 {
		return order.TotalAmount
	}
	return initiated
}

// buildOrderRequest assembles the upstream order payload from the cart
// snapshot and the computed summary.
func buildOrderRequest(items []models.CartItem, shipping models.ShippingInfo, method string, summary models.OrderSummary) *backend.OrderRequest {
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, models.OrderItem{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Price:     it.Price,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}

	return &backend.OrderRequest{
		Items:           orderItems,
		ShippingAddress: shipping,
		PaymentMethod:   method,
		Subtotal:        summary.Subtotal,
		Tax:             summary.Tax,
		ShippingCost:    summary.Shipping,
		TotalAmount:     summary.Total,
	}
}
