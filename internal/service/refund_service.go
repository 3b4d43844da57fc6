package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/backend"
	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/phone"
	"checkout-service/internal/poller"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrOrderNotPaid rejects refunds for orders without a confirmed payment.
	ErrOrderNotPaid = errors.New("order has no completed payment to refund")
	// ErrRefundWindowExpired rejects refunds outside the policy window.
	ErrRefundWindowExpired = errors.New("refund window has expired")
)

// RefundService handles B2C refunds for paid orders. Each accepted refund is
// followed with the same bounded watch the payment flow uses.
type RefundService struct {
	backend *backend.Client
	store   *store.Store
	events  *broker.EventPublisher
	window  time.Duration
	pollCfg poller.Config
	logger  *zap.Logger

	mu      sync.Mutex
	watches map[string]*poller.Poller
}

// NewRefundService creates a new refund service
func NewRefundService(bc *backend.Client, st *store.Store, events *broker.EventPublisher, window time.Duration, pollCfg poller.Config) *RefundService {
	return &RefundService{
		backend: bc,
		store:   st,
		events:  events,
		window:  window,
		pollCfg: pollCfg,
		logger:  util.GetLogger(),
		watches: make(map[string]*poller.Poller),
	}
}

// RefundRequest is the storefront's refund submission.
type RefundRequest struct {
	Phone  string `json:"phone" binding:"required"`
	Reason string `json:"reason"`
}

// RefundResponse carries the B2C transaction id for status tracking.
type RefundResponse struct {
	OrderID       string  `json:"order_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// Refund checks eligibility, initiates the B2C payout, records the attempt
// and starts the settlement watch. Eligibility here is a policy gate, not a
// security boundary; the backend re-validates.
func (s *RefundService) Refund(ctx context.Context, userID, token, orderID string, req *RefundRequest) (*RefundResponse, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Refund")
	defer span.End()

	msisdn, err := phone.Normalize(req.Phone)
	if err != nil {
		util.RefundsRejectedTotal.WithLabelValues("invalid_phone").Inc()
		return nil, err
	}

	order, err := s.backend.GetOrder(ctx, token, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}

	if err := refundEligible(order, time.Now(), s.window); err != nil {
		util.RefundsRejectedTotal.WithLabelValues(rejectLabel(err)).Inc()
		return nil, err
	}

	resp, err := s.backend.InitiateRefund(ctx, token, &backend.RefundRequest{
		OrderID:     orderID,
		PhoneNumber: msisdn,
		Amount:      order.TotalAmount,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("refund initiation failed: %w", err)
	}

	util.RefundsInitiatedTotal.Inc()
	s.logger.Info("Refund initiated",
		zap.String("order_id", orderID),
		zap.String("transaction_id", resp.TransactionID),
		zap.Float64("amount", order.TotalAmount))

	tx := &models.CheckoutTransaction{
		UserID:            userID,
		OrderID:           orderID,
		CheckoutRequestID: resp.TransactionID,
		Kind:              models.TransactionKindRefund,
		Phone:             msisdn,
		Amount:            order.TotalAmount,
		State:             string(poller.StateChecking),
		Reason:            req.Reason,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.logger.Error("Failed to record refund transaction", zap.Error(err))
	}

	event := &models.RefundInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRefundInitiated,
			Timestamp: time.Now(),
		},
		OrderID:       orderID,
		TransactionID: resp.TransactionID,
		Phone:         msisdn,
		Amount:        order.TotalAmount,
		Reason:        req.Reason,
	}
	if err := s.events.PublishRefundInitiated(ctx, event); err != nil {
		s.logger.Error("Failed to publish RefundInitiated event", zap.Error(err))
	}

	s.startWatch(token, orderID, resp.TransactionID)

	return &RefundResponse{
		OrderID:       orderID,
		TransactionID: resp.TransactionID,
		Amount:        order.TotalAmount,
	}, nil
}

// startWatch launches the settlement watch for a B2C transaction. Refund
// outcomes are written straight to the transaction row; there is no separate
// settlement event stream for payouts.
func (s *RefundService) startWatch(token, orderID, transactionID string) {
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		return s.backend.TransactionStatus(ctx, token, transactionID)
	}

	p := poller.New(fetch, s.pollCfg,
		func() { s.finalize(orderID, transactionID, string(poller.StateSuccess), "") },
		func(r poller.Result) { s.finalize(orderID, transactionID, string(r.State), r.Reason) },
	)

	s.mu.Lock()
	s.watches[transactionID] = p
	s.mu.Unlock()

	go func() {
		<-p.Done()
		time.Sleep(time.Minute)
		s.mu.Lock()
		delete(s.watches, transactionID)
		s.mu.Unlock()
	}()

	p.Start(context.Background())
}

func (s *RefundService) finalize(orderID, transactionID, state, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Refund settled",
		zap.String("order_id", orderID),
		zap.String("transaction_id", transactionID),
		zap.String("state", state),
		zap.String("reason", reason))

	if err := s.store.UpdateTransactionState(ctx, transactionID, state, reason); err != nil {
		s.logger.Error("Failed to record refund outcome",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}
}

// Status reports the live settlement watch when one is running, falling back
// to the recorded transaction.
func (s *RefundService) Status(ctx context.Context, transactionID string) (*StatusResponse, error) {
	s.mu.Lock()
	p, ok := s.watches[transactionID]
	s.mu.Unlock()

	if ok {
		resp := &StatusResponse{
			CheckoutRequestID: transactionID,
			State:             string(p.State()),
			RemainingSeconds:  int(p.Remaining().Seconds()),
		}
		if res, terminal := p.Result(); terminal {
			resp.Reason = res.Reason
		}
		return resp, nil
	}

	tx, err := s.store.GetTransactionByCheckoutID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		CheckoutRequestID: transactionID,
		State:             tx.State,
		Reason:            tx.Reason,
	}, nil
}

// refundEligible enforces the client-side refund policy: the order must be
// paid and within the window from its creation date.
func refundEligible(order *models.Order, now time.Time, window time.Duration) error {
	if order.PaymentStatus != models.PaymentStatusPaid {
		return ErrOrderNotPaid
	}
	if now.Sub(order.CreatedAt) > window {
		return ErrRefundWindowExpired
	}
	return nil
}

func rejectLabel(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotPaid):
		return "not_paid"
	case errors.Is(err, ErrRefundWindowExpired):
		return "window_expired"
	default:
		return "other"
	}
}
