package models

import "time"

// Event types
const (
	EventTypePaymentInitiated = "PAYMENT_INITIATED"
	EventTypePaymentSuccess   = "PAYMENT_SUCCESS"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentTimeout   = "PAYMENT_TIMEOUT"
	EventTypeRefundInitiated  = "REFUND_INITIATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentInitiatedEvent published when an STK push is accepted upstream
type PaymentInitiatedEvent struct {
	BaseEvent
	OrderID           string  `json:"order_id"`
	CheckoutRequestID string  `json:"checkout_request_id"`
	Phone             string  `json:"phone"`
	Amount            float64 `json:"amount"`
}

// PaymentSuccessEvent published when the poller reaches success
type PaymentSuccessEvent struct {
	BaseEvent
	OrderID           string  `json:"order_id"`
	CheckoutRequestID string  `json:"checkout_request_id"`
	Amount            float64 `json:"amount"`
}

// PaymentFailedEvent published when the poller reaches failed
type PaymentFailedEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Reason            string `json:"reason"`
}

// PaymentTimeoutEvent published when the poll budget is exhausted
type PaymentTimeoutEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

// RefundInitiatedEvent published when a B2C refund is accepted upstream
type RefundInitiatedEvent struct {
	BaseEvent
	OrderID       string  `json:"order_id"`
	TransactionID string  `json:"transaction_id"`
	Phone         string  `json:"phone"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}
