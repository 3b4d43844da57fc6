package models

import "time"

// CartItem is a line in a user's cart. Name, price, SKU and image are a
// snapshot of the product at add time, not a live reference.
type CartItem struct {
	ProductID string    `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// ShippingInfo is the contact/address block submitted with an order.
type ShippingInfo struct {
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Email      string `json:"email"`
	Address    string `json:"address" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postal_code"`
	Notes      string `json:"notes"`
}

// OrderSummary is derived from cart contents; it is never persisted.
type OrderSummary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// OrderItem is a line in a placed order as the backend returns it.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// Order is the backend's order record, held here as a read model only.
type Order struct {
	ID              string       `json:"id"`
	Status          string       `json:"status"`
	PaymentStatus   string       `json:"payment_status"`
	Items           []OrderItem  `json:"items"`
	ShippingAddress ShippingInfo `json:"shipping_address"`
	PaymentMethod   string       `json:"payment_method"`
	Subtotal        float64      `json:"subtotal"`
	Tax             float64      `json:"tax"`
	ShippingCost    float64      `json:"shipping_cost"`
	TotalAmount     float64      `json:"total_amount"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Order statuses (backend-owned)
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses (backend-owned)
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Transaction kinds
const (
	TransactionKindPayment = "payment"
	TransactionKindRefund  = "refund"
)

// CheckoutTransaction records one payment or refund attempt.
type CheckoutTransaction struct {
	ID                int64     `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	OrderID           string    `db:"order_id" json:"order_id"`
	CheckoutRequestID string    `db:"checkout_request_id" json:"checkout_request_id"`
	Kind              string    `db:"kind" json:"kind"`
	Phone             string    `db:"phone" json:"phone"`
	Amount            float64   `db:"amount" json:"amount"`
	State             string    `db:"state" json:"state"`
	Reason            string    `db:"reason" json:"reason,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Product mirrors the upstream catalog record, used by the admin CSV surface.
type Product struct {
	ID    string  `json:"id,omitempty"`
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	Image string  `json:"image,omitempty"`
}

// ProcessedEvent for worker idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
