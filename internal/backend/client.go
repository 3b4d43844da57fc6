// Package backend is the HTTP client for the upstream commerce API that
// owns products, orders and the M-Pesa gateway integration. Every call
// forwards the caller's bearer token.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the commerce backend.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

// APIError is a non-2xx response from the backend. Its message is safe to
// surface to the user verbatim (business errors like "refund already
// processed" arrive this way).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// OrderRequest is the payload for POST /orders.
type OrderRequest struct {
	Items           []models.OrderItem  `json:"items"`
	ShippingAddress models.ShippingInfo `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	Subtotal        float64             `json:"subtotal"`
	Tax             float64             `json:"tax"`
	ShippingCost    float64             `json:"shippingCost"`
	TotalAmount     float64             `json:"totalAmount"`
}

// PaymentRequest is the payload for POST /mpesa/initiate-payment.
type PaymentRequest struct {
	OrderID          string  `json:"orderId"`
	PhoneNumber      string  `json:"phoneNumber"`
	Amount           float64 `json:"amount"`
	AccountReference string  `json:"accountReference"`
	TransactionDesc  string  `json:"transactionDesc"`
}

// PaymentResponse carries the correlation id used to track the STK push.
type PaymentResponse struct {
	Success             bool   `json:"success"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	ResponseDescription string `json:"responseDescription"`
}

// RefundRequest is the payload for POST /mpesa/b2c/refund.
type RefundRequest struct {
	OrderID     string  `json:"orderId"`
	PhoneNumber string  `json:"phoneNumber"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
}

// RefundResponse carries the B2C transaction id for status tracking.
type RefundResponse struct {
	Success             bool   `json:"success"`
	TransactionID       string `json:"transactionId"`
	ResponseDescription string `json:"responseDescription"`
}

// CreateOrder submits an order and returns the backend's record of it.
func (c *Client) CreateOrder(ctx context.Context, token string, req *OrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, token, http.MethodPost, "/orders", "create_order", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches the full order record.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (*models.Order, error) {
	var order models.Order
	path := "/orders/" + orderID
	if err := c.do(ctx, token, http.MethodGet, path, "get_order", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// InitiatePayment triggers an STK push for the given order.
func (c *Client) InitiatePayment(ctx context.Context, token string, req *PaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.do(ctx, token, http.MethodPost, "/mpesa/initiate-payment", "initiate_payment", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.CheckoutRequestID == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: resp.ResponseDescription}
	}
	return &resp, nil
}

// PaymentStatus queries the STK push status and normalizes the response.
func (c *Client) PaymentStatus(ctx context.Context, token, checkoutRequestID string) (PollResult, error) {
	var env statusEnvelope
	path := "/mpesa/payment-status/" + checkoutRequestID
	if err := c.do(ctx, token, http.MethodGet, path, "payment_status", nil, &env); err != nil {
		return PollResult{}, err
	}
	return normalizeStatus(env.Data), nil
}

// InitiateRefund triggers a B2C refund for a paid order.
func (c *Client) InitiateRefund(ctx context.Context, token string, req *RefundRequest) (*RefundResponse, error) {
	var resp RefundResponse
	if err := c.do(ctx, token, http.MethodPost, "/mpesa/b2c/refund", "initiate_refund", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.TransactionID == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: resp.ResponseDescription}
	}
	return &resp, nil
}

// TransactionStatus queries a B2C transaction and normalizes the response.
func (c *Client) TransactionStatus(ctx context.Context, token, transactionID string) (PollResult, error) {
	var env statusEnvelope
	path := "/mpesa/b2c/my-transaction/" + transactionID
	if err := c.do(ctx, token, http.MethodGet, path, "transaction_status", nil, &env); err != nil {
		return PollResult{}, err
	}
	return normalizeStatus(env.Data), nil
}

// ListProducts fetches the catalog for the admin CSV export.
func (c *Client) ListProducts(ctx context.Context, token string) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, token, http.MethodGet, "/products", "list_products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// BulkUpsertProducts pushes imported products upstream.
func (c *Client) BulkUpsertProducts(ctx context.Context, token string, products []models.Product) error {
	return c.do(ctx, token, http.MethodPost, "/products/bulk", "bulk_upsert_products", products, nil)
}

// errorBody covers the error shapes the backend is known to emit.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, token, method, path, endpoint string, body, out interface{}) error {
	start := time.Now()
	defer func() {
		util.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb errorBody
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			if eb.Error != "" {
				msg = eb.Error
			} else if eb.Message != "" {
				msg = eb.Message
			}
		}
		c.logger.Warn("Backend call failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
