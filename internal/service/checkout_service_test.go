package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/pricing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrderRequest(t *testing.T) {
	items := []models.CartItem{
		{ProductID: "p1", SKU: "SKU-1", Name: "Widget", Price: 1200, Image: "w.png", Quantity: 1},
	}
	shipping := models.ShippingInfo{
		FullName: "Jane Wanjiku",
		Phone:    "0712345678",
		Address:  "Moi Avenue 12",
		City:     "Nairobi",
	}
	summary := pricing.Summarize(items, pricing.DefaultRules)

	req := buildOrderRequest(items, shipping, "mpesa", summary)

	assert.Len(t, req.Items, 1)
	assert.Equal(t, "p1", req.Items[0].ProductID)
	assert.Equal(t, "SKU-1", req.Items[0].SKU)
	assert.Equal(t, "mpesa", req.PaymentMethod)
	assert.Equal(t, shipping, req.ShippingAddress)
	assert.Equal(t, 1200.0, req.Subtotal)
	assert.Equal(t, 500.0, req.ShippingCost)
	assert.Equal(t, 192.0, req.Tax)
	assert.Equal(t, 1892.0, req.TotalAmount)
}

func TestSettledAmount(t *testing.T) {
	order := &models.Order{ID: "ord-1", TotalAmount: 1892}
	assert.Equal(t, 1892.0, settledAmount(order, 1500))
	assert.Equal(t, 1500.0, settledAmount(nil, 1500), "falls back when the order fetch failed")
	assert.Equal(t, 1500.0, settledAmount(&models.Order{}, 1500), "falls back when the backend omits the total")
}

func TestPlaceOrderRequiresValidPhone(t *testing.T) {
	s := &CheckoutService{}
	_, err := s.PlaceOrder(context.Background(), "u1", "tok", &PlaceOrderRequest{Phone: "12345"})
	assert.Error(t, err)
}
