// Package pricing derives order summaries from cart contents.
package pricing

import (
	"math"

	"checkout-service/internal/models"
)

// Rules holds the storefront pricing knobs.
type Rules struct {
	ShippingFee           float64
	FreeShippingThreshold float64
	TaxRate               float64
}

// DefaultRules matches the production storefront: 500 KES flat shipping,
// waived above 5000 KES, 16% VAT.
var DefaultRules = Rules{
	ShippingFee:           500,
	FreeShippingThreshold: 5000,
	TaxRate:               0.16,
}

// Summarize computes subtotal, shipping, tax and total for the given items.
// Shipping is waived when the subtotal exceeds the threshold. An empty cart
// yields a zero summary.
func Summarize(items []models.CartItem, r Rules) models.OrderSummary {
	var subtotal float64
	for _, it := range items {
		subtotal += it.Price * float64(it.Quantity)
	}
	if subtotal == 0 {
		return models.OrderSummary{}
	}

	shipping := r.ShippingFee
	if subtotal > r.FreeShippingThreshold {
		shipping = 0
	}

	tax := round2(subtotal * r.TaxRate)
	return models.OrderSummary{
		Subtotal: round2(subtotal),
		Shipping: shipping,
		Tax:      tax,
		Total:    round2(subtotal + shipping + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
