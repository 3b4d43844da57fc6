package pricing

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeSingleItem(t *testing.T) {
	items := []models.CartItem{
		{ProductID: "p1", Price: 1200, Quantity: 1},
	}

	sum := Summarize(items, DefaultRules)

	assert.Equal(t, 1200.0, sum.Subtotal)
	assert.Equal(t, 500.0, sum.Shipping)
	assert.Equal(t, 192.0, sum.Tax)
	assert.Equal(t, 1892.0, sum.Total)
}

func TestSummarizeFreeShippingAboveThreshold(t *testing.T) {
	items := []models.CartItem{
		{ProductID: "p1", Price: 2600, Quantity: 2},
	}

	sum := Summarize(items, DefaultRules)

	assert.Equal(t, 5200.0, sum.Subtotal)
	assert.Equal(t, 0.0, sum.Shipping)
	assert.Equal(t, 832.0, sum.Tax)
	assert.Equal(t, 6032.0, sum.Total)
}

func TestSummarizeThresholdIsExclusive(t *testing.T) {
	// Exactly at the threshold still pays shipping.
	items := []models.CartItem{
		{ProductID: "p1", Price: 5000, Quantity: 1},
	}

	sum := Summarize(items, DefaultRules)

	assert.Equal(t, 500.0, sum.Shipping)
}

func TestSummarizeTotalIdentity(t *testing.T) {
	carts := [][]models.CartItem{
		{{Price: 99.99, Quantity: 3}},
		{{Price: 1, Quantity: 1}},
		{{Price: 4999.99, Quantity: 1}, {Price: 0.01, Quantity: 1}},
		{{Price: 350, Quantity: 2}, {Price: 1200, Quantity: 1}},
	}

	for _, items := range carts {
		sum := Summarize(items, DefaultRules)
		assert.InDelta(t, sum.Subtotal+sum.Shipping+sum.Tax, sum.Total, 0.011)
	}
}

func TestSummarizeEmptyCart(t *testing.T) {
	sum := Summarize(nil, DefaultRules)
	assert.Equal(t, models.OrderSummary{}, sum)
}
