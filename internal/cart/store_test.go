package cart

import (
	"context"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRoundTrip(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	store, err := NewStore("localhost:6379", "", 1)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	userID := "test-user-cart"
	defer store.Clear(ctx, userID)

	err = store.AddItem(ctx, userID, models.CartItem{
		ProductID: "p1", SKU: "SKU-1", Name: "Widget", Price: 1200, Quantity: 1,
	})
	require.NoError(t, err)

	// Adding the same product again bumps the quantity.
	err = store.AddItem(ctx, userID, models.CartItem{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	items, err := store.Items(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Widget", items[0].Name)

	require.NoError(t, store.SetQuantity(ctx, userID, "p1", 0))
	items, err = store.Items(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIdempotencyKeyClaim(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	store, err := NewStore("localhost:6379", "", 1)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	ok, err := store.ClaimIdempotencyKey(ctx, "chk-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimIdempotencyKey(ctx, "chk-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseIdempotencyKey(ctx, "chk-1"))
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	s := &Store{}
	err := s.AddItem(context.Background(), "u1", models.CartItem{ProductID: "p1", Quantity: 0})
	assert.Error(t, err)
}
