// Package cart is the Redis-backed store for per-user carts and wishlists.
// All access goes through the explicit Store API; there is no ambient state.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Store struct {
	rdb *redis.Client
}

// NewStore connects to Redis and verifies the connection.
func NewStore(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func wishlistKey(userID string) string {
	return fmt.Sprintf("wishlist:%s", userID)
}

// AddItem inserts an item or, when the product is already in the cart,
// increments its quantity while keeping the original snapshot.
func (s *Store) AddItem(ctx context.Context, userID string, item models.CartItem) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", item.Quantity)
	}

	existing, err := s.getItem(ctx, userID, item.ProductID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Quantity += item.Quantity
		return s.putItem(ctx, userID, *existing)
	}

	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	return s.putItem(ctx, userID, item)
}

// SetQuantity sets the quantity of an existing line; zero removes it.
func (s *Store) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", quantity)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	item, err := s.getItem(ctx, userID, productID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("product %s not in cart", productID)
	}

	item.Quantity = quantity
	return s.putItem(ctx, userID, *item)
}

// RemoveItem deletes a line from the cart.
func (s *Store) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.rdb.HDel(ctx, cartKey(userID), productID).Err()
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, cartKey(userID)).Err()
}

// Items returns all cart lines, oldest first.
func (s *Store) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	items := make([]models.CartItem, 0, len(raw))
	for _, v := range raw {
		var item models.CartItem
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("corrupt cart entry: %w", err)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}

func (s *Store) getItem(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	v, err := s.rdb.HGet(ctx, cartKey(userID), productID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart item: %w", err)
	}

	var item models.CartItem
	if err := json.Unmarshal([]byte(v), &item); err != nil {
		return nil, fmt.Errorf("corrupt cart entry: %w", err)
	}
	return &item, nil
}

func (s *Store) putItem(ctx context.Context, userID string, item models.CartItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal cart item: %w", err)
	}
	return s.rdb.HSet(ctx, cartKey(userID), item.ProductID, payload).Err()
}

// WishlistAdd stores a product snapshot on the user's wishlist.
func (s *Store) WishlistAdd(ctx context.Context, userID string, item models.CartItem) error {
	item.Quantity = 1
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal wishlist item: %w", err)
	}
	return s.rdb.HSet(ctx, wishlistKey(userID), item.ProductID, payload).Err()
}

// WishlistRemove deletes a product from the wishlist.
func (s *Store) WishlistRemove(ctx context.Context, userID, productID string) error {
	return s.rdb.HDel(ctx, wishlistKey(userID), productID).Err()
}

// WishlistItems returns the wishlist contents.
func (s *Store) WishlistItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	raw, err := s.rdb.HGetAll(ctx, wishlistKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read wishlist: %w", err)
	}

	items := make([]models.CartItem, 0, len(raw))
	for _, v := range raw {
		var item models.CartItem
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("corrupt wishlist entry: %w", err)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

// ClaimIdempotencyKey atomically claims a checkout idempotency key.
// Returns false when the key was already claimed within the TTL.
func (s *Store) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ReleaseIdempotencyKey frees a claimed key so a failed checkout can retry.
func (s *Store) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}
