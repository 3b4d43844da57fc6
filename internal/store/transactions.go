package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreateTransaction records a new payment or refund attempt.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.CheckoutTransaction) error {
	query := `
		INSERT INTO checkout_transactions (user_id, order_id, checkout_request_id, kind, phone, amount, state, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, tx, query,
		tx.UserID, tx.OrderID, tx.CheckoutRequestID, tx.Kind, tx.Phone, tx.Amount, tx.State, tx.Reason)
}

// GetTransactionByCheckoutID retrieves a transaction by its correlation id.
func (s *Store) GetTransactionByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.CheckoutTransaction, error) {
	var tx models.CheckoutTransaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM checkout_transactions WHERE checkout_request_id = $1", checkoutRequestID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction not found: %s", checkoutRequestID)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransactionState moves a transaction to a new state with a reason.
func (s *Store) UpdateTransactionState(ctx context.Context, checkoutRequestID, state, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE checkout_transactions SET state = $1, reason = $2, updated_at = NOW() WHERE checkout_request_id = $3",
		state, reason, checkoutRequestID)
	return err
}

// GetTransactionsByOrderID retrieves all attempts for an order, newest first.
func (s *Store) GetTransactionsByOrderID(ctx context.Context, orderID string) ([]models.CheckoutTransaction, error) {
	var txs []models.CheckoutTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM checkout_transactions WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return txs, err
}

// GetTransactionsByUserID retrieves a user's attempts, newest first.
func (s *Store) GetTransactionsByUserID(ctx context.Context, userID string) ([]models.CheckoutTransaction, error) {
	var txs []models.CheckoutTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM checkout_transactions WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return txs, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
