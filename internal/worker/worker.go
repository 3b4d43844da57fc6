// Package worker finalizes checkout transactions from payment lifecycle
// events, so terminal states land in Postgres even when they were produced
// by another instance.
package worker

import (
	"context"
	"fmt"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/poller"
	"checkout-service/internal/store"
)

// TransactionWorker consumes payment events and records terminal states.
type TransactionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
}

// NewTransactionWorker creates a new transaction worker
func NewTransactionWorker(consumer *broker.Consumer, st *store.Store) *TransactionWorker {
	w := &TransactionWorker{
		consumer: consumer,
		store:    st,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentSuccess(w.handlePaymentSuccess)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	eventHandler.OnPaymentTimeout(w.handlePaymentTimeout)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *TransactionWorker) Start(ctx context.Context) error {
	log.Println("Starting transaction worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TransactionWorker) Stop() error {
	log.Println("Stopping transaction worker...")
	return w.consumer.Close()
}

func (w *TransactionWorker) handlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	return w.finalize(ctx, event.EventID, event.EventType, event.CheckoutRequestID, string(poller.StateSuccess), "")
}

func (w *TransactionWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return w.finalize(ctx, event.EventID, event.EventType, event.CheckoutRequestID, string(poller.StateFailed), event.Reason)
}

func (w *TransactionWorker) handlePaymentTimeout(ctx context.Context, event *models.PaymentTimeoutEvent) error {
	return w.finalize(ctx, event.EventID, event.EventType, event.CheckoutRequestID, string(poller.StateTimeout), poller.ReasonTimeout)
}

// finalize is idempotent per event id: replays and duplicate deliveries are
// skipped via the processed_events table.
func (w *TransactionWorker) finalize(ctx context.Context, eventID, eventType, checkoutRequestID, state, reason string) error {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		log.Printf("Event already processed: %s", eventID)
		return nil
	}

	if err := w.store.UpdateTransactionState(ctx, checkoutRequestID, state, reason); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", checkoutRequestID, err)
	}

	if err := w.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	log.Printf("Transaction finalized: checkout_request_id=%s, state=%s", checkoutRequestID, state)
	return nil
}
