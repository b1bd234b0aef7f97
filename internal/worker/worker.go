package worker

import (
	"context"
	"fmt"

	"food-order-service/internal/broker"
	"food-order-service/internal/models"
	"food-order-service/internal/util"

	"go.uber.org/zap"
)

// EventLedger remembers which events were already handled
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Notifier reacts to order events
type Notifier interface {
	OrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	OrderSettled(ctx context.Context, event *models.OrderSettledEvent) error
}

// NotificationWorker consumes order events and dispatches notifications once
// per event id
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       EventLedger
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, ledger EventLedger, notifier Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ledger:       ledger,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		return w.once(ctx, e.BaseEvent, func(ctx context.Context) error {
			return notifier.OrderPlaced(ctx, e)
		})
	})
	w.eventHandler.OnOrderSettled(func(ctx context.Context, e *models.OrderSettledEvent) error {
		return w.once(ctx, e.BaseEvent, func(ctx context.Context) error {
			return notifier.OrderSettled(ctx, e)
		})
	})

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) once(ctx context.Context, event models.BaseEvent, fn func(context.Context) error) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker."+event.EventType)
	defer span.End()

	if event.EventID == "" {
		return fn(ctx)
	}

	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := fn(ctx); err != nil {
		return err
	}

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
