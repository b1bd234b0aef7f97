package broker

import (
	"context"

	"food-order-service/internal/models"
	"food-order-service/internal/util"

	"go.uber.org/zap"
)

// OutboxStore claims pending outbox rows and records publish outcomes
type OutboxStore interface {
	RelayOutbox(ctx context.Context, limit int, publish func(models.OutboxEvent) error) (published, failed int, err error)
}

// MessageWriter is satisfied by Producer
type MessageWriter interface {
	Publish(ctx context.Context, key, eventType string, value []byte) error
}

// OutboxRelay moves committed outbox events onto Kafka
type OutboxRelay struct {
	store     OutboxStore
	writer    MessageWriter
	batchSize int
	logger    *zap.Logger
}

func NewOutboxRelay(store OutboxStore, writer MessageWriter, batchSize int) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// RelayOnce publishes one batch. Events are keyed by group id.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "OutboxRelay.RelayOnce")
	defer span.End()

	published, failed, err := r.store.RelayOutbox(ctx, r.batchSize, func(event models.OutboxEvent) error {
		return r.writer.Publish(ctx, event.AggregateID, event.EventType, []byte(event.Payload))
	})
	if err != nil {
		return 0, err
	}

	util.OutboxPublishedTotal.WithLabelValues("published").Add(float64(published))
	util.OutboxPublishedTotal.WithLabelValues("failed").Add(float64(failed))
	if failed > 0 {
		r.logger.Warn("Outbox events left pending",
			zap.Int("published", published),
			zap.Int("failed", failed))
	}
	return published, nil
}
