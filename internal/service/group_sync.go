package service

import (
	"context"
	"fmt"
	"time"

	"food-order-service/internal/models"
	"food-order-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementRepository applies settlements with guarded updates
type SettlementRepository interface {
	Settle(ctx context.Context, st models.Settlement, event *models.OutboxEvent) (models.SettleResult, error)
	PropagateGroup(ctx context.Context, st models.Settlement) (int64, error)
	ExpireStaleGroup(ctx context.Context, groupID string, cutoff time.Time, reason string) (int64, error)
}

// GroupSynchronizer keeps every order of a checkout on the same settlement state
type GroupSynchronizer struct {
	repo   SettlementRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewGroupSynchronizer creates a new group synchronizer
func NewGroupSynchronizer(repo SettlementRepository) *GroupSynchronizer {
	return &GroupSynchronizer{
		repo:   repo,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Settle moves the primary order and its still-open siblings to st.Status in
// one transaction. With notify set, an ORDER_SETTLED event is queued only if
// the primary order actually changed state.
func (g *GroupSynchronizer) Settle(ctx context.Context, st models.Settlement, notify bool) (models.SettleResult, error) {
	ctx, span := util.StartSpan(ctx, "GroupSynchronizer.Settle")
	defer span.End()

	if err := st.Validate(); err != nil {
		return models.SettleResult{}, err
	}

	var event *models.OutboxEvent
	if notify {
		settled := models.OrderSettledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderSettled,
				Timestamp: g.now(),
			},
			GroupID:       st.GroupID,
			OrderID:       st.OrderID,
			PaymentStatus: st.Status,
			PaymentMethod: st.Method,
			TransactionID: st.TransactionID,
		}
		var err error
		if event, err = newOutboxEvent(settled.BaseEvent, st.GroupID, settled); err != nil {
			return models.SettleResult{}, err
		}
	}

	res, err := g.repo.Settle(ctx, st, event)
	if err != nil {
		return models.SettleResult{}, fmt.Errorf("failed to settle order %d: %w", st.OrderID, err)
	}

	if !res.Applied() {
		g.logger.Info("Settlement skipped, order already settled",
			zap.Int64("order_id", st.OrderID),
			zap.String("group_id", st.GroupID),
			zap.String("status", string(st.Status)))
		return res, nil
	}

	util.PaymentSettledTotal.WithLabelValues(string(st.Status)).Inc()
	util.GroupPropagatedOrders.Observe(float64(res.Siblings))
	g.logger.Info("Order settled",
		zap.Int64("order_id", st.OrderID),
		zap.String("group_id", st.GroupID),
		zap.String("status", string(st.Status)),
		zap.Int64("siblings", res.Siblings),
		zap.Bool("notify", event != nil))
	return res, nil
}

// Propagate applies one outcome to every order of the group still awaiting it
// and returns how many orders moved.
func (g *GroupSynchronizer) Propagate(ctx context.Context, st models.Settlement) (int64, error) {
	ctx, span := util.StartSpan(ctx, "GroupSynchronizer.Propagate")
	defer span.End()

	if err := st.Validate(); err != nil {
		return 0, err
	}

	n, err := g.repo.PropagateGroup(ctx, st)
	if err != nil {
		return 0, err
	}

	util.GroupPropagatedOrders.Observe(float64(n))
	g.logger.Info("Group propagated",
		zap.String("group_id", st.GroupID),
		zap.String("status", string(st.Status)),
		zap.Int64("affected", n))
	return n, nil
}

// Expire fails a group whose card enrollment was abandoned before cutoff.
// Orders that moved on since the group was listed are not touched.
func (g *GroupSynchronizer) Expire(ctx context.Context, groupID string, cutoff time.Time, reason string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "GroupSynchronizer.Expire")
	defer span.End()

	n, err := g.repo.ExpireStaleGroup(ctx, groupID, cutoff, reason)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		g.logger.Info("Stale group skipped, payment resumed or settled",
			zap.String("group_id", groupID))
		return 0, nil
	}

	util.PaymentSettledTotal.WithLabelValues(string(models.PaymentStatusFailed)).Inc()
	g.logger.Info("Group expired",
		zap.String("group_id", groupID),
		zap.Int64("affected", n))
	return n, nil
}
