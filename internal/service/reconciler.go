package service

import (
	"context"
	"time"

	"food-order-service/internal/util"

	"go.uber.org/zap"
)

// StaleGroupLister finds checkouts whose ACS redirect was never answered
type StaleGroupLister interface {
	ListStalePendingGroups(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Reconciler expires card payments abandoned at the bank's ACS page
type Reconciler struct {
	repo      StaleGroupLister
	sync      *GroupSynchronizer
	ttl       time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// NewReconciler creates a reconciler expiring enrollments older than ttl
func NewReconciler(repo StaleGroupLister, sync *GroupSynchronizer, ttl time.Duration) *Reconciler {
	return &Reconciler{
		repo:      repo,
		sync:      sync,
		ttl:       ttl,
		batchSize: 100,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// ExpireStalePayments marks every stale group Failed. No notification is sent.
func (r *Reconciler) ExpireStalePayments(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.ExpireStalePayments")
	defer span.End()

	cutoff := r.now().Add(-r.ttl)
	groups, err := r.repo.ListStalePendingGroups(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}

	var expired int64
	for _, groupID := range groups {
		n, err := r.sync.Expire(ctx, groupID, cutoff, msgSessionExpired)
		if err != nil {
			r.logger.Error("Failed to expire pending payment",
				zap.String("group_id", groupID),
				zap.Error(err))
			continue
		}
		expired += n
	}

	if expired > 0 {
		util.PendingPaymentsExpiredTotal.Add(float64(expired))
		r.logger.Info("Expired abandoned payments",
			zap.Int("groups", len(groups)),
			zap.Int64("orders", expired))
	}
	return expired, nil
}
