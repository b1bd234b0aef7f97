package worker

import (
	"context"
	"time"

	"food-order-service/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Relayer publishes one batch of outbox events
type Relayer interface {
	RelayOnce(ctx context.Context) (int, error)
}

// Expirer fails card payments abandoned at the ACS page
type Expirer interface {
	ExpireStalePayments(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic background jobs
type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewScheduler registers the outbox relay and the payment reconciler.
// Each job runs in singleton mode so a slow run is never overlapped.
func NewScheduler(relay Relayer, relayEvery time.Duration, expirer Expirer, reconcileEvery time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{s: s, ctx: ctx, cancel: cancel, logger: util.GetLogger()}

	_, err = s.NewJob(
		gocron.DurationJob(relayEvery),
		gocron.NewTask(sch.relay, relay),
		gocron.WithName("outbox-relay"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(reconcileEvery),
		gocron.NewTask(sch.reconcile, expirer),
		gocron.WithName("payment-reconciler"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	return sch, nil
}

func (sch *Scheduler) Start() {
	sch.s.Start()
	sch.logger.Info("Background scheduler started", zap.Int("jobs", len(sch.s.Jobs())))
}

// Stop cancels running jobs and waits for them to return
func (sch *Scheduler) Stop() error {
	sch.cancel()
	return sch.s.Shutdown()
}

func (sch *Scheduler) relay(relay Relayer) {
	if _, err := relay.RelayOnce(sch.ctx); err != nil && sch.ctx.Err() == nil {
		sch.logger.Error("Outbox relay failed", zap.Error(err))
	}
}

func (sch *Scheduler) reconcile(expirer Expirer) {
	if _, err := expirer.ExpireStalePayments(sch.ctx); err != nil && sch.ctx.Err() == nil {
		sch.logger.Error("Payment reconciliation failed", zap.Error(err))
	}
}
