// Package scheduler drives settlement: on a fixed interval it scans the
// mirror for due instances and submits payment calls to the ledger program.
// It never writes mirrored state itself; the resulting PaymentProcessed
// events come back through the reconciler.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/ledger"
	"github.com/openvault/recur/internal/metrics"
	"github.com/openvault/recur/internal/store"
)

// Settler is the slice of the submission interface the scheduler needs.
type Settler interface {
	HandleInstancePayment(ctx context.Context, caller event.Address, subscriptionID, instanceID event.ID) error
}

// Scheduler submits settlement for due instances.
type Scheduler struct {
	store    *store.Store
	settler  Settler
	caller   event.Address
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	// flight serializes submissions per instance id: if a tick starts while
	// the previous tick's submission for the same instance is still in
	// flight, the new call joins the old one instead of double-submitting.
	flight singleflight.Group
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics attaches settlement counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithNow overrides the wall clock for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler ticking every interval.
func New(st *store.Store, settler Settler, caller event.Address, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		settler:  settler,
		caller:   caller,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled, then waits for in-flight submissions to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler: add job: %w", err)
	}

	slog.Info("scheduler starting", "interval", s.interval.String())
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.wg.Wait()
	slog.Info("scheduler stopped")
	return nil
}

// Tick runs one settlement pass: scan due instances, submit each. Failures
// are recorded and left alone until the next pass; a payer who is broke
// now will not become solvent within seconds.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().Unix()
	due, err := s.store.DueInstances(ctx, now)
	if err != nil {
		slog.Error("scheduler: due scan failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	slog.Debug("settlement pass", "due", len(due))

	for _, inst := range due {
		inst := inst
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.settle(ctx, inst)
		}()
	}
}

// settle submits payment for one instance, serialized per instance id. The
// failure record is written inside the singleflight closure so joiners
// never record the same rejection twice.
func (s *Scheduler) settle(ctx context.Context, inst ledger.Instance) {
	_, _, _ = s.flight.Do(inst.ID.String(), func() (any, error) {
		err := s.settler.HandleInstancePayment(ctx, s.caller, inst.SubscriptionID, inst.ID)
		if err == nil {
			s.metrics.ObserveSettlement("")
			slog.Info("settlement submitted",
				"instance", inst.ID.String(),
				"subscription", inst.SubscriptionID.String())
			return nil, nil
		}

		code := ledger.CodeOf(err)
		s.metrics.ObserveSettlement(string(code))
		slog.Warn("settlement rejected",
			"instance", inst.ID.String(),
			"code", string(code),
			"error", err)

		record := store.SettlementFailure{
			InstanceID:     inst.ID,
			SubscriptionID: inst.SubscriptionID,
			Code:           string(code),
			Message:        err.Error(),
			OccurredAt:     s.now().Unix(),
		}
		if rerr := s.store.RecordSettlementFailure(ctx, record); rerr != nil {
			slog.Error("scheduler: record failure", "error", rerr)
		}
		return nil, nil
	})
}
