package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/metrics"
	"github.com/openvault/recur/internal/source"
	"github.com/openvault/recur/internal/store"
)

// Divergence is an InconsistentReplay report: the log named an entity the
// mirror disagrees about. A data-integrity signal for the operator, not a
// pipeline failure.
type Divergence struct {
	Kind   event.Kind
	Cursor event.Cursor
	Reason string
}

// DefaultBackoffMin and DefaultBackoffMax bound the retry delay after a
// transient source failure.
const (
	DefaultBackoffMin = 250 * time.Millisecond
	DefaultBackoffMax = 30 * time.Second
)

// Reconciler replays one program's event log into the store.
type Reconciler struct {
	src        source.Source
	store      *store.Store
	metrics    *metrics.Metrics
	onDiverge  func(Divergence)
	backoffMin time.Duration
	backoffMax time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMetrics attaches pipeline counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithDivergenceHandler sets the operator channel for InconsistentReplay
// reports. The handler runs on the pipeline goroutine; it must not block.
func WithDivergenceHandler(fn func(Divergence)) Option {
	return func(r *Reconciler) { r.onDiverge = fn }
}

// WithBackoff overrides the transient-failure retry bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(r *Reconciler) {
		r.backoffMin = min
		r.backoffMax = max
	}
}

// New creates a Reconciler over src and st.
func New(src source.Source, st *store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		src:        src,
		store:      st,
		backoffMin: DefaultBackoffMin,
		backoffMax: DefaultBackoffMax,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes the source until ctx is cancelled or the run fails.
//
// Resumption always starts from the persisted cursor, never from an assumed
// next position; the cursor is only advanced inside the store's atomic
// apply, so cancellation mid-event leaves either the previous or the next
// consistent state, nothing in between.
//
// Returns nil on cancellation or source close; any other return is fatal to
// this run and the caller restarts from the last persisted cursor.
func (r *Reconciler) Run(ctx context.Context) error {
	cur, err := r.store.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	slog.Info("reconciler starting", "cursor", cur.String())

	backoff := r.backoffMin
	for {
		ev, err := r.src.Next(ctx, cur)
		switch {
		case err == nil:
			// fall through to apply
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			slog.Info("reconciler stopping: context cancelled", "cursor", cur.String())
			return nil
		case errors.Is(err, source.ErrClosed):
			slog.Info("reconciler stopping: source closed", "cursor", cur.String())
			return nil
		case source.IsTransient(err):
			r.metrics.ObserveSourceRetry()
			slog.Warn("transient source failure, retrying",
				"error", err,
				"backoff", backoff,
				"cursor", cur.String())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, r.backoffMax)
			// Re-read the persisted cursor: the in-memory copy is already
			// correct, but resuming from durable state is the contract.
			if cur, err = r.store.Cursor(ctx); err != nil {
				return fmt.Errorf("reconcile: reread cursor: %w", err)
			}
			continue
		default:
			return fmt.Errorf("reconcile: source: %w", err)
		}
		backoff = r.backoffMin

		if !cur.Before(ev.Cursor()) {
			// At-least-once redelivery of something already applied.
			r.metrics.ObserveStale()
			slog.Debug("discarding redelivered event",
				"kind", ev.Kind(),
				"at", ev.Cursor().String(),
				"cursor", cur.String())
			continue
		}

		res, err := r.store.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}

		switch res.Outcome {
		case store.OutcomeApplied:
			r.metrics.ObserveApplied(string(ev.Kind()))
			slog.Debug("event applied", "kind", ev.Kind(), "at", ev.Cursor().String())
		case store.OutcomeStale:
			r.metrics.ObserveStale()
		case store.OutcomeDivergent:
			r.metrics.ObserveDivergent()
			d := Divergence{Kind: ev.Kind(), Cursor: ev.Cursor(), Reason: res.Reason}
			slog.Error("inconsistent replay",
				"kind", d.Kind,
				"at", d.Cursor.String(),
				"reason", d.Reason)
			if r.onDiverge != nil {
				r.onDiverge(d)
			}
		}

		cur = ev.Cursor()
	}
}
