package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openvault/recur/internal/event"
)

// Outcome reports what applying an event actually did.
type Outcome int

const (
	// OutcomeApplied: the effect was written (or was a harmless redelivery,
	// e.g. deleting an already-absent row) and the cursor advanced.
	OutcomeApplied Outcome = iota

	// OutcomeStale: the event is at or below the cursor; nothing changed.
	OutcomeStale

	// OutcomeDivergent: the event disagrees with mirrored state (a create
	// for an existing id with a different payload, or a mutation of an id
	// the mirror has never seen). The effect is skipped but the cursor
	// still advances, so replaying the same event resolves the same way.
	OutcomeDivergent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeDivergent:
		return "divergent"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Apply, with a human-readable reason when
// divergent.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Apply writes one event's effect and advances the cursor in a single
// transaction. Applying the same event twice yields identical state: the
// second application is OutcomeStale.
func (s *Store) Apply(ctx context.Context, ev event.Event) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("apply %s: begin tx: %w", ev.Kind(), err)
	}
	defer tx.Rollback() // No-op if committed

	var cur event.Cursor
	err = tx.QueryRowContext(ctx, `SELECT seq, sub_index FROM cursor WHERE id = 0`).
		Scan(&cur.Seq, &cur.SubIndex)
	if err != nil {
		return Result{}, fmt.Errorf("apply %s: read cursor: %w", ev.Kind(), err)
	}
	if !cur.Before(ev.Cursor()) {
		return Result{Outcome: OutcomeStale}, nil
	}

	res, err := applyEffect(ctx, tx, ev)
	if err != nil {
		return Result{}, fmt.Errorf("apply %s at %s: %w", ev.Kind(), ev.Cursor(), err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE cursor SET seq = ?, sub_index = ? WHERE id = 0`,
		ev.Seq, ev.SubIndex)
	if err != nil {
		return Result{}, fmt.Errorf("apply %s: advance cursor: %w", ev.Kind(), err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("apply %s: commit: %w", ev.Kind(), err)
	}
	return res, nil
}

func applyEffect(ctx context.Context, tx *sql.Tx, ev event.Event) (Result, error) {
	switch p := ev.Payload.(type) {
	case event.SubscriptionCreated:
		return upsertSubscription(ctx, tx, p)
	case event.SubscriptionUpdated:
		return overwriteSubscription(ctx, tx, p)
	case event.SubscriptionDeleted:
		// Remove-if-present: a redelivered delete is not an error. Dependent
		// instances are not touched (non-cascading policy).
		_, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, p.SubscriptionID.String())
		return Result{Outcome: OutcomeApplied}, err
	case event.InstanceCreated:
		return upsertInstance(ctx, tx, p)
	case event.InstanceUpdated:
		return mutateInstance(ctx, tx, p.InstanceID,
			`UPDATE instances SET discount = ?, data = ? WHERE id = ? AND subscription_id = ?`,
			p.Discount, p.Data, p.InstanceID.String(), p.SubscriptionID.String())
	case event.InstanceDeleted:
		_, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, p.InstanceID.String())
		return Result{Outcome: OutcomeApplied}, err
	case event.InstanceDeactivated:
		return mutateInstance(ctx, tx, p.InstanceID,
			`UPDATE instances SET active = 0 WHERE id = ?`, p.InstanceID.String())
	case event.InstanceReactivated:
		return mutateInstance(ctx, tx, p.InstanceID,
			`UPDATE instances SET active = 1 WHERE id = ?`, p.InstanceID.String())
	case event.PaymentProcessed:
		// The carried value is authoritative; never recomputed locally.
		return mutateInstance(ctx, tx, p.InstanceID,
			`UPDATE instances SET next_payment_at = ? WHERE id = ? AND subscription_id = ?`,
			p.NextPaymentAt, p.InstanceID.String(), p.SubscriptionID.String())
	default:
		return Result{}, fmt.Errorf("unhandled event kind %q", ev.Kind())
	}
}

// upsertSubscription is the idempotent-by-key create: insert if absent,
// leave untouched if present with an identical payload, flag divergence if
// present with a different one.
func upsertSubscription(ctx context.Context, tx *sql.Tx, p event.SubscriptionCreated) (Result, error) {
	canonical, err := event.MarshalCanonical(p)
	if err != nil {
		return Result{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions
		(id, owner, vault_address, token_address, recurring_amount, initial_amount, period, data, created_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		p.SubscriptionID.String(),
		p.Owner.String(),
		p.VaultAddress.String(),
		p.TokenAddress.String(),
		p.RecurringAmount.String(),
		p.InitialAmount.String(),
		p.Period,
		p.Data,
		string(canonical),
	)
	if err != nil {
		return Result{}, fmt.Errorf("insert subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("insert subscription: rows affected: %w", err)
	}
	if affected > 0 {
		return Result{Outcome: OutcomeApplied}, nil
	}

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT created_payload FROM subscriptions WHERE id = ?`,
		p.SubscriptionID.String()).Scan(&stored)
	if err != nil {
		return Result{}, fmt.Errorf("compare subscription payload: %w", err)
	}
	if stored == string(canonical) {
		return Result{Outcome: OutcomeApplied}, nil
	}
	return Result{
		Outcome: OutcomeDivergent,
		Reason:  fmt.Sprintf("subscription %s already mirrored with a different payload", p.SubscriptionID),
	}, nil
}

func upsertInstance(ctx context.Context, tx *sql.Tx, p event.InstanceCreated) (Result, error) {
	canonical, err := event.MarshalCanonical(p)
	if err != nil {
		return Result{}, err
	}

	// INSERT OR IGNORE also absorbs a (subscription, owner) uniqueness
	// conflict from an instance mirrored under a different id; that case
	// falls through to the payload comparison below and reports divergence.
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO instances
		(id, subscription_id, owner, next_payment_at, discount, data, active, created_payload)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	`,
		p.InstanceID.String(),
		p.SubscriptionID.String(),
		p.Owner.String(),
		p.NextPaymentAt,
		p.Discount,
		p.Data,
		string(canonical),
	)
	if err != nil {
		return Result{}, fmt.Errorf("insert instance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("insert instance: rows affected: %w", err)
	}
	if affected > 0 {
		return Result{Outcome: OutcomeApplied}, nil
	}

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT created_payload FROM instances WHERE id = ?`,
		p.InstanceID.String()).Scan(&stored)
	if err == sql.ErrNoRows {
		return Result{
			Outcome: OutcomeDivergent,
			Reason:  fmt.Sprintf("instance %s conflicts with another enrollment for the same subscriber", p.InstanceID),
		}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("compare instance payload: %w", err)
	}
	if stored == string(canonical) {
		return Result{Outcome: OutcomeApplied}, nil
	}
	return Result{
		Outcome: OutcomeDivergent,
		Reason:  fmt.Sprintf("instance %s already mirrored with a different payload", p.InstanceID),
	}, nil
}

func overwriteSubscription(ctx context.Context, tx *sql.Tx, p event.SubscriptionUpdated) (Result, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET owner = ?, vault_address = ?, token_address = ?,
		    recurring_amount = ?, initial_amount = ?, period = ?, data = ?
		WHERE id = ?
	`,
		p.Owner.String(),
		p.VaultAddress.String(),
		p.TokenAddress.String(),
		p.RecurringAmount.String(),
		p.InitialAmount.String(),
		p.Period,
		p.Data,
		p.SubscriptionID.String(),
	)
	if err != nil {
		return Result{}, fmt.Errorf("update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("update subscription: rows affected: %w", err)
	}
	if affected == 0 {
		return Result{
			Outcome: OutcomeDivergent,
			Reason:  fmt.Sprintf("update for subscription %s the mirror has never seen", p.SubscriptionID),
		}, nil
	}
	return Result{Outcome: OutcomeApplied}, nil
}

// mutateInstance runs an UPDATE that must hit exactly one mirrored row;
// zero rows means the log referenced an instance the mirror has never seen.
func mutateInstance(ctx context.Context, tx *sql.Tx, id event.ID, query string, args ...any) (Result, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("update instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("update instance: rows affected: %w", err)
	}
	if affected == 0 {
		return Result{
			Outcome: OutcomeDivergent,
			Reason:  fmt.Sprintf("mutation for instance %s the mirror has never seen", id),
		}, nil
	}
	return Result{Outcome: OutcomeApplied}, nil
}
