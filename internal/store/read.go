package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/ledger"
)

// ErrNotFound is returned by the query interface when the requested entity
// is not mirrored.
var ErrNotFound = errors.New("not found")

// Cursor returns the persisted replay watermark.
func (s *Store) Cursor(ctx context.Context) (event.Cursor, error) {
	var cur event.Cursor
	err := s.db.QueryRowContext(ctx, `SELECT seq, sub_index FROM cursor WHERE id = 0`).
		Scan(&cur.Seq, &cur.SubIndex)
	if err != nil {
		return event.Cursor{}, fmt.Errorf("read cursor: %w", err)
	}
	return cur, nil
}

// GetSubscription returns the mirrored subscription record.
func (s *Store) GetSubscription(ctx context.Context, id event.ID) (ledger.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, vault_address, token_address, recurring_amount, initial_amount, period, data
		FROM subscriptions
		WHERE id = ?
	`, id.String())
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return ledger.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ledger.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// GetInstance returns the mirrored instance record.
func (s *Store) GetInstance(ctx context.Context, subscriptionID, instanceID event.ID) (ledger.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscription_id, owner, next_payment_at, discount, data, active
		FROM instances
		WHERE id = ? AND subscription_id = ?
	`, instanceID.String(), subscriptionID.String())
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return ledger.Instance{}, fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return ledger.Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// GetInstanceByOwner looks a mirrored instance up by its subscriber.
func (s *Store) GetInstanceByOwner(ctx context.Context, subscriptionID event.ID, owner event.Address) (ledger.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscription_id, owner, next_payment_at, discount, data, active
		FROM instances
		WHERE subscription_id = ? AND owner = ?
	`, subscriptionID.String(), owner.String())
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return ledger.Instance{}, fmt.Errorf("instance of %s for %s: %w", subscriptionID, owner, ErrNotFound)
	}
	if err != nil {
		return ledger.Instance{}, fmt.Errorf("get instance by owner: %w", err)
	}
	return inst, nil
}

// DueInstances returns all active instances whose next payment is at or
// before now, ordered by due time then id for a deterministic scan.
func (s *Store) DueInstances(ctx context.Context, now int64) ([]ledger.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscription_id, owner, next_payment_at, discount, data, active
		FROM instances
		WHERE active = 1 AND next_payment_at <= ?
		ORDER BY next_payment_at ASC, id ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("due instances: %w", err)
	}
	defer rows.Close()

	var due []ledger.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("due instances: %w", err)
		}
		due = append(due, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due instances: iterate: %w", err)
	}
	return due, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (ledger.Subscription, error) {
	var (
		sub                      ledger.Subscription
		id, owner, vault, token  string
		recurringStr, initialStr string
	)
	err := row.Scan(&id, &owner, &vault, &token, &recurringStr, &initialStr, &sub.Period, &sub.Data)
	if err != nil {
		return ledger.Subscription{}, err
	}

	if sub.ID, err = event.ParseID(id); err != nil {
		return ledger.Subscription{}, err
	}
	if sub.Owner, err = event.ParseAddress(owner); err != nil {
		return ledger.Subscription{}, err
	}
	if sub.VaultAddress, err = event.ParseAddress(vault); err != nil {
		return ledger.Subscription{}, err
	}
	if sub.TokenAddress, err = event.ParseAddress(token); err != nil {
		return ledger.Subscription{}, err
	}
	if sub.RecurringAmount, err = event.ParseAmount(recurringStr); err != nil {
		return ledger.Subscription{}, err
	}
	if sub.InitialAmount, err = event.ParseAmount(initialStr); err != nil {
		return ledger.Subscription{}, err
	}
	return sub, nil
}

func scanInstance(row scanner) (ledger.Instance, error) {
	var (
		inst      ledger.Instance
		id, subID string
		owner     string
		active    int
	)
	err := row.Scan(&id, &subID, &owner, &inst.NextPaymentAt, &inst.Discount, &inst.Data, &active)
	if err != nil {
		return ledger.Instance{}, err
	}

	if inst.ID, err = event.ParseID(id); err != nil {
		return ledger.Instance{}, err
	}
	if inst.SubscriptionID, err = event.ParseID(subID); err != nil {
		return ledger.Instance{}, err
	}
	if inst.Owner, err = event.ParseAddress(owner); err != nil {
		return ledger.Instance{}, err
	}
	inst.Active = active != 0
	return inst, nil
}
