package store

import (
	"context"
	"fmt"

	"github.com/openvault/recur/internal/event"
)

// SettlementFailure is one rejected settlement submission, recorded by the
// scheduler. It is an operational trail, never read back into mirrored
// state.
type SettlementFailure struct {
	InstanceID     event.ID
	SubscriptionID event.ID
	Code           string
	Message        string
	OccurredAt     int64
}

// RecordSettlementFailure appends a failure to the trail.
func (s *Store) RecordSettlementFailure(ctx context.Context, f SettlementFailure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_failures
		(instance_id, subscription_id, code, message, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		f.InstanceID.String(),
		f.SubscriptionID.String(),
		f.Code,
		f.Message,
		f.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("record settlement failure: %w", err)
	}
	return nil
}

// SettlementFailures returns the recorded failures for one instance, oldest
// first.
func (s *Store) SettlementFailures(ctx context.Context, instanceID event.ID) ([]SettlementFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, subscription_id, code, message, occurred_at
		FROM settlement_failures
		WHERE instance_id = ?
		ORDER BY occurred_at ASC, rowid ASC
	`, instanceID.String())
	if err != nil {
		return nil, fmt.Errorf("settlement failures: %w", err)
	}
	defer rows.Close()

	var out []SettlementFailure
	for rows.Next() {
		var f SettlementFailure
		var instID, subID string
		if err := rows.Scan(&instID, &subID, &f.Code, &f.Message, &f.OccurredAt); err != nil {
			return nil, fmt.Errorf("settlement failures: scan: %w", err)
		}
		if f.InstanceID, err = event.ParseID(instID); err != nil {
			return nil, fmt.Errorf("settlement failures: %w", err)
		}
		if f.SubscriptionID, err = event.ParseID(subID); err != nil {
			return nil, fmt.Errorf("settlement failures: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settlement failures: iterate: %w", err)
	}
	return out, nil
}
