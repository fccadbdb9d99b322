package store

import (
	"context"
	"testing"

	"github.com/openvault/recur/internal/event"
)

func TestSettlementFailures_RoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	f1 := SettlementFailure{
		InstanceID:     instA,
		SubscriptionID: subA,
		Code:           "INSUFFICIENT_BALANCE",
		Message:        "insufficient balance",
		OccurredAt:     100,
	}
	f2 := f1
	f2.Code = "TOO_EARLY"
	f2.Message = "can't handle the payment yet"
	f2.OccurredAt = 200

	if err := s.RecordSettlementFailure(ctx, f1); err != nil {
		t.Fatalf("RecordSettlementFailure() failed: %v", err)
	}
	if err := s.RecordSettlementFailure(ctx, f2); err != nil {
		t.Fatalf("RecordSettlementFailure() failed: %v", err)
	}

	got, err := s.SettlementFailures(ctx, instA)
	if err != nil {
		t.Fatalf("SettlementFailures() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != f1 || got[1] != f2 {
		t.Errorf("failures = %+v, want oldest first", got)
	}
}

func TestSettlementFailures_ScopedToInstance(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	err := s.RecordSettlementFailure(ctx, SettlementFailure{
		InstanceID:     instA,
		SubscriptionID: subA,
		Code:           "TOO_EARLY",
		OccurredAt:     1,
	})
	if err != nil {
		t.Fatalf("RecordSettlementFailure() failed: %v", err)
	}

	got, err := s.SettlementFailures(ctx, event.ID{0xee})
	if err != nil {
		t.Fatalf("SettlementFailures() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 for another instance", len(got))
	}
}
