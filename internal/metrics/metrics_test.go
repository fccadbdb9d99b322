package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveApplied("PaymentProcessed")
	m.ObserveApplied("PaymentProcessed")
	m.ObserveStale()
	m.ObserveDivergent()
	m.ObserveSourceRetry()
	m.ObserveSettlement("")
	m.ObserveSettlement("INSUFFICIENT_BALANCE")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("PaymentProcessed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsStale))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDivergent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementsOK))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementErrors.WithLabelValues("INSUFFICIENT_BALANCE")))
}

func TestMetrics_NilReceiverIsNoOp(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveApplied("SubscriptionCreated")
		m.ObserveStale()
		m.ObserveDivergent()
		m.ObserveSourceRetry()
		m.ObserveSettlement("")
		m.ObserveSettlement("TOO_EARLY")
	})
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotNil(t, New(reg))
	assert.Panics(t, func() { New(reg) })
}
