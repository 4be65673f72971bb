package api

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginFailureSpikeAlert(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	// Override threshold for fast testing.
	collector.loginThreshold = 5

	// Record failures below threshold — no alert.
	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	mu.Lock()
	assert.Empty(t, alerts, "no alert below threshold")
	mu.Unlock()

	// The 5th failure should trigger an alert.
	collector.recordEvent(AuditLoginFailure)
	mu.Lock()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	mu.Unlock()
}

func TestCSRFRejectionSpikeAlert(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	collector.csrfThreshold = 3

	for i := 0; i < 2; i++ {
		collector.recordEvent(AuditCSRFRejected)
	}
	mu.Lock()
	assert.Empty(t, alerts, "no alert below threshold")
	mu.Unlock()

	collector.recordEvent(AuditCSRFRejected)
	mu.Lock()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCSRFRejectionSpike, alerts[0].Type)
	mu.Unlock()
}

func TestAlertResetsAfterFiring(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	collector.loginThreshold = 3

	for i := 0; i < 3; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	mu.Lock()
	require.Len(t, alerts, 1, "first spike fires")
	mu.Unlock()

	// The window resets after an alert, so the next failure alone does not
	// retrigger.
	collector.recordEvent(AuditLoginFailure)
	mu.Lock()
	assert.Len(t, alerts, 1, "single failure after reset must not alert again")
	mu.Unlock()
}

func TestUnrelatedEventsIgnored(t *testing.T) {
	fired := false
	collector := newMetricsCollector(func(AlertEvent) { fired = true })
	collector.loginThreshold = 1
	collector.csrfThreshold = 1

	collector.recordEvent(AuditLogout)
	collector.recordEvent(AuditSessionRefreshed)
	assert.False(t, fired, "only failure events feed the anomaly counters")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *metricsCollector
	assert.NotPanics(t, func() {
		collector.recordEvent(AuditLoginFailure)
	})
}
