package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestShipping_Counters(t *testing.T) {
	m := NewShipping(prometheus.NewRegistry())

	m.IncShipmentCreated()
	m.IncShipmentCreated()
	m.IncCompliance("non_compliant")
	m.IncCustomsTransition("in_process")
	m.IncKYCDecision("approved")
	m.IncClearanceNotReady()
	m.ObserveOperation("create_shipment", time.Now())

	require.Equal(t, 2.0, testutil.ToFloat64(m.ShipmentsCreated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ComplianceEvaluations.WithLabelValues("non_compliant")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CustomsTransitions.WithLabelValues("in_process")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.KYCDecisions.WithLabelValues("approved")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ClearanceNotReady))
}

func TestClearance_InFlight(t *testing.T) {
	m := NewClearance(prometheus.NewRegistry())

	done := m.TrackInFlight()
	require.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	done()
	require.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))

	m.IncCheck("cleared")
	m.IncRateLimited()
	m.IncPublishFailure()
	require.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues("cleared")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures))
}

func TestNilReceiversAreNoops(t *testing.T) {
	var s *Shipping
	var c *Clearance
	require.NotPanics(t, func() {
		s.IncShipmentCreated()
		s.ObserveOperation("x", time.Now())
		c.IncCheck("x")
		c.ObserveBroker(time.Now())
		c.TrackInFlight()()
	})
}
