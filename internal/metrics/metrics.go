package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Shipping covers the API process: aggregate mutations and their outcomes.
// All methods are safe on a nil receiver so tests can skip metrics entirely.
type Shipping struct {
	ShipmentsCreated      prometheus.Counter
	ComplianceEvaluations *prometheus.CounterVec
	CustomsTransitions    *prometheus.CounterVec
	KYCDecisions          *prometheus.CounterVec
	ClearanceNotReady     prometheus.Counter
	OperationDuration     *prometheus.HistogramVec
}

func NewShipping(reg prometheus.Registerer) *Shipping {
	f := promauto.With(reg)
	return &Shipping{
		ShipmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "customsbox_shipments_created_total",
			Help: "Total number of international shipments created",
		}),
		ComplianceEvaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsbox_compliance_evaluations_total",
			Help: "Compliance evaluations by resulting status",
		}, []string{"status"}),
		CustomsTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsbox_customs_transitions_total",
			Help: "Customs status transitions by target status",
		}, []string{"status"}),
		KYCDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsbox_kyc_decisions_total",
			Help: "KYC approvals and rejections",
		}, []string{"decision"}),
		ClearanceNotReady: f.NewCounter(prometheus.CounterOpts{
			Name: "customsbox_clearance_not_ready_total",
			Help: "Clearance start attempts refused because the shipment was not ready",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "customsbox_operation_duration_seconds",
			Help:    "Duration of shipping service operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
	}
}

func (m *Shipping) IncShipmentCreated() {
	if m == nil {
		return
	}
	m.ShipmentsCreated.Inc()
}

func (m *Shipping) IncCompliance(status string) {
	if m == nil {
		return
	}
	m.ComplianceEvaluations.WithLabelValues(status).Inc()
}

func (m *Shipping) IncCustomsTransition(status string) {
	if m == nil {
		return
	}
	m.CustomsTransitions.WithLabelValues(status).Inc()
}

func (m *Shipping) IncKYCDecision(decision string) {
	if m == nil {
		return
	}
	m.KYCDecisions.WithLabelValues(decision).Inc()
}

func (m *Shipping) IncClearanceNotReady() {
	if m == nil {
		return
	}
	m.ClearanceNotReady.Inc()
}

// ObserveOperation records the duration of op. Call with time.Now() taken at the start.
func (m *Shipping) ObserveOperation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Clearance covers the worker process.
type Clearance struct {
	Checks          *prometheus.CounterVec
	RateLimited     prometheus.Counter
	PublishFailures prometheus.Counter
	BrokerDuration  prometheus.Histogram
	InFlight        prometheus.Gauge
}

func NewClearance(reg prometheus.Registerer) *Clearance {
	f := promauto.With(reg)
	return &Clearance{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsbox_clearance_checks_total",
			Help: "Clearance status checks by outcome",
		}, []string{"outcome"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "customsbox_clearance_rate_limited_total",
			Help: "Checks postponed by the customs broker rate limit",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "customsbox_clearance_publish_failures_total",
			Help: "customs.updated messages that could not be published",
		}),
		BrokerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "customsbox_customs_broker_request_duration_seconds",
			Help:    "Duration of customs broker status requests",
			Buckets: durationBuckets,
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "customsbox_clearance_checks_in_flight",
			Help: "Clearance checks currently being processed",
		}),
	}
}

func (m *Clearance) IncCheck(outcome string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Clearance) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Clearance) IncPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Clearance) ObserveBroker(start time.Time) {
	if m == nil {
		return
	}
	m.BrokerDuration.Observe(time.Since(start).Seconds())
}

func (m *Clearance) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
