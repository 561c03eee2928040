package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsService records operational metrics for the ledger.
type MetricsService interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordBalanceOperation(operation, outcome string, duration time.Duration)
	RecordRejection(operation, reason string)
	RecordWizardTransition(fromState, toState string)
	SetLedgerTotals(accounts int64, totalMinorUnits int64)
}

type prometheusMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	balanceOperationsTotal   *prometheus.CounterVec
	balanceOperationDuration *prometheus.HistogramVec
	rejectionsTotal          *prometheus.CounterVec

	wizardTransitionsTotal *prometheus.CounterVec

	ledgerAccountsGauge prometheus.Gauge
	ledgerTotalGauge    prometheus.Gauge
}

// NewPrometheusMetrics registers and returns the ledger metrics.
func NewPrometheusMetrics() MetricsService {
	return &prometheusMetrics{
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_api_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "balance_api_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		balanceOperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_api_operations_total",
			Help: "Balance operations by type and outcome",
		}, []string{"operation", "outcome"}),
		balanceOperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "balance_api_operation_duration_seconds",
			Help:    "Balance operation latency including the storage round trip",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		rejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_api_rejections_total",
			Help: "Business rejections by operation and reason",
		}, []string{"operation", "reason"}),
		wizardTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_api_wizard_transitions_total",
			Help: "Admin wizard state transitions",
		}, []string{"from", "to"}),
		ledgerAccountsGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "balance_api_ledger_accounts",
			Help: "Number of accounts in the ledger",
		}),
		ledgerTotalGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "balance_api_ledger_total_minor_units",
			Help: "Summed balance across all accounts, in minor units",
		}),
	}
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordBalanceOperation(operation, outcome string, duration time.Duration) {
	m.balanceOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.balanceOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordRejection(operation, reason string) {
	m.rejectionsTotal.WithLabelValues(operation, reason).Inc()
}

func (m *prometheusMetrics) RecordWizardTransition(fromState, toState string) {
	m.wizardTransitionsTotal.WithLabelValues(fromState, toState).Inc()
}

func (m *prometheusMetrics) SetLedgerTotals(accounts int64, totalMinorUnits int64) {
	m.ledgerAccountsGauge.Set(float64(accounts))
	m.ledgerTotalGauge.Set(float64(totalMinorUnits))
}

// NoopMetrics discards every observation. Used in tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (NoopMetrics) RecordBalanceOperation(operation, outcome string, duration time.Duration) {}
func (NoopMetrics) RecordRejection(operation, reason string)                                 {}
func (NoopMetrics) RecordWizardTransition(fromState, toState string)                         {}
func (NoopMetrics) SetLedgerTotals(accounts int64, totalMinorUnits int64)                    {}
