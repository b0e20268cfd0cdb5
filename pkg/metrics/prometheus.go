package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	modelHealth   *prometheus.GaugeVec
	portfolioRisk prometheus.Gauge
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepilot_predictions_total",
				Help: "Total number of served predictions",
			},
			[]string{"symbol", "direction", "should_trade"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepilot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		modelHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradepilot_model_health_score",
				Help: "Last reported health score per model key",
			},
			[]string{"model_key"},
		),
		portfolioRisk: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradepilot_portfolio_risk_pct",
				Help: "Aggregate portfolio risk percentage after drawdown scaling",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepilot_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records a served prediction and its trade gate outcome.
func (r *Recorder) RecordPrediction(symbol, direction string, shouldTrade bool) {
	gate := "0"
	if shouldTrade {
		gate = "1"
	}
	if direction == "" {
		direction = "auto"
	}
	r.predictions.WithLabelValues(symbol, direction, gate).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordModelHealth records the last health score seen for a model key.
func (r *Recorder) RecordModelHealth(modelKey string, score float64) {
	r.modelHealth.WithLabelValues(modelKey).Set(score)
}

// RecordPortfolioRisk records the current aggregate risk percentage.
func (r *Recorder) RecordPortfolioRisk(pct float64) {
	r.portfolioRisk.Set(pct)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
