package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by TrainAll.
type Metrics struct {
	CandidatesTrained *prometheus.CounterVec
	CandidatesFailed  *prometheus.CounterVec
	FitSeconds        *prometheus.HistogramVec
	Runs              *prometheus.CounterVec
	Jobs              prometheus.Gauge
}

// NewMetrics creates the collectors under namespace and registers them with
// reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CandidatesTrained: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_trained_total",
				Help:      "Total number of candidates trained and scored",
			},
			[]string{"family", "model"},
		),
		CandidatesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_failed_total",
				Help:      "Total number of candidates dropped after a failure",
			},
			[]string{"family", "model"},
		),
		FitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "candidate_fit_seconds",
				Help:      "Duration of candidate training and scoring in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"family"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "training_runs_total",
				Help:      "Total number of training runs by task and outcome",
			},
			[]string{"task", "status"},
		),
		Jobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Number of trained jobs held in the registry",
		}),
	}
}

const (
	runSucceeded = "succeeded"
	runFailed    = "failed"
	runTimeout   = "timeout"
)
