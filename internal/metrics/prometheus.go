package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are the Prometheus series exported for a training run.
type Collectors struct {
	Loss         prometheus.Gauge
	Steps        prometheus.Counter
	StepDuration prometheus.Histogram
	Samples      prometheus.Gauge
	ModelSize    prometheus.Gauge
	Mismatch     *prometheus.GaugeVec
}

// NewCollectors registers the training series on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		Loss: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridvolt_train_loss",
			Help: "Summed squared error of the training set at the latest step.",
		}),
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "gridvolt_train_steps_total",
			Help: "Gradient-descent updates applied.",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridvolt_train_step_duration_seconds",
			Help:    "Wall time of one full-batch update.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		Samples: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridvolt_train_samples",
			Help: "Training cases in the current set.",
		}),
		ModelSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridvolt_model_size",
			Help: "Model dimension, twice the number of buses.",
		}),
		Mismatch: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridvolt_test_mismatch_max_pu",
			Help: "Largest bus power mismatch of the model prediction on the test case.",
		}, []string{"component"}),
	}
}
