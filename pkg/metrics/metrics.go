// Package metrics records per-run assembly counters on a private registry
// and writes them in the node exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Composition outcomes.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Recorder holds the metrics of one run. A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	componentsScanned  *prometheus.CounterVec
	componentsComposed *prometheus.CounterVec
	variantsComposed   prometheus.Counter
	composeDuration    prometheus.Histogram
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		componentsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usdassemble_components_scanned_total",
				Help: "Components found by the scanner, by result.",
			},
			[]string{"result"},
		),
		componentsComposed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usdassemble_components_composed_total",
				Help: "Component compositions, by status.",
			},
			[]string{"status"},
		),
		variantsComposed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "usdassemble_variants_composed_total",
				Help: "Material variants authored into main documents.",
			},
		),
		composeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "usdassemble_component_compose_seconds",
				Help:    "Time taken to compose one component.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
	r.registry.MustRegister(
		r.componentsScanned,
		r.componentsComposed,
		r.variantsComposed,
		r.composeDuration,
	)
	return r
}

// Registry exposes the run registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Scanned records the scanner outcome.
func (r *Recorder) Scanned(valid, rejected int) {
	if r == nil {
		return
	}
	r.componentsScanned.WithLabelValues("valid").Add(float64(valid))
	r.componentsScanned.WithLabelValues("rejected").Add(float64(rejected))
}

// Composed records one component composition.
func (r *Recorder) Composed(status string, variants int, d time.Duration) {
	if r == nil {
		return
	}
	r.componentsComposed.WithLabelValues(status).Inc()
	if status == StatusOK {
		r.variantsComposed.Add(float64(variants))
		r.composeDuration.Observe(d.Seconds())
	}
}

// WriteTextfile atomically writes every metric of the run to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
