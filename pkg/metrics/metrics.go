// Package metrics exposes Prometheus counters for the render pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adcreative"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	fills          *prometheus.CounterVec
	remoteAttempts *prometheus.CounterVec
	remoteDuration prometheus.Histogram
	fallbacks      *prometheus.CounterVec
	warnings       *prometheus.CounterVec
	frames         prometheus.Counter
	renders        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outpaint",
			Name:      "fills_total",
			Help:      "Canvas fills by path (covered, generated, extended).",
		}, []string{"path"}),
		remoteAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outpaint",
			Name:      "remote_attempts_total",
			Help:      "Remote inpainting attempts by outcome.",
		}, []string{"outcome"}),
		remoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outpaint",
			Name:      "remote_duration_seconds",
			Help:      "Duration of single remote inpainting attempts.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outpaint",
			Name:      "fallbacks_total",
			Help:      "Local blur-extend fills by reason code.",
		}, []string{"reason"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compositor",
			Name:      "warnings_total",
			Help:      "Non-blocking composite and review warnings by kind.",
		}, []string{"kind"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slideshow",
			Name:      "frames_total",
			Help:      "Frames handed to slideshow encoders.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slideshow",
			Name:      "renders_total",
			Help:      "Slideshow renders by final state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.fills, m.remoteAttempts, m.remoteDuration, m.fallbacks, m.warnings, m.frames, m.renders)
	return m
}

func (m *Metrics) Fill(path string) {
	if m == nil {
		return
	}
	m.fills.WithLabelValues(path).Inc()
}

func (m *Metrics) RemoteAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.remoteAttempts.WithLabelValues(outcome).Inc()
	m.remoteDuration.Observe(d.Seconds())
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

func (m *Metrics) Frames(n int) {
	if m == nil {
		return
	}
	m.frames.Add(float64(n))
}

func (m *Metrics) Render(state string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(state).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
