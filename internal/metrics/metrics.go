// Package metrics exposes pipeline counters and gauges over Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trafficwatch/internal/detection"
)

// Metrics holds pipeline metrics and their Prometheus collectors.
type Metrics struct {
	FramesProcessed atomic.Uint64
	VehiclesCurrent atomic.Int64

	registry        *prometheus.Registry
	violationsTotal *prometheus.CounterVec
	framesTotal     prometheus.Counter
	vehiclesGauge   prometheus.GaugeFunc
	fpsGauge        prometheus.Gauge
}

// New creates a Metrics instance with a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trafficwatch_frames_processed_total",
		Help: "Total frames run through the detection pipeline",
	})
	m.violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficwatch_violations_total",
		Help: "Total violations detected, by type",
	}, []string{"type"})
	m.vehiclesGauge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trafficwatch_vehicles_current",
		Help: "Vehicle count in the most recently processed frame",
	}, func() float64 { return float64(m.VehiclesCurrent.Load()) })
	m.fpsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trafficwatch_processing_fps",
		Help: "Frames per second over the last measurement window",
	})

	m.registry.MustRegister(m.framesTotal, m.violationsTotal, m.vehiclesGauge, m.fpsGauge)
	return m
}

// ObserveFrame records the outcome of one processed frame.
func (m *Metrics) ObserveFrame(vehicleCount int, violations map[detection.ViolationType]int) {
	m.FramesProcessed.Add(1)
	m.VehiclesCurrent.Store(int64(vehicleCount))
	m.framesTotal.Inc()
	for vt, n := range violations {
		if n > 0 {
			m.violationsTotal.WithLabelValues(string(vt)).Add(float64(n))
		}
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetFPS updates the FPS gauge.
func (m *Metrics) SetFPS(fps float64) {
	m.fpsGauge.Set(fps)
}
