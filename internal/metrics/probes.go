// Package metrics provides Prometheus metrics for device discovery and
// capability probing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Probe outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camprobe",
		Name:      "probes_total",
		Help:      "Capability probes by outcome",
	}, []string{"outcome"})

	probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camprobe",
		Name:      "probe_duration_seconds",
		Help:      "Capability probe duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"outcome"})

	devicesPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camprobe",
		Name:      "devices_present",
		Help:      "Capture devices currently known to the registry",
	})

	// Local cache so in-process callers can read the counters back
	// without scraping.
	cache   ProbeCounts
	cacheMu sync.RWMutex
)

// ProbeCounts is a point-in-time view of the probe counters.
type ProbeCounts struct {
	Succeeded      int64
	Failed         int64
	DevicesPresent int
}

// RecordProbe records one finished capability probe.
func RecordProbe(outcome string, d time.Duration) {
	probesTotal.WithLabelValues(outcome).Inc()
	probeDuration.WithLabelValues(outcome).Observe(d.Seconds())

	cacheMu.Lock()
	switch outcome {
	case OutcomeSuccess:
		cache.Succeeded++
	case OutcomeFailure:
		cache.Failed++
	}
	cacheMu.Unlock()
}

// SetDevicesPresent sets the number of devices the registry tracks.
func SetDevicesPresent(n int) {
	devicesPresent.Set(float64(n))

	cacheMu.Lock()
	cache.DevicesPresent = n
	cacheMu.Unlock()
}

// Counts returns the current counter values.
func Counts() ProbeCounts {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}
