// Package metrics exposes process-level Prometheus metrics and the HTTP
// server that serves them. Domain metrics live next to the code that
// records them (rpc, db).
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stakewatch"

var startTime = time.Now()

var (
	uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Application uptime in seconds",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Total number of errors by component and severity",
	}, []string{"component", "severity"})

	componentHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_health",
		Help:      "Component health status (1=healthy, 0=unhealthy)",
	}, []string{"component"})

	goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Number of active goroutines",
	})

	memoryUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_usage_bytes",
		Help:      "Memory usage statistics",
	}, []string{"type"})
)

// ErrorsInc counts one error for the given component and severity.
func ErrorsInc(component, severity string) {
	errorsTotal.WithLabelValues(component, severity).Inc()
}

// ComponentHealthSet flags a component as healthy or unhealthy.
func ComponentHealthSet(component string, healthy bool) {
	value := float64(0)
	if healthy {
		value = 1
	}
	componentHealth.WithLabelValues(component).Set(value)
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges.
// The metrics server calls this on a fixed interval.
func UpdateSystemMetrics() {
	uptime.Set(time.Since(startTime).Seconds())
	goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	for label, value := range map[string]uint64{
		"alloc":       m.Alloc,
		"total_alloc": m.TotalAlloc,
		"sys":         m.Sys,
		"heap_inuse":  m.HeapInuse,
	} {
		memoryUsage.WithLabelValues(label).Set(float64(value))
	}
}
