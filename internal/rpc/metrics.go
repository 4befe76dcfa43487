package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakewatch",
		Name:      "rpc_requests_total",
		Help:      "Total number of RPC requests by method",
	}, []string{"method"})

	rpcErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakewatch",
		Name:      "rpc_errors_total",
		Help:      "Total number of RPC errors by method and type",
	}, []string{"method", "error_type"})

	rpcRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakewatch",
		Name:      "rpc_retries_total",
		Help:      "Total number of RPC retry attempts by operation",
	}, []string{"operation"})

	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stakewatch",
		Name:      "rpc_request_duration_seconds",
		Help:      "Duration of RPC requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// observeCall records the outcome of a finished RPC call.
func observeCall(method string, start time.Time, err error) {
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		rpcErrors.WithLabelValues(method, classifyError(err)).Inc()
	}
}

func recordRequest(method string) {
	rpcRequests.WithLabelValues(method).Inc()
}

func recordRetry(operation string) {
	rpcRetries.WithLabelValues(operation).Inc()
}
