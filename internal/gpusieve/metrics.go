package gpusieve

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	kernelDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpusieve",
			Subsystem: "kernel",
			Name:      "dispatch_total",
			Help:      "Total kernel dispatches",
		},
		[]string{"kernel"},
	)

	kernelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gpusieve",
			Subsystem: "kernel",
			Name:      "duration_seconds",
			Help:      "Blocking kernel dispatch duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"kernel"},
	)

	kernelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpusieve",
			Subsystem: "kernel",
			Name:      "errors_total",
			Help:      "Total failed kernel dispatches",
		},
		[]string{"kernel"},
	)

	setupSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpusieve",
			Subsystem: "setup",
			Name:      "skipped_total",
			Help:      "Setup calls satisfied from memoised state",
		},
		[]string{"stage"},
	)

	bufferBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpusieve",
			Subsystem: "device",
			Name:      "buffer_bytes",
			Help:      "Bytes held by live device buffers",
		},
		[]string{"buffer"},
	)

	segmentBitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpusieve",
			Subsystem: "segment",
			Name:      "bits_total",
			Help:      "Candidate bits covered by segment sieve dispatches",
		},
	)
)

func init() {
	prometheus.MustRegister(kernelDispatchTotal, kernelDuration, kernelErrorsTotal, setupSkippedTotal, bufferBytes, segmentBitsTotal)
}

// observeKernel runs fn and records its outcome under kernel.
func observeKernel(kernel string, fn func() error) error {
	start := time.Now()
	err := fn()
	kernelDuration.WithLabelValues(kernel).Observe(time.Since(start).Seconds())
	kernelDispatchTotal.WithLabelValues(kernel).Inc()
	if err != nil {
		kernelErrorsTotal.WithLabelValues(kernel).Inc()
	}
	return err
}
