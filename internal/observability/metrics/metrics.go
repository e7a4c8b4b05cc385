// Package metrics provides Prometheus instrumentation for contraship.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string
	register    sync.Once

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Build stage metrics
	buildTotal    *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec

	// Deploy stage metrics
	deployTotal        *prometheus.CounterVec
	receiptWaitSeconds prometheus.Histogram

	// Ledger and verification metrics
	deploymentRecordTotal *prometheus.CounterVec
	verificationTotal     *prometheus.CounterVec
)

// Init initializes the metrics system. Collectors are registered once per process.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	register.Do(registerCollectors)
}

func registerCollectors() {
	// Every series carries the service label
	factory := promauto.With(prometheus.WrapRegistererWith(
		prometheus.Labels{"service": serviceName},
		prometheus.DefaultRegisterer,
	))

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	buildTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "build_total",
			Help: "Total number of target builds",
		},
		[]string{"target", "status"},
	)

	buildDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "build_duration_seconds",
			Help:    "Target build latency in seconds, compiler included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"target"},
	)

	deployTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deploy_total",
			Help: "Total number of contract deployments by outcome",
		},
		[]string{"status"},
	)

	receiptWaitSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receipt_wait_seconds",
			Help:    "Time from transaction submission to receipt",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
	)

	deploymentRecordTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployment_record_total",
			Help: "Total number of deployments written to the ledger",
		},
		[]string{"chain", "status"},
	)

	verificationTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Total number of deployed bytecode verifications by result",
		},
		[]string{"result"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// WriteTextfile writes the default registry to path in the node_exporter textfile format.
// One-shot commands use it since nothing scrapes a process that exits.
func WriteTextfile(path string) error {
	if !enabled || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}
