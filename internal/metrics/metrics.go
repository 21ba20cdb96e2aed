package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	LookupHit  = "hit"  // already registered in the cache
	LookupDisk = "disk" // valid artifact found on disk
	LookupMiss = "miss"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	RuntimeLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jit_runtime_loads_total",
		Help: "Total number of one-time kernel library loads by result",
	}, []string{"result"})

	RuntimeLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jit_runtime_load_duration_ms",
		Help:    "Duration of the load and symbol resolution of a kernel library in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 15), // 0.25ms to ~4s
	})

	RuntimeUnloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jit_runtime_unloads_total",
		Help: "Total number of kernel library unloads by result",
	}, []string{"result"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jit_cache_lookups_total",
		Help: "Total number of runtime cache lookups by result",
	}, []string{"result"})

	KernelLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jit_kernel_launches_total",
		Help: "Total number of kernel launches by family and result",
	}, []string{"family", "result"})

	SymbolInspections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jit_symbol_inspections_total",
		Help: "Total number of binary symbol inspections by result",
	}, []string{"result"})

	LoadedRuntimes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jit_loaded_runtimes",
		Help: "Number of kernel libraries currently loaded into the device context",
	})
)

// Result maps an error to the success/failure label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
