// Package metrics provides metrics collection and export functionality
package metrics

import (
	"os"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/pkg/logger"
)

// Recorder owns the Prometheus registry and the metrics describing height
// queries, wait outcomes and observed chain progress.
type Recorder struct {
	registry *prometheus.Registry
	logger   *logger.Logger

	queriesTotal        *prometheus.CounterVec
	waitsTotal          *prometheus.CounterVec
	heightUpdatesTotal  prometheus.Counter
	currentHeight       prometheus.Gauge
	baselineHeight      prometheus.Gauge
	targetHeight        prometheus.Gauge
	consecutiveFailures prometheus.Gauge

	seenHeight atomic.Bool
}

// NewRecorder creates a recorder with a private registry
func NewRecorder(log *logger.Logger) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		logger:   log,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockwait_height_queries_total",
			Help: "Total height queries by result",
		}, []string{"result"}),
		waitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockwait_waits_total",
			Help: "Completed waits by terminal status",
		}, []string{"status"}),
		heightUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockwait_height_updates_total",
			Help: "Number of observed height increases",
		}),
		currentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockwait_current_height",
			Help: "Most recently observed block height",
		}),
		baselineHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockwait_baseline_height",
			Help: "Baseline height captured at the start of the active wait",
		}),
		targetHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockwait_target_height",
			Help: "Target height of the active wait",
		}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockwait_consecutive_query_failures",
			Help: "Current run of consecutive failed height queries",
		}),
	}

	r.registry.MustRegister(
		r.queriesTotal,
		r.waitsTotal,
		r.heightUpdatesTotal,
		r.currentHeight,
		r.baselineHeight,
		r.targetHeight,
		r.consecutiveFailures,
	)

	r.registerProcessMetrics()

	return r
}

// registerProcessMetrics exposes CPU and memory usage of this process,
// read through gopsutil at scrape time.
func (r *Recorder) registerProcessMetrics() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		r.logger.Warn("process metrics unavailable", zap.Error(err))
		return
	}

	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "blockwait_process_cpu_percent",
		Help: "CPU usage of the blockwait process",
	}, func() float64 {
		percent, err := proc.CPUPercent()
		if err != nil {
			return 0
		}
		return percent
	}))

	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "blockwait_process_memory_rss_bytes",
		Help: "Resident memory of the blockwait process",
	}, func() float64 {
		info, err := proc.MemoryInfo()
		if err != nil || info == nil {
			return 0
		}
		return float64(info.RSS)
	}))
}

// Registry returns the prometheus registry for scraping
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordQuery counts one height query
func (r *Recorder) RecordQuery(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	r.queriesTotal.WithLabelValues(result).Inc()
}

// RecordWaitOutcome counts one completed wait by terminal status
func (r *Recorder) RecordWaitOutcome(status string) {
	r.waitsTotal.WithLabelValues(status).Inc()
}

// RecordHeightUpdate counts one observed height increase
func (r *Recorder) RecordHeightUpdate() {
	r.heightUpdatesTotal.Inc()
}

// SetCurrentHeight records the most recently observed height
func (r *Recorder) SetCurrentHeight(height int64) {
	r.currentHeight.Set(float64(height))
	r.seenHeight.Store(true)
}

// SetBaselineHeight records the baseline of the active wait
func (r *Recorder) SetBaselineHeight(height int64) {
	r.baselineHeight.Set(float64(height))
}

// SetTargetHeight records the target of the active wait
func (r *Recorder) SetTargetHeight(height int64) {
	r.targetHeight.Set(float64(height))
}

// SetConsecutiveFailures records the current failed-query run length
func (r *Recorder) SetConsecutiveFailures(n int) {
	r.consecutiveFailures.Set(float64(n))
}

// HasObservedHeight reports whether at least one height has been
// recorded. The ready endpoint gates on it.
func (r *Recorder) HasObservedHeight() bool {
	return r.seenHeight.Load()
}
