// Package telemetry exposes Prometheus counters/gauges for run progress and
// periodically samples process CPU/RSS via shirou/gopsutil, grounded on
// adred-codev-ws_poc/ws/metrics.go (prometheus.NewCounter/NewGauge style)
// and adred-codev-ws_poc/ws/internal/single/core/monitoring_collectors.go
// (gopsutil process sampling cadence). It optionally republishes progress
// snapshots to a NATS subject so an external dashboard can watch a run live
// without polling the terminal renderer, grounded on the go-server
// family's NATS client usage.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ServeMetrics blocks serving a promhttp handler on addr until the listener
// fails, the way adred-codev-ws_poc/ws/metrics.go exposes /metrics. Intended
// to be run in its own goroutine; a failure is logged, not fatal, since
// metrics export is ambient/optional.
func ServeMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

var (
	iterationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redline_iterations_total",
		Help: "Total iterations completed across all engines",
	})
	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redline_requests_in_flight",
		Help: "Requests currently awaiting confirmation or delivery",
	})
	processCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redline_process_cpu_percent",
		Help: "Process CPU usage percent sampled from gopsutil",
	})
	processRSSBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redline_process_rss_bytes",
		Help: "Process resident set size sampled from gopsutil",
	})
)

func init() {
	prometheus.MustRegister(iterationsTotal, requestsInFlight, processCPUPercent, processRSSBytes)
}

// IncIterations records one completed iteration across all engines.
func IncIterations() { iterationsTotal.Inc() }

// SetInFlight updates the current in-flight request gauge.
func SetInFlight(n int) { requestsInFlight.Set(float64(n)) }

// IncInFlight records one request entering the send/confirm pipeline.
func IncInFlight() { requestsInFlight.Inc() }

// DecInFlight records one request leaving the send/confirm pipeline,
// called once its delivery (and, when enforce-total-sync is set, its
// confirmation) has resolved.
func DecInFlight() { requestsInFlight.Dec() }

// Snapshot is one progress sample, published to NATS when configured.
type Snapshot struct {
	Iterations  uint64  `json:"iterations"`
	Total       uint64  `json:"total"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryMB    float64 `json:"memory_mb"`
	ElapsedSecs float64 `json:"elapsed_secs"`
}

// ResourceSampler periodically updates the CPU/RSS gauges from the current
// process, the way monitorMemory/collectMetrics do in the reference server.
type ResourceSampler struct {
	proc *process.Process
}

// NewResourceSampler constructs a sampler for the current process.
func NewResourceSampler() (*ResourceSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ResourceSampler{proc: proc}, nil
}

// Run samples every interval until ctx is canceled.
func (r *ResourceSampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cpu, err := r.proc.CPUPercent(); err == nil {
				processCPUPercent.Set(cpu)
			}
			if mem, err := r.proc.MemoryInfo(); err == nil && mem != nil {
				processRSSBytes.Set(float64(mem.RSS))
			}
		}
	}
}

// Current reads the process's CPU percent and RSS in MB at call time.
func (r *ResourceSampler) Current() (cpuPercent, memoryMB float64) {
	cpu, _ := r.proc.CPUPercent()
	mem, err := r.proc.MemoryInfo()
	if err != nil || mem == nil {
		return cpu, 0
	}
	return cpu, float64(mem.RSS) / 1024 / 1024
}

// ProgressPublisher republishes Snapshot values to a NATS subject. A nil
// *ProgressPublisher is valid and Publish becomes a no-op, so wiring NATS is
// optional per ambient-only telemetry scope.
type ProgressPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewProgressPublisher connects to url (e.g. "nats://127.0.0.1:4222") and
// returns a publisher for subject. Returns nil, nil if url is empty and
// nil, err if the connection fails; callers should treat a nil publisher as
// "disabled".
func NewProgressPublisher(url, subject string) (*ProgressPublisher, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &ProgressPublisher{conn: conn, subject: subject}, nil
}

// Publish sends one snapshot best-effort; failures are swallowed since
// progress telemetry is observational only and must never affect run
// outcome.
func (p *ProgressPublisher) Publish(s Snapshot) {
	if p == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = p.conn.Publish(p.subject, data)
}

// Close closes the NATS connection, if any.
func (p *ProgressPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
