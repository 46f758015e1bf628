// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime metrics for the agent
type Metrics struct {
	// Requests
	Requests      atomic.Int64
	RequestErrors atomic.Int64

	// Classification
	ClassifyPattern     atomic.Int64
	ClassifyModel       atomic.Int64
	ClassifyFallback    atomic.Int64
	ClassifyUnavailable atomic.Int64

	// Worker pool
	InFlight atomic.Int64

	// Timing (last task duration in ms)
	LastTaskDurationMs atomic.Int64

	mu        sync.Mutex
	tasks     map[string]int64 // operation -> total
	failures  map[string]int64 // operation/kind -> total
	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New returns an empty metrics set.
func New() *Metrics {
	return &Metrics{
		tasks:     make(map[string]int64),
		failures:  make(map[string]int64),
		startTime: time.Now(),
	}
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordRequest records an HTTP request and whether it failed
func (m *Metrics) RecordRequest(failed bool) {
	m.Requests.Add(1)
	if failed {
		m.RequestErrors.Add(1)
	}
}

// RecordClassification records how a task was routed ("pattern", "model",
// "fallback" or "unavailable")
func (m *Metrics) RecordClassification(source string) {
	switch source {
	case "pattern":
		m.ClassifyPattern.Add(1)
	case "model":
		m.ClassifyModel.Add(1)
	case "fallback":
		m.ClassifyFallback.Add(1)
	default:
		m.ClassifyUnavailable.Add(1)
	}
}

// RecordTask records one executed operation; kind is empty on success
func (m *Metrics) RecordTask(operation, kind string, duration time.Duration) {
	m.mu.Lock()
	m.tasks[operation]++
	if kind != "" {
		m.failures[operation+"/"+kind]++
	}
	m.mu.Unlock()
	m.LastTaskDurationMs.Store(duration.Milliseconds())
}

// TaskCount returns how many times operation ran.
func (m *Metrics) TaskCount(operation string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[operation]
}

// FailureCount returns how many runs of operation failed with kind.
func (m *Metrics) FailureCount(operation, kind string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[operation+"/"+kind]
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()

		fmt.Fprintf(w, "# HELP agent_uptime_seconds Time since the agent started\n")
		fmt.Fprintf(w, "# TYPE agent_uptime_seconds gauge\n")
		fmt.Fprintf(w, "agent_uptime_seconds %.2f\n\n", uptime)

		fmt.Fprintf(w, "# HELP agent_requests_total Total HTTP requests served\n")
		fmt.Fprintf(w, "# TYPE agent_requests_total counter\n")
		fmt.Fprintf(w, "agent_requests_total %d\n\n", m.Requests.Load())

		fmt.Fprintf(w, "# HELP agent_request_errors_total Total HTTP requests answered with an error\n")
		fmt.Fprintf(w, "# TYPE agent_request_errors_total counter\n")
		fmt.Fprintf(w, "agent_request_errors_total %d\n\n", m.RequestErrors.Load())

		fmt.Fprintf(w, "# HELP agent_classifications_total Tasks routed, by source\n")
		fmt.Fprintf(w, "# TYPE agent_classifications_total counter\n")
		fmt.Fprintf(w, "agent_classifications_total{source=\"pattern\"} %d\n", m.ClassifyPattern.Load())
		fmt.Fprintf(w, "agent_classifications_total{source=\"model\"} %d\n", m.ClassifyModel.Load())
		fmt.Fprintf(w, "agent_classifications_total{source=\"fallback\"} %d\n", m.ClassifyFallback.Load())
		fmt.Fprintf(w, "agent_classifications_total{source=\"unavailable\"} %d\n\n", m.ClassifyUnavailable.Load())

		m.mu.Lock()
		tasks := sortedKeys(m.tasks)
		fmt.Fprintf(w, "# HELP agent_tasks_total Operations executed\n")
		fmt.Fprintf(w, "# TYPE agent_tasks_total counter\n")
		for _, op := range tasks {
			fmt.Fprintf(w, "agent_tasks_total{operation=%q} %d\n", op, m.tasks[op])
		}
		fmt.Fprintln(w)

		failures := sortedKeys(m.failures)
		fmt.Fprintf(w, "# HELP agent_task_failures_total Operations that failed, by error kind\n")
		fmt.Fprintf(w, "# TYPE agent_task_failures_total counter\n")
		for _, key := range failures {
			op, kind := splitKey(key)
			fmt.Fprintf(w, "agent_task_failures_total{operation=%q,kind=%q} %d\n", op, kind, m.failures[key])
		}
		m.mu.Unlock()
		fmt.Fprintln(w)

		fmt.Fprintf(w, "# HELP agent_tasks_in_flight Tasks holding a worker slot\n")
		fmt.Fprintf(w, "# TYPE agent_tasks_in_flight gauge\n")
		fmt.Fprintf(w, "agent_tasks_in_flight %d\n\n", m.InFlight.Load())

		fmt.Fprintf(w, "# HELP agent_last_task_duration_ms Last task duration\n")
		fmt.Fprintf(w, "# TYPE agent_last_task_duration_ms gauge\n")
		fmt.Fprintf(w, "agent_last_task_duration_ms %d\n", m.LastTaskDurationMs.Load())
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitKey(key string) (string, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
