package observability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	Enabled   bool
	Namespace string // metric name prefix
	Version   string // reported by the _info gauge
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "tripplanner", Version: "dev"}
}

// MetricsConfigFromEnv reads TRIPPLANNER_METRICS_ENABLED and APP_VERSION.
func MetricsConfigFromEnv() MetricsConfig {
	cfg := DefaultMetricsConfig()
	if v := os.Getenv("TRIPPLANNER_METRICS_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		cfg.Version = v
	}
	return cfg
}

// counterVec is a set of counters keyed by an ordered tuple of label values.
type counterVec struct {
	labels []string
	mu     sync.RWMutex
	values map[string]*atomic.Int64
}

func newCounterVec(labels ...string) *counterVec {
	return &counterVec{labels: labels, values: make(map[string]*atomic.Int64)}
}

func (c *counterVec) inc(values ...string) {
	key := strings.Join(values, "\x00")
	c.mu.RLock()
	ctr, ok := c.values[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if ctr, ok = c.values[key]; !ok {
			ctr = &atomic.Int64{}
			c.values[key] = ctr
		}
		c.mu.Unlock()
	}
	ctr.Add(1)
}

func (c *counterVec) get(values ...string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ctr, ok := c.values[strings.Join(values, "\x00")]; ok {
		return ctr.Load()
	}
	return 0
}

func (c *counterVec) write(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
	c.mu.RLock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := strings.Split(k, "\x00")
		pairs := make([]string, len(c.labels))
		for i, l := range c.labels {
			pairs[i] = fmt.Sprintf("%s=%q", l, vals[i])
		}
		fmt.Fprintf(w, "%s{%s} %d\n", name, strings.Join(pairs, ","), c.values[k].Load())
	}
	c.mu.RUnlock()
	fmt.Fprintln(w)
}

// durationWindow keeps the most recent samples for quantile estimates.
type durationWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func newDurationWindow(size int) *durationWindow {
	return &durationWindow{samples: make([]float64, size)}
}

func (d *durationWindow) add(v time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples[d.next] = v.Seconds()
	d.next = (d.next + 1) % len(d.samples)
	if d.next == 0 {
		d.full = true
	}
}

func (d *durationWindow) snapshot() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.next
	if d.full {
		n = len(d.samples)
	}
	out := append([]float64(nil), d.samples[:n]...)
	sort.Float64s(out)
	return out
}

// quantile interpolates linearly between the two nearest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo := int(idx)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// Metrics collects service counters and exposes them in Prometheus text
// format. A nil *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	version   string

	httpRequests *counterVec // method, path, status
	durMu        sync.RWMutex
	durations    map[string]*durationWindow // "method path"

	providerCalls *counterVec // kind, outcome
	generations   *counterVec // status
	chatTurns     *counterVec // intent
	rateLimited   *counterVec // status

	activeConnections atomic.Int64
	liveSubscribers   atomic.Int64
}

// NewMetrics creates a collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "tripplanner"
	}
	return &Metrics{
		namespace:     cfg.Namespace,
		version:       cfg.Version,
		httpRequests:  newCounterVec("method", "path", "status"),
		durations:     make(map[string]*durationWindow),
		providerCalls: newCounterVec("kind", "outcome"),
		generations:   newCounterVec("status"),
		chatTurns:     newCounterVec("intent"),
		rateLimited:   newCounterVec("status"),
	}
}

// NoopMetrics returns a nil collector; every method on it is a no-op.
func NoopMetrics() *Metrics { return nil }

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	path = normalizePath(path)
	m.httpRequests.inc(method, path, fmt.Sprint(status))

	key := method + " " + path
	m.durMu.RLock()
	win, ok := m.durations[key]
	m.durMu.RUnlock()
	if !ok {
		m.durMu.Lock()
		if win, ok = m.durations[key]; !ok {
			win = newDurationWindow(1000)
			m.durations[key] = win
		}
		m.durMu.Unlock()
	}
	win.add(d)
}

// RecordProviderCall counts a gateway call. outcome is one of "ok",
// "fallback" or "cache".
func (m *Metrics) RecordProviderCall(kind, outcome string) {
	if m == nil {
		return
	}
	m.providerCalls.inc(kind, outcome)
}

// RecordGeneration counts an itinerary generation by final status.
func (m *Metrics) RecordGeneration(status string) {
	if m == nil {
		return
	}
	m.generations.inc(status)
}

// RecordChatTurn counts a processed user turn by detected intent.
func (m *Metrics) RecordChatTurn(intent string) {
	if m == nil {
		return
	}
	m.chatTurns.inc(intent)
}

// RecordRateLimit counts a rate limiter decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.rateLimited.inc("allowed")
	} else {
		m.rateLimited.inc("rejected")
	}
}

// AddLiveSubscribers adjusts the realtime subscriber gauge by delta.
func (m *Metrics) AddLiveSubscribers(delta int64) {
	if m == nil {
		return
	}
	m.liveSubscribers.Add(delta)
}

// ProviderCalls returns the count recorded for kind and outcome.
func (m *Metrics) ProviderCalls(kind, outcome string) int64 {
	if m == nil {
		return 0
	}
	return m.providerCalls.get(kind, outcome)
}

// Generations returns the count recorded for status.
func (m *Metrics) Generations(status string) int64 {
	if m == nil {
		return 0
	}
	return m.generations.get(status)
}

// normalizePath collapses UUID and numeric path segments to {id}.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		} else if strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.WriteTo(w)
	})
}

// WriteTo writes every metric in Prometheus text format.
func (m *Metrics) WriteTo(w io.Writer) {
	if m == nil {
		return
	}
	ns := m.namespace
	fmt.Fprintf(w, "# HELP %s_info Application information\n# TYPE %s_info gauge\n%s_info{version=%q} 1\n\n", ns, ns, ns, m.version)

	m.httpRequests.write(w, ns+"_http_requests_total", "Total number of HTTP requests")

	name := ns + "_http_request_duration_seconds"
	fmt.Fprintf(w, "# HELP %s HTTP request duration in seconds\n# TYPE %s summary\n", name, name)
	m.durMu.RLock()
	keys := make([]string, 0, len(m.durations))
	for k := range m.durations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		method, path, _ := strings.Cut(k, " ")
		samples := m.durations[k].snapshot()
		var sum float64
		for _, s := range samples {
			sum += s
		}
		for _, q := range []float64{0.5, 0.9, 0.99} {
			fmt.Fprintf(w, "%s{method=%q,path=%q,quantile=\"%.2f\"} %.6f\n", name, method, path, q, quantile(samples, q))
		}
		fmt.Fprintf(w, "%s_sum{method=%q,path=%q} %.6f\n", name, method, path, sum)
		fmt.Fprintf(w, "%s_count{method=%q,path=%q} %d\n", name, method, path, len(samples))
	}
	m.durMu.RUnlock()
	fmt.Fprintln(w)

	m.providerCalls.write(w, ns+"_provider_calls_total", "External provider calls by kind and outcome")
	m.generations.write(w, ns+"_generations_total", "Itinerary generations by status")
	m.chatTurns.write(w, ns+"_chat_turns_total", "Chat turns by detected intent")
	m.rateLimited.write(w, ns+"_rate_limit_requests_total", "Total rate limit decisions")

	fmt.Fprintf(w, "# HELP %s_active_connections Current number of in-flight HTTP requests\n# TYPE %s_active_connections gauge\n%s_active_connections %d\n\n",
		ns, ns, ns, m.activeConnections.Load())
	fmt.Fprintf(w, "# HELP %s_live_subscribers Current realtime subscribers\n# TYPE %s_live_subscribers gauge\n%s_live_subscribers %d\n",
		ns, ns, ns, m.liveSubscribers.Load())
}

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack passes through to the underlying writer for websocket upgrades.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

// MetricsMiddleware records count, duration and in-flight gauge per request.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			m.activeConnections.Add(1)
			defer m.activeConnections.Add(-1)
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}

// RateLimitMetricsMiddleware counts allowed and rejected decisions made by
// the rate limiter it wraps.
func RateLimitMetricsMiddleware(m *Metrics, enabled bool) func(http.Handler) http.Handler {
	if m == nil || !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.RecordRateLimit(rec.status != http.StatusTooManyRequests)
		})
	}
}

type metricsKey struct{}

// WithMetrics adds m to ctx.
func WithMetrics(ctx context.Context, m *Metrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, m)
}

// GetMetrics returns the collector stored in ctx, or nil.
func GetMetrics(ctx context.Context) *Metrics {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(metricsKey{}).(*Metrics)
	return m
}
