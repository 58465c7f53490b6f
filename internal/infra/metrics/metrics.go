package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

const namespace = "a2a"

// Metrics holds the Prometheus collectors of one agent. Each agent owns its
// registry so several agents can share a process.
type Metrics struct {
	registry *prometheus.Registry

	TasksTotal        *prometheus.CounterVec
	TaskDuration      prometheus.Histogram
	DecisionsTotal    prometheus.Counter
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	DelegationsTotal  *prometheus.CounterVec
	DelegationLatency *prometheus.HistogramVec
	PeersRegistered   prometheus.Gauge
	ToolConnections   prometheus.Gauge
	PeerCircuitState  *prometheus.GaugeVec
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry, plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	// Buckets: 10ms .. 2m; delegations and reasoning calls are slow.
	slow := []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

	return &Metrics{
		registry: reg,
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks that reached a terminal state, by state and error kind.",
		}, []string{"state", "kind"}),
		TaskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time from submitted to terminal state.",
			Buckets:   slow,
		}),
		DecisionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Reasoning steps taken by the decision loop.",
		}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "status"}),
		ToolCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool invocations.",
			Buckets:   slow,
		}, []string{"tool"}),
		DelegationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegations_total",
			Help:      "Delegations to peer agents by peer and outcome.",
		}, []string{"peer", "status"}),
		DelegationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delegation_duration_seconds",
			Help:      "Round trip of a delegation to a peer agent.",
			Buckets:   slow,
		}, []string{"peer"}),
		PeersRegistered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_registered",
			Help:      "Peer agents currently in the registry.",
		}),
		ToolConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tool_connections",
			Help:      "Live tool server connections.",
		}),
		PeerCircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peer_circuit_state",
			Help:      "Circuit breaker state per peer: 0 closed, 1 half-open, 2 open.",
		}, []string{"peer"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   slow,
		}, []string{"route"}),
	}
}

// Handler serves this agent's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveTask records a terminal task.
func (m *Metrics) ObserveTask(state domain.TaskState, err error, elapsed time.Duration) {
	kind := ""
	if err != nil {
		kind = string(domain.ErrorCodeOf(err))
	}
	m.TasksTotal.WithLabelValues(string(state), kind).Inc()
	m.TaskDuration.Observe(elapsed.Seconds())
}

// ObserveDecision counts one reasoning step.
func (m *Metrics) ObserveDecision() { m.DecisionsTotal.Inc() }

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool string, err error, elapsed time.Duration) {
	m.ToolCallsTotal.WithLabelValues(tool, outcome(err)).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveDelegation records one delegation attempt.
func (m *Metrics) ObserveDelegation(peer string, err error, elapsed time.Duration) {
	m.DelegationsTotal.WithLabelValues(peer, outcome(err)).Inc()
	m.DelegationLatency.WithLabelValues(peer).Observe(elapsed.Seconds())
}

// ObservePeerBreaker records a breaker transition for peer. Unknown state
// names are ignored.
func (m *Metrics) ObservePeerBreaker(peer, state string) {
	v, ok := breakerStates[state]
	if !ok {
		return
	}
	m.PeerCircuitState.WithLabelValues(peer).Set(v)
}

var breakerStates = map[string]float64{"closed": 0, "half-open": 1, "open": 2}

// TrackConversations exposes the size of the conversation store and the
// number of conversations with a task running or queued. Both are read at
// scrape time.
func (m *Metrics) TrackConversations(store interface{ IDs() []string }, locker interface{ ActiveCount() int }) {
	f := promauto.With(m.registry)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "conversations",
		Help:      "Conversations held in memory.",
	}, func() float64 { return float64(len(store.IDs())) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "conversations_active",
		Help:      "Conversations with a task running or waiting for the lock.",
	}, func() float64 { return float64(locker.ActiveCount()) })
}

// ObserveHTTP implements middleware.RequestObserver.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	r := route(path)
	m.HTTPRequestsTotal.WithLabelValues(method, r, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(r).Observe(elapsed.Seconds())
}

// outcome turns an error into a low-cardinality label.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.ErrorCodeOf(err))
}

// route collapses unknown paths so scanners cannot explode label cardinality.
func route(path string) string {
	switch path {
	case "/", "/.well-known/agent-card.json", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}
