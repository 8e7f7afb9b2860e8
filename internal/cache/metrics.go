package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Tier names used in metrics labels and Clear.
const (
	TierEmbeddings = "embeddings"
	TierPersistent = "persistent"
	TierSummaries  = "summaries"
	TierFormatting = "formatting"
	TierAll        = "all"
)

// Metrics counts cache lookups and gateway calls on a private registry so
// several sessions in one process never collide.
type Metrics struct {
	registry      *prometheus.Registry
	lookups       *prometheus.CounterVec
	gatewayCalls  prometheus.Counter
	gatewayErrors prometheus.Counter
}

// NewMetrics creates and registers the cache collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branchmind",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		gatewayCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "branchmind",
			Subsystem: "gateway",
			Name:      "embed_calls_total",
			Help:      "Embedding calls sent to the gateway.",
		}),
		gatewayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "branchmind",
			Subsystem: "gateway",
			Name:      "embed_errors_total",
			Help:      "Embedding calls that failed.",
		}),
	}
	m.registry.MustRegister(m.lookups, m.gatewayCalls, m.gatewayErrors)
	return m
}

// Registry exposes the registry for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) hit(tier string)  { m.lookups.WithLabelValues(tier, "hit").Inc() }
func (m *Metrics) miss(tier string) { m.lookups.WithLabelValues(tier, "miss").Inc() }

func (m *Metrics) lookupCount(tier, result string) float64 {
	return counterValue(m.lookups.WithLabelValues(tier, result))
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}
