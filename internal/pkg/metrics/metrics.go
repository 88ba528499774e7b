// Package metrics exposes the console's prometheus collectors. All methods are
// safe to call on a nil *Collector, which records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "store_admin"

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	StaleResponses   *prometheus.CounterVec
	Invalidations    *prometheus.CounterVec
	SignOuts         prometheus.Counter
	ActiveSessions   prometheus.Gauge
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the upstream admin API",
		}, []string{"resource", "method", "status"}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "List and search responses discarded because a newer query was issued",
		}, []string{"resource"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "resourceChanged events published after successful mutations",
		}, []string{"resource"}),
		SignOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_outs_total",
			Help:      "Sessions terminated, by user request or upstream 401",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workspaces",
			Help:      "Session workspaces currently held in memory",
		}),
	}
	reg.MustRegister(c.UpstreamRequests, c.StaleResponses, c.Invalidations, c.SignOuts, c.ActiveSessions)
	return c
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream counts one upstream call; status 0 means no response arrived.
func (c *Collector) ObserveUpstream(resource, method string, status int) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.UpstreamRequests.WithLabelValues(resource, method, label).Inc()
}

func (c *Collector) StaleResponse(resource string) {
	if c == nil {
		return
	}
	c.StaleResponses.WithLabelValues(resource).Inc()
}

func (c *Collector) Invalidated(resource string) {
	if c == nil {
		return
	}
	c.Invalidations.WithLabelValues(resource).Inc()
}

func (c *Collector) SignedOut() {
	if c == nil {
		return
	}
	c.SignOuts.Inc()
}

func (c *Collector) WorkspaceOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

func (c *Collector) WorkspaceClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}
