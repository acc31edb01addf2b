// Package metrics exposes prometheus collectors for campaigns and scrapes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inviter"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	invites         *prometheus.CounterVec
	floodWaits      prometheus.Counter
	floodWaitTime   prometheus.Histogram
	scrapedMembers  prometheus.Counter
	groupsAdded     prometheus.Counter
	activeCampaigns prometheus.Gauge
	campaigns       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		invites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_total",
			Help:      "Invite attempts by resulting status.",
		}, []string{"status"}),
		floodWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_waits_total",
			Help:      "FLOOD_WAIT responses received from Telegram.",
		}),
		floodWaitTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flood_wait_seconds",
			Help:      "Requested flood wait durations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		}),
		scrapedMembers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraped_members_total",
			Help:      "New contacts stored by member scrapes.",
		}),
		groupsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_added_total",
			Help:      "Groups added from search or by link.",
		}),
		activeCampaigns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "campaigns_active",
			Help:      "Invite campaigns currently running.",
		}),
		campaigns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_total",
			Help:      "Finished invite campaigns by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InviteRecorded(status string) {
	if m == nil {
		return
	}
	m.invites.WithLabelValues(status).Inc()
}

func (m *Metrics) FloodWait(d time.Duration) {
	if m == nil {
		return
	}
	m.floodWaits.Inc()
	m.floodWaitTime.Observe(d.Seconds())
}

func (m *Metrics) MembersScraped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.scrapedMembers.Add(float64(n))
}

func (m *Metrics) GroupAdded() {
	if m == nil {
		return
	}
	m.groupsAdded.Inc()
}

// CampaignStarted bumps the active gauge; the returned func records the
// result and lowers it again.
func (m *Metrics) CampaignStarted() func(result string) {
	if m == nil {
		return func(string) {}
	}
	m.activeCampaigns.Inc()
	return func(result string) {
		m.activeCampaigns.Dec()
		m.campaigns.WithLabelValues(result).Inc()
	}
}
