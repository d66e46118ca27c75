package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	links         *prom.CounterVec
	entries       *prom.CounterVec
	buildDuration prom.Histogram
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		links: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wikilinker",
			Name:      "links_total",
			Help:      "Rewritten wikilinks by resolution kind",
		}, []string{"kind"}),
		entries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wikilinker",
			Name:      "entries_total",
			Help:      "Entries processed by builds, by result",
		}, []string{"result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "wikilinker",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.links, pr.entries, pr.buildDuration)
	return pr
}

func (p *PrometheusRecorder) IncLink(kind string) {
	p.links.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncEntry(result string) {
	p.entries.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
