// Package metrics exports gallery activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photogallery/internal/gallery"
)

const namespace = "photogallery"

// Collector observes the gallery and counts failures reported by the
// service layer.
type Collector struct {
	images          prometheus.Gauge
	appends         prometheus.Counter
	removals        prometheus.Counter
	persistFailures prometheus.Counter
	decodeFailures  prometheus.Counter
}

// NewCollector registers the gallery metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		images: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "images",
			Help:      "Number of images currently in the gallery.",
		}),
		appends: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appends_total",
			Help:      "Images appended to the gallery, including those loaded at startup.",
		}),
		removals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removals_total",
			Help:      "Images removed from the gallery.",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Store writes that failed; the affected change does not survive a reload.",
		}),
		decodeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Files skipped because they could not be decoded.",
		}),
	}
}

func (c *Collector) ImageAppended(gallery.Image, int) {
	c.images.Inc()
	c.appends.Inc()
}

func (c *Collector) ImageRemoved(gallery.Image, int) {
	c.images.Dec()
	c.removals.Inc()
}

func (c *Collector) DecodeFailed()  { c.decodeFailures.Inc() }
func (c *Collector) PersistFailed() { c.persistFailures.Inc() }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
