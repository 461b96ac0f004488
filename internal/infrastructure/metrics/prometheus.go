package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace/internal/domain"
)

// Collector records bidding outcomes on its own registry.
type Collector struct {
	registry *prometheus.Registry

	bidsAccepted  *prometheus.CounterVec
	bidsRejected  *prometheus.CounterVec
	offersDeleted prometheus.Counter
	cascadeRows   *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "marketplace"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.bidsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "accepted_total",
			Help:      "Accepted bid submissions by kind (new, raise)",
		},
		[]string{"kind"},
	)
	c.bidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "rejected_total",
			Help:      "Rejected bid submissions by reason",
		},
		[]string{"reason"},
	)
	c.offersDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offers",
			Name:      "deleted_total",
			Help:      "Offers removed with their dependents",
		},
	)
	c.cascadeRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offers",
			Name:      "cascade_deleted_total",
			Help:      "Dependent rows removed by offer deletion",
		},
		[]string{"entity"},
	)

	c.registry.MustRegister(
		c.bidsAccepted,
		c.bidsRejected,
		c.offersDeleted,
		c.cascadeRows,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) BidAccepted(kind string) {
	c.bidsAccepted.WithLabelValues(kind).Inc()
}

func (c *Collector) BidRejected(reason string) {
	c.bidsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) OfferDeleted(result domain.CascadeResult) {
	c.offersDeleted.Inc()
	c.cascadeRows.WithLabelValues("bid").Add(float64(result.BidsDeleted))
	c.cascadeRows.WithLabelValues("notification").Add(float64(result.NotificationsDeleted))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
