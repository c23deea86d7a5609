// Package metrics holds the Prometheus collectors of the seat
// inventory.  All methods are safe on a nil *Collectors so components
// can run without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seat_inventory"

// Collectors groups every metric exported by the service.
type Collectors struct {
	registry *prometheus.Registry

	holdsCreated      prometheus.Counter
	holdConflicts     prometheus.Counter
	holdsReleased     *prometheus.CounterVec
	bookingsConfirmed prometheus.Counter
	bookingsReleased  prometheus.Counter
	adminOverrides    *prometheus.CounterVec
	storeWriteFailed  prometheus.Counter
	eventsDropped     prometheus.Counter
	seatRemain        *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry together with the
// Go runtime and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		holdsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_created_total",
			Help: "Holds successfully created.",
		}),
		holdConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hold_conflicts_total",
			Help: "Hold requests rejected because at least one seat was taken.",
		}),
		holdsReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_released_total",
			Help: "Holds that returned their seats, by reason.",
		}, []string{"reason"}),
		bookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bookings_confirmed_total",
			Help: "Holds finalized into bookings.",
		}),
		bookingsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bookings_released_total",
			Help: "Bookings cancelled through the release path.",
		}),
		adminOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "admin_overrides_total",
			Help: "Administrative seat operations, by action and outcome.",
		}, []string{"action", "outcome"}),
		storeWriteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_write_failures_total",
			Help: "Failed attempts to persist a seat transition.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total",
			Help: "Domain events dropped because the publish buffer was full or the broker failed.",
		}),
		seatRemain: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "seat_remain",
			Help: "Sellable seats left per screening.",
		}, []string{"screening_id"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.holdsCreated,
		c.holdConflicts,
		c.holdsReleased,
		c.bookingsConfirmed,
		c.bookingsReleased,
		c.adminOverrides,
		c.storeWriteFailed,
		c.eventsDropped,
		c.seatRemain,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collectors) HoldCreated() {
	if c != nil {
		c.holdsCreated.Inc()
	}
}

func (c *Collectors) HoldConflict() {
	if c != nil {
		c.holdConflicts.Inc()
	}
}

// HoldReleased counts a hold ending without a booking.  reason is one
// of owner, expired or forced.
func (c *Collectors) HoldReleased(reason string) {
	if c != nil {
		c.holdsReleased.WithLabelValues(reason).Inc()
	}
}

func (c *Collectors) BookingConfirmed() {
	if c != nil {
		c.bookingsConfirmed.Inc()
	}
}

func (c *Collectors) BookingReleased() {
	if c != nil {
		c.bookingsReleased.Inc()
	}
}

func (c *Collectors) AdminOverride(action, outcome string) {
	if c != nil {
		c.adminOverrides.WithLabelValues(action, outcome).Inc()
	}
}

func (c *Collectors) StoreWriteFailed() {
	if c != nil {
		c.storeWriteFailed.Inc()
	}
}

func (c *Collectors) EventDropped() {
	if c != nil {
		c.eventsDropped.Inc()
	}
}

func (c *Collectors) SetSeatRemain(screeningID string, n int) {
	if c != nil {
		c.seatRemain.WithLabelValues(screeningID).Set(float64(n))
	}
}
