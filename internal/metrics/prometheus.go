package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "standx_grid_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	ordersPlaced    prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersCancelled prometheus.Counter
	cancelsFailed   prometheus.Counter
	throttleSkips   prometheus.Counter
	staleCancelled  prometheus.Counter
	flattens        prometheus.Counter
	cycleFailures   prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	newCounter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
	}
	ordersPlaced := newCounter("orders_placed_total", "Total number of grid orders placed.")
	ordersFailed := newCounter("orders_failed_total", "Total number of order placement failures.")
	ordersCancelled := newCounter("orders_cancelled_total", "Total number of orders cancelled by reconciliation.")
	cancelsFailed := newCounter("cancels_failed_total", "Total number of cancellation failures.")
	throttleSkips := newCounter("throttle_skips_total", "Total number of placements suppressed by the cooldown gate.")
	staleCancelled := newCounter("stale_cancelled_total", "Total number of stale orders cancelled by the janitor.")
	flattens := newCounter("flattens_total", "Total number of position flattens executed.")
	cycleFailures := newCounter("cycle_failures_total", "Total number of reconciliation cycles that failed.")

	registry.MustRegister(ordersPlaced, ordersFailed, ordersCancelled, cancelsFailed,
		throttleSkips, staleCancelled, flattens, cycleFailures)

	m := &Metrics{
		OrdersPlaced:    promCounter{ordersPlaced},
		OrdersFailed:    promCounter{ordersFailed},
		OrdersCancelled: promCounter{ordersCancelled},
		CancelsFailed:   promCounter{cancelsFailed},
		ThrottleSkips:   promCounter{throttleSkips},
		StaleCancelled:  promCounter{staleCancelled},
		Flattens:        promCounter{flattens},
		CycleFailures:   promCounter{cycleFailures},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		ordersPlaced:    ordersPlaced,
		ordersFailed:    ordersFailed,
		ordersCancelled: ordersCancelled,
		cancelsFailed:   cancelsFailed,
		throttleSkips:   throttleSkips,
		staleCancelled:  staleCancelled,
		flattens:        flattens,
		cycleFailures:   cycleFailures,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
