package scheduler

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer получает телеметрию планировщика.
type Observer interface {
	SweepFinished(duration time.Duration, subscriptions int, err error)
	SubscriptionFailed()
	NotificationDelivered(channel string, success bool)
	ArrivalDeduplicated()
}

type PrometheusObserver struct {
	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	subscriptions prometheus.Counter
	subErrors     prometheus.Counter
	deliveries    *prometheus.CounterVec
	deduplicated  prometheus.Counter
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "busnoti"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Scheduler sweeps by outcome.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one sweep over active subscriptions.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "subscriptions_processed_total",
			Help:      "Subscriptions evaluated across sweeps.",
		}),
		subErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "subscription_errors_total",
			Help:      "Subscriptions whose processing failed within a sweep.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and outcome.",
		}, []string{"channel", "success"}),
		deduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arrivals_deduplicated_total",
			Help:      "Arrival events skipped because a notification was already recorded.",
		}),
	}

	for _, c := range []prometheus.Collector{o.sweeps, o.sweepDuration, o.subscriptions, o.subErrors, o.deliveries, o.deduplicated} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, errors.Wrap(err, "register scheduler metric")
		}
	}
	return o, nil
}

func (o *PrometheusObserver) SweepFinished(d time.Duration, subscriptions int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.sweeps.WithLabelValues(result).Inc()
	o.sweepDuration.Observe(d.Seconds())
	o.subscriptions.Add(float64(subscriptions))
}

func (o *PrometheusObserver) SubscriptionFailed() { o.subErrors.Inc() }

func (o *PrometheusObserver) NotificationDelivered(channel string, success bool) {
	o.deliveries.WithLabelValues(channel, strconv.FormatBool(success)).Inc()
}

func (o *PrometheusObserver) ArrivalDeduplicated() { o.deduplicated.Inc() }

type nopObserver struct{}

func (nopObserver) SweepFinished(time.Duration, int, error) {}

func (nopObserver) SubscriptionFailed() {}

func (nopObserver) NotificationDelivered(string, bool) {}

func (nopObserver) ArrivalDeduplicated() {}
