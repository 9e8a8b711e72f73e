package vpinmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_trades_ingested_total",
		Help: "Total trades fed into the bucket accumulator",
	})
	TradesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_trades_rejected_total",
		Help: "Trades rejected for violating input invariants (negative quantity)",
	})
	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_parse_errors_total",
		Help: "Feed messages discarded because they could not be parsed",
	})
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_feed_reconnects_total",
		Help: "Feed reconnect attempts after an unexpected disconnect",
	})

	BucketsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_buckets_closed_total",
		Help: "Volume buckets closed at capacity",
	})
	Score = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vpin_score",
		Help: "Most recent rolling VPIN score",
	})
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpin_alerts_total",
		Help: "Readings emitted, partitioned by alert level",
	}, []string{"level"})

	ReadingsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpin_readings_published_total",
		Help: "Toxicity readings published on the event bus",
	})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vpin_bus_subscribers",
		Help: "Currently registered event bus subscribers",
	})
	SubscriberDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpin_bus_subscriber_drops_total",
		Help: "Subscribers unregistered by the bus, partitioned by reason",
	}, []string{"why"}) // send_error / queue_full / closed

	InvestigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpin_investigations_total",
		Help: "Investigation trigger outcomes",
	}, []string{"outcome"}) // started / skipped_busy / failed / completed
)
