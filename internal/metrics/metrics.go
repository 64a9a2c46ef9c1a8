package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReceiversRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcastevent_receivers_registered_total",
		Help: "Total number of register calls, labelled by status.",
	}, []string{"status"})

	ReceiversUnregistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcastevent_receivers_unregistered_total",
		Help: "Total number of unregister calls, labelled by status.",
	}, []string{"status"})

	ReceiversActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcastevent_receivers_active",
		Help: "Number of receivers currently armed on the platform channel.",
	})

	DeliveriesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcastevent_deliveries_received_total",
		Help: "Total number of payloads delivered by the platform channel to receivers.",
	})

	DeliveriesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcastevent_deliveries_dropped_total",
		Help: "Total number of deliveries discarded before publication, labelled by reason.",
	}, []string{"reason"})

	FieldsMissing = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcastevent_fields_missing_total",
		Help: "Total number of requested fields absent from a delivered payload.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcastevent_events_published_total",
		Help: "Total number of events published, labelled by outcome (delivered, dropped).",
	}, []string{"outcome"})

	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcastevent_broadcasts_sent_total",
		Help: "Total number of outbound broadcasts, labelled by status.",
	}, []string{"status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "broadcastevent_dispatch_duration_ms",
		Help:    "Latency from platform delivery to publication in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcastevent_dispatch_queue_utilization_ratio",
		Help: "Current dispatch queue utilization (0–1).",
	})
)
