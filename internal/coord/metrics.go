package coord

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiata2dp_events_processed_total",
			Help: "Total number of stack and user events consumed by the coordinator",
		},
		[]string{"type"},
	)

	metricsEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiata2dp_events_dropped_total",
			Help: "Total number of events dropped because the event queue was full",
		},
	)

	metricsInvalidTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiata2dp_invalid_transitions_total",
			Help: "Total number of events ignored as invalid in the current state",
		},
	)

	metricsSyncGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiata2dp_sync_grants_total",
			Help: "Total number of synchronous-connection grants issued",
		},
	)

	metricsSyncGrantDenialsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiata2dp_sync_grant_denials_total",
			Help: "Total number of synchronous-connection requests denied with slot busy",
		},
	)

	metricsRouteSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiata2dp_route_switches_total",
			Help: "Total number of committed audio route switches",
		},
		[]string{"route"},
	)

	metricsRouteRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiata2dp_route_rejections_total",
			Help: "Total number of route switches rejected by the audio sink",
		},
	)

	metricsEventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fiata2dp_event_queue_depth",
			Help: "Current depth of the coordinator event queue",
		},
	)

	metricsCoordinatorState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fiata2dp_coordinator_state",
			Help: "Coordinator state as an enum: 0=idle 1=music-only 2=call-only 3=call-overriding-music",
		},
	)

	metricsRegisteredDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fiata2dp_registered_devices",
			Help: "Number of remote devices currently registered",
		},
	)
)
