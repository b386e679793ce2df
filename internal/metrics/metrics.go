package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring the device console

var (
	// Feed metrics
	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_feed_connected",
		Help: "Feed connection status (0=disconnected, 1=connected)",
	})

	FeedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_feed_messages_total",
		Help: "Feed messages received by message type and result",
	}, []string{"type", "result"}) // result: applied|ignored|malformed|stale

	FeedConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_feed_connect_attempts_total",
		Help: "Feed connect attempts by transport and result",
	}, []string{"transport", "result"})

	// Registry metrics
	RegistryDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_registry_devices",
		Help: "Number of devices currently held by the registry",
	})

	RegistryGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_registry_groups",
		Help: "Number of groups currently held by the registry",
	})

	SelectedDevices = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "console_selected_devices",
		Help: "Number of selected devices by mode",
	}, []string{"mode"})

	// Map metrics
	MapPlacemarks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_map_placemarks",
		Help: "Number of placemarks last rendered on the map surface",
	})

	MapSyncSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_map_sync_skipped_total",
		Help: "Map synchronisation calls skipped because the surface was not attached",
	}, []string{"operation"})

	// Snapshot metrics
	SnapshotOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_snapshot_operations_total",
		Help: "Snapshot store operations by owner, operation and result",
	}, []string{"owner", "operation", "result"}) // operation: save|restore, result: success|missing|error|corrupt

	SnapshotFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "console_snapshot_flush_duration_seconds",
		Help:    "Time taken to flush dirty snapshots to the store",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// Feed server metrics
	FeedServerClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_feedserver_clients",
		Help: "Number of clients connected to the mock feed server",
	})

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method, path, and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, path, and status",
	}, []string{"method", "path", "status"})
)
