package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PacketsCaptured counts total packets received by the sniffer
	PacketsCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "packets_captured_total",
			Help:      "Total number of packets captured by the sniffer",
		},
		[]string{"interface"},
	)

	// PacketsProcessed counts packets successfully processed by the application
	PacketsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "packets_processed_total",
			Help:      "Total number of packets processed by the application",
		},
		[]string{"interface"},
	)

	// PacketsDropped counts packets dropped due to buffer full or errors
	PacketsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "packets_dropped_total",
			Help:      "Total number of packets dropped",
		},
		[]string{"interface", "reason"},
	)

	// ProbesAdmitted counts parsed probe requests that passed the ignore
	// filter and were handed to the store.
	ProbesAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "probes_admitted_total",
			Help:      "Total number of probe requests admitted past the ignore filter",
		},
		[]string{"interface"},
	)

	// ProbesIgnored counts parsed probe requests dropped by the ignore
	// filter, broken down by which axis (mac/ssid) matched.
	ProbesIgnored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "probes_ignored_total",
			Help:      "Total number of probe requests dropped by the ignore filter",
		},
		[]string{"reason"},
	)

	// ChannelHops counts channel changes issued by the hopper.
	ChannelHops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "channel_hops_total",
			Help:      "Total number of channel hops performed",
		},
		[]string{"interface"},
	)

	// GPSFixes counts valid position fixes received from gpsd.
	GPSFixes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "gps_fixes_total",
			Help:      "Total number of valid GPS fixes received",
		},
	)

	// StoreWrites counts successful and failed probe persistence attempts.
	StoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prowlsensor",
			Name:      "store_writes_total",
			Help:      "Total number of probe persistence attempts",
		},
		[]string{"result"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		// This prevents panics when metrics are already in the registry
		prometheus.DefaultRegisterer.Register(PacketsCaptured)
		prometheus.DefaultRegisterer.Register(PacketsProcessed)
		prometheus.DefaultRegisterer.Register(PacketsDropped)
		prometheus.DefaultRegisterer.Register(ProbesAdmitted)
		prometheus.DefaultRegisterer.Register(ProbesIgnored)
		prometheus.DefaultRegisterer.Register(ChannelHops)
		prometheus.DefaultRegisterer.Register(GPSFixes)
		prometheus.DefaultRegisterer.Register(StoreWrites)
	})
}
