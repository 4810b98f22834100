package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all service metrics
const namespace = "eventreg"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

var initOnce sync.Once

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Registration workflow metrics
var (
	// RegistrationsTotal counts registration attempts by outcome
	// (success, not_found, past_event, duplicate, full, invalid, error)
	RegistrationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CapacityRejectionsTotal counts registrations refused because the event was full
	CapacityRejectionsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Total number of registrations rejected because the event was full",
		},
	)

	CancellationsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Total number of cancelled registrations",
		},
	)

	EventsCreatedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_created_total",
			Help:      "Total number of events created",
		},
	)
)

// Init registers the runtime collectors and sets version information.
// Safe to call more than once.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())

		// Register process metrics (CPU, memory, file descriptors)
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
