package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "staybooking"

// Reservation outcomes.
const (
	ReservationCreated   = "created"
	ReservationCollision = "collision"
	ReservationCanceled  = "canceled"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by result.",
		},
		[]string{"result"},
	)

	searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of available stays returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	geoSyncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_sync_tasks_total",
			Help:      "Geo index sync tasks by final status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, searchResults, geoSyncTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

func ObserveSearchResults(n int) {
	searchResults.Observe(float64(n))
}

func IncGeoSync(status string) {
	geoSyncTasks.WithLabelValues(status).Inc()
}

// WatchGeoIndex exports the failover state of the geo index as gauges.
func WatchGeoIndex(degraded func() bool, missed func() int) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geo_index_degraded",
			Help:      "1 while geo queries are served by the in-memory fallback.",
		}, func() float64 {
			if degraded() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geo_index_missed_writes",
			Help:      "Geo writes the primary index has not seen yet.",
		}, func() float64 {
			return float64(missed())
		}),
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
