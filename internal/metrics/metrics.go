package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todolist",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "todolist",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "todolist",
		Name:      "container_version_conflicts_total",
		Help:      "Container saves rejected because another writer saved first.",
	})

	StoredTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "todolist",
		Name:      "stored_tasks",
		Help:      "Number of tasks in the container after the last successful save.",
	})
)

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, path string, status int, latency time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(latency.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
