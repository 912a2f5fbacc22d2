package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realmkeeper_events_published_total",
		Help: "Domain events published on the realtime bus.",
	}, []string{"type"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realmkeeper_event_subscribers",
		Help: "Currently connected realtime subscribers.",
	})

	EventSubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmkeeper_event_subscribers_dropped_total",
		Help: "Subscribers removed because their channel was full.",
	})

	ImagesCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmkeeper_orphan_images_cleaned_total",
		Help: "Orphan images removed from object storage.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realmkeeper_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
