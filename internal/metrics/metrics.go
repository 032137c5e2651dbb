package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsOnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Number of users with a bound connection.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ws_events_total",
			Help: "Total number of inbound websocket events by outcome.",
		},
		[]string{"event", "outcome"},
	)
	wsEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_ws_event_duration_seconds",
			Help:    "Time spent handling one inbound event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Outbound frames by delivery outcome.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsOnlineUsers,
		wsEventsTotal,
		wsEventDuration,
		deliveriesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func SetOnlineUsers(n int) {
	wsOnlineUsers.Set(float64(n))
}

func ObserveEvent(event, outcome string, took time.Duration) {
	wsEventsTotal.WithLabelValues(event, outcome).Inc()
	wsEventDuration.WithLabelValues(event).Observe(took.Seconds())
}

func AddDeliveries(delivered, dropped, failed int) {
	if delivered > 0 {
		deliveriesTotal.WithLabelValues("delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		deliveriesTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
	if failed > 0 {
		deliveriesTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
