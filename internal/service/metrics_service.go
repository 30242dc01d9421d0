package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ujmp/editorial-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	webhookTotal    *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// NewMetricsService registers the core collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "article_transitions_total",
		Help: "Article status transitions by source and target status",
	}, []string{"from", "to"})

	webhookTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment webhook deliveries by provider and outcome",
	}, []string{"provider", "outcome"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worker_queue_depth",
		Help: "Buffered jobs per worker queue",
	}, []string{"queue"})

	registry.MustRegister(requestDuration, requestTotal, transitionTotal, webhookTotal, queueDepth)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitionTotal: transitionTotal,
		webhookTotal:    webhookTotal,
		queueDepth:      queueDepth,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordRequest observes one finished HTTP request.
func (s *MetricsService) RecordRequest(method, path, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTransition counts one article status change.
func (s *MetricsService) RecordTransition(from, to models.ArticleStatus) {
	s.transitionTotal.WithLabelValues(string(from), string(to)).Inc()
}

// RecordWebhook counts one webhook delivery outcome.
func (s *MetricsService) RecordWebhook(provider models.PaymentProvider, outcome string) {
	s.webhookTotal.WithLabelValues(string(provider), outcome).Inc()
}

// SetQueueDepth reports the buffered job count for a queue.
func (s *MetricsService) SetQueueDepth(queue string, depth int) {
	s.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
