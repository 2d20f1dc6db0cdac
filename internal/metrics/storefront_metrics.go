package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics содержит прикладные метрики магазина.
type Metrics struct {
	ordersCreated    prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	catalogMutations *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
	advisoryRequests *prometheus.CounterVec
	advisoryDuration prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	timelineEvents   prometheus.Counter
	outboxEnqueued   prometheus.Counter
	outboxPublish    *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	outboxFailed     prometheus.Gauge
	outboxOldestAge  prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default возвращает метрики, зарегистрированные в prometheus.DefaultRegisterer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New регистрирует метрики в registerer (nil: DefaultRegisterer).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Total number of rejected order creations grouped by error kind.",
		}, []string{"kind"}),
		orderTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transition attempts grouped by edge and result.",
		}, []string{"from", "to", "result"}),
		catalogMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_mutations_total",
			Help:      "Catalog mutations grouped by operation.",
		}, []string{"operation"}),
		authAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Identity operations grouped by operation and result.",
		}, []string{"operation", "result"}),
		advisoryRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_requests_total",
			Help:      "Beauty-advice requests grouped by result.",
		}, []string{"result"}),
		advisoryDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advisory_duration_seconds",
			Help:      "Latency of the completion provider call.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests grouped by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency grouped by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_events_total",
			Help:      "Total number of order history events recorded.",
		}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_enqueued_total",
			Help:      "Total number of domain events enqueued to the outbox.",
		}),
		outboxPublish: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_attempts_total",
			Help:      "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending_records",
			Help:      "Current number of pending records in transactional outbox.",
		}),
		outboxFailed: registerGauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_failed_records",
			Help:      "Current number of records that exhausted publish retries.",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_oldest_pending_age_seconds",
			Help:      "Age in seconds of the oldest pending outbox record.",
		}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *Metrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderRejected учитывает отказ в создании заказа.
func (m *Metrics) RecordOrderRejected(kind string) {
	m.ordersRejected.WithLabelValues(kind).Inc()
}

// RecordTransition учитывает попытку перехода статуса. result: ok, rejected, conflict.
func (m *Metrics) RecordTransition(from, to, result string) {
	m.orderTransitions.WithLabelValues(from, to, result).Inc()
}

// RecordCatalogMutation учитывает изменение каталога.
func (m *Metrics) RecordCatalogMutation(operation string) {
	m.catalogMutations.WithLabelValues(operation).Inc()
}

// RecordAuth учитывает операцию identity.
func (m *Metrics) RecordAuth(operation, result string) {
	m.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordAdvisory учитывает вызов completion-провайдера и его длительность.
func (m *Metrics) RecordAdvisory(result string, duration time.Duration) {
	m.advisoryRequests.WithLabelValues(result).Inc()
	m.advisoryDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest учитывает HTTP-запрос.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий истории.
func (m *Metrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEnqueued увеличивает счётчик событий, поставленных в outbox.
func (m *Metrics) RecordOutboxEnqueued() {
	m.outboxEnqueued.Inc()
}

// RecordOutboxPublish учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *Metrics) RecordOutboxPublish(result string) {
	m.outboxPublish.WithLabelValues(result).Inc()
}

// SetOutboxBacklog обновляет gauge backlog'а outbox.
func (m *Metrics) SetOutboxBacklog(pending, failed int, oldestAge time.Duration) {
	m.outboxPending.Set(float64(pending))
	m.outboxFailed.Set(float64(failed))
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxOldestAge.Set(oldestAge.Seconds())
}
