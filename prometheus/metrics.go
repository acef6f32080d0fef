package prometheus

import (
	"strconv"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook metrics
	WebhookReceivedCounter  *prometheus.CounterVec
	WebhookRejectedCounter  *prometheus.CounterVec
	WebhookDuplicateCounter *prometheus.CounterVec

	// Sync metrics
	SyncRunCounter         *prometheus.CounterVec
	CatalogItemsSynced     *prometheus.CounterVec
	OrdersImportedCounter  *prometheus.CounterVec
	SyncRecordSkipCounter  *prometheus.CounterVec

	// OAuth lifecycle metrics
	OAuthConnectCounter    *prometheus.CounterVec
	OAuthRefreshCounter    *prometheus.CounterVec
	OAuthDisconnectCounter prometheus.Counter

	// Provider HTTP metrics
	ProviderRequestHistogram *prometheus.HistogramVec
	ProviderRetryCounter     *prometheus.CounterVec

	// HTTP request metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec

	namespace string
)

// InitMetrics initializes all Prometheus metrics
func InitMetrics(cfg *config.Config) {
	namespace = cfg.Metrics.Prefix

	WebhookReceivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_received_total",
		Help:      "Total webhook deliveries received",
	}, []string{"provider", "event_type"})

	WebhookRejectedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_rejected_total",
		Help:      "Total webhook deliveries rejected",
	}, []string{"provider", "reason"})

	WebhookDuplicateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_duplicate_total",
		Help:      "Total duplicate webhook deliveries ignored",
	}, []string{"provider"})

	SyncRunCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_run_total",
		Help:      "Total catalog/order sync runs",
	}, []string{"provider", "kind", "result"})

	CatalogItemsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_items_synced_total",
		Help:      "Total catalog items reconciled",
	}, []string{"provider"})

	OrdersImportedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_imported_total",
		Help:      "Total remote orders reconciled into local rows",
	}, []string{"provider"})

	SyncRecordSkipCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_record_skipped_total",
		Help:      "Total malformed remote records skipped during sync",
	}, []string{"provider", "kind"})

	OAuthConnectCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_connect_total",
		Help:      "Total OAuth connect attempts",
	}, []string{"result"})

	OAuthRefreshCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_refresh_total",
		Help:      "Total proactive token refreshes",
	}, []string{"result"})

	OAuthDisconnectCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_disconnect_total",
		Help:      "Total POS disconnects",
	})

	ProviderRequestHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of outbound provider API calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "method", "status"})

	ProviderRetryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_retry_total",
		Help:      "Total retries caused by provider rate limiting",
	}, []string{"provider"})

	RequestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	APIRequestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "status"})
}

// MetricsMiddleware records request counts and durations for every route
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			if APIRequestCounter == nil {
				return err
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()
			APIRequestCounter.WithLabelValues(method, path, status).Inc()
			RequestDurationHistogram.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// The Record* helpers below are nil-safe so components can be exercised in
// tests without initializing the registry.

func RecordWebhookReceived(provider, eventType string) {
	if WebhookReceivedCounter != nil {
		WebhookReceivedCounter.WithLabelValues(provider, eventType).Inc()
	}
}

func RecordWebhookRejected(provider, reason string) {
	if WebhookRejectedCounter != nil {
		WebhookRejectedCounter.WithLabelValues(provider, reason).Inc()
	}
}

func RecordWebhookDuplicate(provider string) {
	if WebhookDuplicateCounter != nil {
		WebhookDuplicateCounter.WithLabelValues(provider).Inc()
	}
}

func RecordSyncRun(provider, kind, result string) {
	if SyncRunCounter != nil {
		SyncRunCounter.WithLabelValues(provider, kind, result).Inc()
	}
}

func RecordCatalogItemsSynced(provider string, n int) {
	if CatalogItemsSynced != nil && n > 0 {
		CatalogItemsSynced.WithLabelValues(provider).Add(float64(n))
	}
}

func RecordOrdersImported(provider string, n int) {
	if OrdersImportedCounter != nil && n > 0 {
		OrdersImportedCounter.WithLabelValues(provider).Add(float64(n))
	}
}

func RecordSyncRecordSkipped(provider, kind string) {
	if SyncRecordSkipCounter != nil {
		SyncRecordSkipCounter.WithLabelValues(provider, kind).Inc()
	}
}

func RecordOAuthConnect(result string) {
	if OAuthConnectCounter != nil {
		OAuthConnectCounter.WithLabelValues(result).Inc()
	}
}

func RecordOAuthRefresh(result string) {
	if OAuthRefreshCounter != nil {
		OAuthRefreshCounter.WithLabelValues(result).Inc()
	}
}

func RecordOAuthDisconnect() {
	if OAuthDisconnectCounter != nil {
		OAuthDisconnectCounter.Inc()
	}
}

func RecordProviderRequest(provider, method string, status int, d time.Duration) {
	if ProviderRequestHistogram != nil {
		ProviderRequestHistogram.WithLabelValues(provider, method, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

func RecordProviderRetry(provider string) {
	if ProviderRetryCounter != nil {
		ProviderRetryCounter.WithLabelValues(provider).Inc()
	}
}
