// ABOUTME: Prometheus metrics for sync cycles, feed outcomes and provider quotas
// ABOUTME: SyncMetrics satisfies the orchestrator's SyncObserver

package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"greader-sync/models"
)

const metricsNamespace = "greader_sync"

// SyncMetrics holds every collector of the sync engine
type SyncMetrics struct {
	prefetchTotal    *prometheus.CounterVec
	prefetchMessages *prometheus.CounterVec
	feedTotal        *prometheus.CounterVec
	feedMessages     *prometheus.CounterVec
	cycleTotal       *prometheus.CounterVec
	cycleDuration    *prometheus.HistogramVec
	apiUsage         *prometheus.GaugeVec
	breakerState     *prometheus.GaugeVec
	adminRequests    *prometheus.CounterVec
}

// NewSyncMetrics registers the collectors on reg; nil uses the default registerer
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &SyncMetrics{
		prefetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "prefetch_total",
			Help:      "Account-level prefetches by provider, mode and resulting status",
		}, []string{"provider", "mode", "status"}),
		prefetchMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "prefetch_messages_total",
			Help:      "Messages downloaded by account-level prefetches",
		}, []string{"provider", "mode"}),
		feedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feed_fetch_total",
			Help:      "Per-feed fetches by provider and resulting status",
		}, []string{"provider", "status"}),
		feedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feed_messages_total",
			Help:      "Messages returned for feeds",
		}, []string{"provider"}),
		cycleTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Completed account sync cycles by status",
		}, []string{"account", "status"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of account sync cycles in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"account"}),
		apiUsage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "api_quota_requests",
			Help:      "Provider request quota as reported by response headers",
		}, []string{"account", "zone", "kind"}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per account (0 closed, 1 open, 2 half-open)",
		}, []string{"account"}),
		adminRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "admin_api_requests_total",
			Help:      "Admin API requests by method, route and status code",
		}, []string{"method", "route", "code"}),
	}
}

func fetchMode(global bool) string {
	if global {
		return "global"
	}
	return "per_feed"
}

// PrefetchCompleted records the outcome of an account-level prefetch
func (m *SyncMetrics) PrefetchCompleted(provider string, global bool, messages int, status models.FeedStatus) {
	mode := fetchMode(global)
	m.prefetchTotal.WithLabelValues(provider, mode, status.String()).Inc()
	m.prefetchMessages.WithLabelValues(provider, mode).Add(float64(messages))
}

// FeedCompleted records the outcome of one feed fetch
func (m *SyncMetrics) FeedCompleted(provider string, messages int, status models.FeedStatus) {
	m.feedTotal.WithLabelValues(provider, status.String()).Inc()
	m.feedMessages.WithLabelValues(provider).Add(float64(messages))
}

// CycleCompleted records a finished account cycle
func (m *SyncMetrics) CycleCompleted(account, status string, duration time.Duration) {
	m.cycleTotal.WithLabelValues(account, status).Inc()
	m.cycleDuration.WithLabelValues(account).Observe(duration.Seconds())
}

// APIUsage publishes the latest quota snapshot of an account
func (m *SyncMetrics) APIUsage(account string, usage models.APIUsage) {
	m.apiUsage.WithLabelValues(account, "1", "usage").Set(float64(usage.Zone1Usage))
	m.apiUsage.WithLabelValues(account, "1", "limit").Set(float64(usage.Zone1Limit))
	m.apiUsage.WithLabelValues(account, "2", "usage").Set(float64(usage.Zone2Usage))
	m.apiUsage.WithLabelValues(account, "2", "limit").Set(float64(usage.Zone2Limit))
}

// BreakerState publishes the circuit breaker state of an account
func (m *SyncMetrics) BreakerState(account string, state CircuitBreakerState) {
	m.breakerState.WithLabelValues(account).Set(float64(state))
}

// AdminRequest counts one admin API request
func (m *SyncMetrics) AdminRequest(method, route string, code int) {
	m.adminRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
