package observability

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	apiKeyChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_checks_total",
			Help: "API key validation results by outcome (valid, invalid, empty, error, stale).",
		},
		[]string{"outcome"},
	)

	apiKeyCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_cache_total",
			Help: "API key cache lookups by tier and result.",
		},
		[]string{"tier", "result"},
	)

	storeActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_actions_total",
			Help: "State store actions applied.",
		},
		[]string{"action"},
	)

	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_events_dropped_total",
		Help: "Change events dropped because the publish queue was full.",
	})

	eventPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_event_publish_errors_total",
		Help: "Change events the Kafka producer failed to deliver.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapstate_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

var initMu sync.Mutex

// Init registers the collectors on reg. A nil reg uses the default registerer.
// Registering twice on the same registry is not an error.
func Init(reg prometheus.Registerer) error {
	initMu.Lock()
	defer initMu.Unlock()
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		apiKeyChecks, apiKeyCache, storeActions, eventsDropped, eventPublishErrors, buildInfo,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncKeyCheck(outcome string) {
	apiKeyChecks.WithLabelValues(outcome).Inc()
}

func IncKeyCache(tier, result string) {
	apiKeyCache.WithLabelValues(tier, result).Inc()
}

func IncStoreAction(action string) {
	storeActions.WithLabelValues(action).Inc()
}

func IncEventDropped() { eventsDropped.Inc() }

func IncEventPublishError() { eventPublishErrors.Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
