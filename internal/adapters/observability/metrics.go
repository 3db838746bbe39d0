package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "pricesheet"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	Offers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offers_total", Help: "Offers by reconciliation outcome."},
		[]string{"outcome"}, // written|flagged|unchanged|skipped|duplicate
	)
	BlocksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "blocks_created_total", Help: "Hotel blocks created."},
	)
	SaveAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "save_attempts_total", Help: "Workbook save attempts."},
		[]string{"result"}, // ok|retry|exhausted
	)
	MatchScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "match_score",
			Help:    "Best hotel name similarity seen per resolution.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "runs_total", Help: "Reconciliation sessions."},
		[]string{"destination", "success"},
	)
)

// Serve exposes /metrics on its own listener; an empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Offers, BlocksCreated, SaveAttempts, MatchScores, Runs)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveOffer(outcome string) { Offers.WithLabelValues(outcome).Inc() }

func ObserveBlockCreated() { BlocksCreated.Inc() }

func ObserveSave(result string) { SaveAttempts.WithLabelValues(result).Inc() }

func ObserveMatchScore(score float64) { MatchScores.Observe(score) }

func ObserveRun(destination string, success bool) {
	Runs.WithLabelValues(destination, strconv.FormatBool(success)).Inc()
}
