package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)
	AIPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt tokens per chat completion",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"tier"},
	)

	SessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Interviews started, by whether documents were provided",
		},
		[]string{"grounded"},
	)
	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_answers_total",
			Help: "Candidate answers recorded, by stage at answer time",
		},
		[]string{"stage"},
	)
	CharacterBreaksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_character_breaks_total",
			Help: "Interviewer replies flagged as out of persona",
		},
	)
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_reports_total",
			Help: "Reports generated, by source tag",
		},
		[]string{"source"},
	)
	ReportScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_report_score",
			Help:    "Distribution of extracted scores ([1,10])",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		[]string{"category"},
	)
	PodcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_podcasts_total",
			Help: "Podcast generations by outcome",
		},
		[]string{"outcome"},
	)
	SpeechFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speech_fallbacks_total",
			Help: "Speech operations that degraded to a fallback",
		},
		[]string{"operation"},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AIPromptTokens,
			SessionsStartedTotal,
			AnswersTotal,
			CharacterBreaksTotal,
			ReportsTotal,
			ReportScoreHistogram,
			PodcastsTotal,
			SpeechFallbacksTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveReport records the source tag and in-range scores of a report.
func ObserveReport(source string, scores map[string]int) {
	ReportsTotal.WithLabelValues(source).Inc()
	for category, v := range scores {
		if v >= 1 && v <= 10 {
			ReportScoreHistogram.WithLabelValues(category).Observe(float64(v))
		}
	}
}

// ObserveSessionStarted counts a new interview.
func ObserveSessionStarted(grounded bool) {
	label := "false"
	if grounded {
		label = "true"
	}
	SessionsStartedTotal.WithLabelValues(label).Inc()
}
