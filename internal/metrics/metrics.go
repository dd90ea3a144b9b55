package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recruitai",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recruitai",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	// ActiveSessions tracks sessions with a live state machine.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recruitai",
		Name:      "interview_active_sessions",
		Help:      "Number of interview sessions with a running engine",
	})

	// SegmentsAppended counts transcript segments by speaker.
	SegmentsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recruitai",
		Name:      "interview_segments_total",
		Help:      "Transcript segments appended, by speaker",
	}, []string{"speaker"})

	// DroppedSignals counts non-critical messages shed under back-pressure.
	DroppedSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recruitai",
		Name:      "interview_dropped_signals_total",
		Help:      "Non-critical channel messages dropped under back-pressure",
	}, []string{"kind"})

	// LateChunks counts audio chunks discarded outside the reorder window.
	LateChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recruitai",
		Name:      "interview_late_audio_chunks_total",
		Help:      "Audio chunks dropped for arriving outside the reorder window",
	})

	// SessionsEnded counts terminal transitions by outcome.
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recruitai",
		Name:      "interview_sessions_ended_total",
		Help:      "Sessions reaching a terminal state, by outcome",
	}, []string{"state"})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
