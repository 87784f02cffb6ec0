package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Метрики движка
var (
	transactionsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankmesh_transactions_posted_total",
			Help: "Journal entries posted, by kind.",
		},
		[]string{"kind"},
	)

	accrualPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bankmesh_accrual_passes_total",
		Help: "Completed accrual passes.",
	})

	accrualDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bankmesh_accrual_duration_seconds",
		Help:    "Accrual pass latency in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	depositAccruals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bankmesh_deposit_accruals_total",
		Help: "Deposits whose interest was compounded.",
	})

	creditPayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankmesh_credit_payments_total",
			Help: "Credit installment batches, by result.",
		},
		[]string{"result"},
	)

	creditOverdrawn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bankmesh_credit_overdrawn_total",
		Help: "Credit payments that left the paying account negative.",
	})

	snapshotSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankmesh_snapshot_saves_total",
			Help: "Snapshot persistence attempts, by result.",
		},
		[]string{"result"},
	)

	eventsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankmesh_events_forwarded_total",
			Help: "Transfer events forwarded to the broker, by result.",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

// Init registers all collectors in the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			transactionsPosted, accrualPasses, accrualDuration, depositAccruals,
			creditPayments, creditOverdrawn, snapshotSaves, eventsForwarded,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers so metric labels stay bounded:
// numeric segments become ":id", names after "projects" or
// "registrations" become ":name".
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	parts := strings.Split(strings.TrimPrefix(raw, "/"), "/")
	for i, p := range parts {
		switch {
		case p == "":
		case isDigits(p):
			parts[i] = ":id"
		case i > 0 && (parts[i-1] == "projects" || parts[i-1] == "registrations"):
			parts[i] = ":name"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func TransactionPosted(kind string) { transactionsPosted.WithLabelValues(kind).Inc() }

// ObserveAccrual records one accrual pass.
func ObserveAccrual(d time.Duration, deposits, payments, failures int) {
	accrualPasses.Inc()
	accrualDuration.Observe(d.Seconds())
	depositAccruals.Add(float64(deposits))
	creditPayments.WithLabelValues("ok").Add(float64(payments))
	creditPayments.WithLabelValues("failed").Add(float64(failures))
}

func CreditOverdrawn() { creditOverdrawn.Inc() }

func SnapshotSaved(err error) { snapshotSaves.WithLabelValues(result(err)).Inc() }

func EventForwarded(err error) { eventsForwarded.WithLabelValues(result(err)).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE handlers working behind the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
