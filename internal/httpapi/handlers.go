package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/stream"
)

const serviceName = "bankmesh"

// Pinger is a dependency readiness can be checked against.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe — проверка готовности (ping хранилища снапшотов, если задано).
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Archive pages through transfers persisted outside the engine.
type Archive interface {
	ListArchived(ctx context.Context, limit int, after uint64) ([]stream.TransferEvent, uint64, error)
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	engine  *engine.Engine
	users   *auth.Directory
	tokens  *auth.Issuer
	stream  *stream.Stream
	archive Archive

	origins    []string
	rateBurst  int
	ratePerSec float64
}

type Option func(*API)

func WithStream(s *stream.Stream) Option { return func(a *API) { a.stream = s } }

func WithArchive(ar Archive) Option { return func(a *API) { a.archive = ar } }

func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.ratePerSec = perSecond
			a.rateBurst = burst
		}
	}
}

// WithAllowedOrigins sets the CORS allow list. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

func New(rp ReadyProbe, version string, eng *engine.Engine, users *auth.Directory, tokens *auth.Issuer, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		engine:     eng,
		users:      users,
		tokens:     tokens,
		rateBurst:  100,
		ratePerSec: 50,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/login", a.login)
	a.mux.HandleFunc("POST /v1/auth/register", a.register)
	a.mux.HandleFunc("GET /v1/auth/registrations", a.listRegistrations)
	a.mux.HandleFunc("POST /v1/auth/registrations/{login}/accept", a.acceptRegistration)

	a.mux.HandleFunc("GET /v1/banks", a.listBanks)
	a.mux.HandleFunc("POST /v1/banks/{bik}/accounts", a.openAccount)
	a.mux.HandleFunc("GET /v1/banks/{bik}/accounts", a.listAccounts)
	a.mux.HandleFunc("DELETE /v1/banks/{bik}/accounts/{id}", a.closeAccount)
	a.mux.HandleFunc("PUT /v1/banks/{bik}/accounts/{id}/status", a.setAccountStatus)
	a.mux.HandleFunc("POST /v1/banks/{bik}/transfers", a.transfer)
	a.mux.HandleFunc("POST /v1/transfers/unprotected", a.transferUnprotected)
	a.mux.HandleFunc("POST /v1/transactions/revert", a.revertLast)
	a.mux.HandleFunc("GET /v1/transactions", a.listTransactions)
	a.mux.HandleFunc("GET /v1/transactions/archive", a.listArchived)
	a.mux.HandleFunc("GET /v1/transactions/stream", a.Stream)

	a.mux.HandleFunc("POST /v1/banks/{bik}/deposits", a.openDeposit)
	a.mux.HandleFunc("GET /v1/banks/{bik}/deposits", a.listDeposits)
	a.mux.HandleFunc("POST /v1/banks/{bik}/deposits/{idx}/withdraw", a.withdrawDeposit)
	a.mux.HandleFunc("POST /v1/banks/{bik}/credits", a.requestCredit)
	a.mux.HandleFunc("GET /v1/banks/{bik}/credits", a.listCredits)
	a.mux.HandleFunc("GET /v1/banks/{bik}/credits/pending", a.listPendingCredits)
	a.mux.HandleFunc("POST /v1/banks/{bik}/credits/pending/{idx}/accept", a.acceptCredit)

	a.mux.HandleFunc("POST /v1/salary/requests", a.requestSalary)
	a.mux.HandleFunc("GET /v1/salary/requests", a.listSalaryRequests)
	a.mux.HandleFunc("POST /v1/salary/requests/{idx}/decision", a.decideSalaryRequest)
	a.mux.HandleFunc("POST /v1/salary/project", a.initSalaryProject)
	a.mux.HandleFunc("GET /v1/salary/project", a.getSalaryProject)
	a.mux.HandleFunc("POST /v1/salary/projects/{enterprise}/accept", a.acceptSalaryProject)
	a.mux.HandleFunc("POST /v1/salary/payout", a.paySalaries)

	a.mux.HandleFunc("GET /v1/clock", a.getClock)
	a.mux.HandleFunc("POST /v1/admin/clock", a.advanceClock)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.origins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"clock":   a.engine.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
