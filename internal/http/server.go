package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"taxledger/internal/importer"
	"taxledger/internal/log"
	"taxledger/internal/middleware/ratelimit"
	"taxledger/internal/middleware/security"
	"taxledger/internal/middleware/trace"
	"taxledger/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the use cases the API exposes. Importer may be nil, in
// which case imports are only acknowledged.
type Services struct {
	Users        *services.UserService
	Currencies   *services.CurrencyService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Dashboard    *services.DashboardService
	Importer     *importer.Service
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	// ReadTimeout bounds the store calls made by read endpoints.
	ReadTimeout time.Duration
}

type Server struct {
	http.Server

	svc      Services
	store    Pinger
	logger   *log.Logger
	started  time.Time
	readTime time.Duration

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc Services, store Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 7 * time.Second
	}

	s := &Server{
		svc:      svc,
		store:    store,
		logger:   logger.WithComponent(log.ComponentHTTP),
		started:  time.Now(),
		readTime: cfg.ReadTimeout,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
		tracer:   trace.NewMiddleware(),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// imports run inside the request
		WriteTimeout: 11 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)

	mux.HandleFunc("GET /api/currencies", s.handleListCurrencies)
	mux.HandleFunc("GET /api/currencies/{code}", s.handleGetCurrency)
	mux.HandleFunc("POST /api/currencies/update-rates", s.handleUpdateRates)

	mux.HandleFunc("GET /api/users/{userId}/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	mux.HandleFunc("GET /api/users/{userId}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)

	mux.HandleFunc("GET /api/users/{userId}/tax-reports", s.handleListReports)
	mux.HandleFunc("GET /api/tax-reports/{id}", s.handleGetReport)
	mux.HandleFunc("POST /api/tax-reports", s.handleDraftReport)
	mux.HandleFunc("PUT /api/tax-reports/{id}/submit", s.handleSubmitReport)

	mux.HandleFunc("GET /api/users/{userId}/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/users/{userId}/tax-deadline", s.handleDeadline)

	mux.HandleFunc("POST /api/import/excel", s.handleImport)
	mux.HandleFunc("POST /api/hmrc/test-credentials", s.handleTestCredentials)
}

// middleware wraps the mux. Outermost first: request id, request logger,
// access log, security headers, probe detection, write rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}

	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(h)
	h = s.detector.Middleware(s.logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.AccessLog(s.detector.ExtractClientIP)(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	return h
}

// readContext bounds the store calls of a read endpoint.
func (s *Server) readContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.readTime)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"storage": "ok"}
	if s.store == nil {
		checks["storage"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.svc.Importer != nil && s.svc.Importer.Enabled() {
		checks["import"] = "enabled"
	} else {
		checks["import"] = "placeholder"
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]any{
			"requests":   s.tracer.GetMetrics(),
			"rate_limit": s.limiter.GetMetrics(),
			"security":   s.detector.GetMetrics(),
		},
	})
}
