package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
)

// Options carries the collaborators the API needs. Ready backs /readyz and
// may be nil. A nil Checkout disables the checkout webhook.
type Options struct {
	Tokens             *TokenVerifier
	Checkout           *TokenVerifier
	Ledger             *services.LedgerService
	Analysis           *services.AnalysisService
	Accounts           *services.AccountService
	RateLimitPerMinute int
	Ready              func(ctx context.Context) error
	Logger             *log.Logger
}

type Server struct {
	http.Server
	tokens   *TokenVerifier
	checkout *TokenVerifier
	ledger   *services.LedgerService
	analysis *services.AnalysisService
	accounts *services.AccountService
	ready    func(ctx context.Context) error
	logger   *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		tokens:   opts.Tokens,
		checkout: opts.Checkout,
		ledger:   opts.Ledger,
		analysis: opts.Analysis,
		accounts: opts.Accounts,
		ready:    opts.Ready,
		logger:   logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/register", s.requireAuth(s.handleRegister))
	mux.HandleFunc("GET /api/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("POST /api/checkout/confirm", s.requireCheckoutAuth(s.handleCheckoutConfirm))
	mux.HandleFunc("POST /api/admin/roles", s.requireAuth(s.handleAdminGrant))
	mux.HandleFunc("GET /api/admin/users", s.requireAuth(s.handleListUsers))

	mux.HandleFunc("POST /api/transactions", s.requireAuth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.requireAuth(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/groups/{id}", s.requireAuth(s.handleGetGroup))
	mux.HandleFunc("POST /api/credit-cards", s.requireAuth(s.handleCreateCreditCard))
	mux.HandleFunc("GET /api/credit-cards", s.requireAuth(s.handleListCreditCards))
	mux.HandleFunc("POST /api/investments", s.requireAuth(s.handleCreateInvestment))
	mux.HandleFunc("GET /api/investments", s.requireAuth(s.handleListInvestments))

	mux.HandleFunc("GET /api/dashboard", s.requireAuth(s.handleDashboard))
	mux.HandleFunc("POST /api/analysis", s.requireAuth(s.handleAnalysis))

	// outermost first
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited)(h)
	h = log.Middleware(logger, trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error: "rate limit exceeded, try again later",
		Kind:  "rate_limited",
	})
}

// Shutdown stops background routines and the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		m := s.tracer.GetMetrics()
		s.logger.Info("HTTP server stopping",
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limited", s.limiter.GetMetrics().Rejected,
			"suspicious", s.detector.SuspiciousCount())
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
