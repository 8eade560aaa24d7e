package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetly/internal/log"
	"budgetly/internal/middleware/metrics"
	"budgetly/internal/middleware/ratelimit"
	"budgetly/internal/middleware/security"
	"budgetly/internal/middleware/trace"
	"budgetly/internal/services"

	"github.com/go-chi/cors"
)

const rateWindow = time.Minute

// TokenParser resolves a bearer token to the user it was issued for.
type TokenParser interface {
	Parse(raw string) (int64, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the handlers call into.
type Services struct {
	Accounts  *services.AccountService
	Resets    *services.ResetService
	Expenses  *services.ExpenseService
	Budgets   *services.BudgetService
	Summaries *services.SummaryService
}

// Config wires the server. Tokens is required; nil optional fields get
// working defaults.
type Config struct {
	Addr          string
	Services      Services
	Tokens        TokenParser
	Store         Pinger
	Limiter       ratelimit.Limiter
	RateLimit     int
	AuthRateLimit int
	ClientURL     string
	Metrics       *metrics.Metrics
	ClientIP      *security.ClientIP
	Logger        *log.Logger
	Now           func() time.Time
}

// Server is the JSON API over the application services.
type Server struct {
	http.Server
	mux      *http.ServeMux
	svc      Services
	tokens   TokenParser
	store    Pinger
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	clientIP *security.ClientIP
	logger   *log.Logger
	now      func() time.Time
	started  time.Time

	rateLimit     int
	authRateLimit int

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New("budgetly")
	}
	if cfg.ClientIP == nil {
		cfg.ClientIP, _ = security.NewClientIP(security.DefaultTrustedProxies)
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:           mux,
		svc:           cfg.Services,
		tokens:        cfg.Tokens,
		store:         cfg.Store,
		limiter:       cfg.Limiter,
		metrics:       cfg.Metrics,
		clientIP:      cfg.ClientIP,
		logger:        cfg.Logger.WithComponent(log.ComponentHTTP),
		now:           cfg.Now,
		started:       cfg.Now(),
		rateLimit:     cfg.RateLimit,
		authRateLimit: cfg.AuthRateLimit,
	}
	s.routes()

	var handler http.Handler = mux
	handler = cors.Handler(corsOptions(cfg.ClientURL))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.clientIP.Extract).Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Operational endpoints are neither rate limited nor authenticated.
	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("POST /auth/signup", s.handleSignup, s.limit)
	s.handle("POST /auth/login", s.handleLogin, s.limit)
	s.handle("GET /auth/me", s.handleGetProfile, s.limit, s.requireAuth)
	s.handle("PUT /auth/me", s.handleUpdateProfile, s.limit, s.requireAuth)
	s.handle("PUT /auth/me/password", s.handleChangePassword, s.limit, s.requireAuth)

	s.handle("POST /auth/forgot-password", s.handleForgotPassword, s.limitAuth("POST /auth/forgot-password"))
	s.handle("POST /auth/verify-otp", s.handleVerifyOTP, s.limitAuth("POST /auth/verify-otp"))
	s.handle("POST /auth/reset-password", s.handleResetPassword, s.limitAuth("POST /auth/reset-password"))

	s.handle("POST /expenses", s.handleCreateExpense, s.limit, s.requireAuth)
	s.handle("GET /expenses", s.handleListExpenses, s.limit, s.requireAuth)
	s.handle("GET /expenses/{id}", s.handleGetExpense, s.limit, s.requireAuth)
	s.handle("PUT /expenses/{id}", s.handleUpdateExpense, s.limit, s.requireAuth)
	s.handle("DELETE /expenses/{id}", s.handleDeleteExpense, s.limit, s.requireAuth)

	s.handle("POST /budget", s.handleSetBudget, s.limit, s.requireAuth)
	s.handle("GET /budget/current", s.handleCurrentBudget, s.limit, s.requireAuth)
	s.handle("GET /budget/status", s.handleBudgetStatus, s.limit, s.requireAuth)

	s.handle("GET /summary/monthly", s.handleMonthlySummary, s.limit, s.requireAuth)
}

// handle registers h under pattern. Middlewares run in the order given,
// inside the per-route metrics wrapper.
func (s *Server) handle(pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	var handler http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	s.mux.Handle(pattern, s.metrics.Wrap(pattern, handler))
}

// limit applies the general per-client budget.
func (s *Server) limit(next http.Handler) http.Handler {
	return ratelimit.Middleware(s.limiter, s.rateLimit, rateWindow,
		func(r *http.Request) string { return "api:" + s.clientIP.Extract(r) },
		s.onLimit("api"),
	)(next)
}

// limitAuth applies the stricter budget of the password-reset endpoints.
func (s *Server) limitAuth(route string) func(http.Handler) http.Handler {
	return ratelimit.Middleware(s.limiter, s.authRateLimit, rateWindow,
		func(r *http.Request) string { return "auth:" + s.clientIP.Extract(r) },
		s.onLimit(route),
	)
}

func (s *Server) onLimit(route string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordRateLimitHit(route)
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.clientIP.Extract(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, msgRateLimited).Write(w)
	}
}

func corsOptions(clientURL string) cors.Options {
	origins := []string{"*"}
	if clientURL != "" {
		origins = []string{clientURL}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: clientURL != "",
		MaxAge:           300,
	}
}

// Shutdown stops the limiter and drains in-flight requests. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Close()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
