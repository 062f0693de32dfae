package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"teamspend/internal/auth"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/middleware/ratelimit"
	"teamspend/internal/middleware/security"
	"teamspend/internal/middleware/trace"
	"teamspend/internal/services"
)

// Options carries the optional collaborators of the server. The zero value
// serves the API without login, with default rate limits and open CORS.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Registry

	// Login is enabled when both are set and the authenticator is enabled.
	Authenticator *auth.PasswordAuthenticator
	Tokens        *auth.JWTManager
	// RequireAuth rejects /api requests without a valid session, except
	// login and logout.
	RequireAuth bool

	RateLimit ratelimit.Config
	CORS      security.CORSConfig
}

type Server struct {
	http.Server
	svc      *services.BudgetService
	logger   *log.Logger
	metrics  *metrics.Registry
	limiter  *ratelimit.Limiter
	detector *security.Detector
	cors     security.CORSConfig

	authn       *auth.PasswordAuthenticator
	tokens      *auth.JWTManager
	requireAuth bool

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.BudgetService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if len(opts.CORS.AllowedOrigins) == 0 {
		opts.CORS = security.DefaultCORSConfig()
	}

	s := &Server{
		svc:         svc,
		logger:      logger.WithComponent(log.ComponentHTTP),
		metrics:     opts.Metrics,
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		cors:        opts.CORS,
		authn:       opts.Authenticator,
		tokens:      opts.Tokens,
		requireAuth: opts.RequireAuth,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	s.api(mux, "POST /api/workspaces", s.handleCreateWorkspace)
	s.api(mux, "GET /api/workspaces", s.handleListWorkspaces)
	s.api(mux, "GET /api/workspaces/summary", s.handleWorkspaceSummary)
	s.api(mux, "GET /api/workspaces/{id}/members", s.handleListWorkspaceMembers)
	s.api(mux, "DELETE /api/workspaces/{workspaceId}/members/{memberId}", s.handleDeleteMember)

	s.api(mux, "POST /api/members", s.handleCreateMember)
	s.api(mux, "PUT /api/members/{memberId}/total-expense", s.handleSetMemberTotal)
	s.api(mux, "POST /api/members/{memberId}/expenses", s.handleCreateExpense)
	s.api(mux, "GET /api/members/{memberId}/expenses", s.handleListMemberExpenses)

	s.api(mux, "DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgRouteNotFound)
	})
}

// api registers an /api route behind the session middleware.
func (s *Server) api(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.tokens == nil {
		mux.Handle(pattern, h)
		return
	}
	mux.Handle(pattern, auth.Middleware(s.tokens, s.requireAuth)(h))
}

// middleware wraps the mux, outermost first: tracing, security headers, CORS,
// probe detection, rate limiting.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.CORS(s.cors)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger, s.metrics).Middleware(h)
	return h
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRateLimited()
	log.FromContext(r.Context()).LogFields(r.Context(), slog.LevelWarn, "Rate limit exceeded",
		log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).WithHTTPRequest(r.Method, r.URL.Path, "", ""))
	writeError(w, http.StatusTooManyRequests, msgRateLimited)
}

// Shutdown gracefully shuts down the server and stops the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, msgAPIRunning)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, msgServiceHealthy)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).LogFields(ctx, slog.LevelWarn, "Readiness check failed", log.NewFields().WithError(err))
		writeText(w, http.StatusServiceUnavailable, msgServiceNotReady)
		return
	}
	writeText(w, http.StatusOK, msgServiceReady)
}
