package http

import (
	"net/http"
	"time"

	"github.com/bnema/scenefetch/internal/adapter/http/middleware"
	"github.com/bnema/scenefetch/internal/adapter/http/ratelimit"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/service"
)

// Deps groups the collaborators the API is built from.
type Deps struct {
	Auth        AuthService
	Queue       JobQueue
	Events      SessionSubscriber
	Prober      Prober
	Maintenance Maintenance
	History     HistoryReader
	Disk        DiskReporter
	TempRoot    string
	Version     string
	BehindProxy bool
}

type Server struct {
	mux            *http.ServeMux
	handler        http.Handler
	handlers       *Handlers
	sseHandler     *SSEHandler
	authSvc        AuthService
	rateLimiter    *ratelimit.LoginRateLimiter
	backoffTracker *ratelimit.LoginAttemptTracker
	backoff        *service.Backoff
	behindProxy    bool
}

func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()

	rateLimiter := ratelimit.NewLoginRateLimiter(
		5,
		15*time.Minute,
		30*time.Minute,
	)

	backoff := service.NewBackoff(
		500*time.Millisecond,
		10*time.Second,
		2.0,
	)
	backoff.Jitter = true

	s := &Server{
		mux:            mux,
		handlers:       NewHandlers(deps.Queue, deps.Prober, deps.Maintenance, deps.History, deps.Disk, deps.TempRoot, deps.Version),
		sseHandler:     NewSSEHandler(deps.Events, deps.Queue),
		authSvc:        deps.Auth,
		rateLimiter:    rateLimiter,
		backoffTracker: ratelimit.NewLoginAttemptTracker(),
		backoff:        backoff,
		behindProxy:    deps.BehindProxy,
	}

	s.registerRoutes()
	s.handler = middleware.SecurityHeaders(middleware.RequestLogger(logger.Named("http"), mux))

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handlers.Health())
	s.mux.HandleFunc("POST /auth/token", TokenHandler(s.authSvc, s.rateLimiter, s.backoffTracker, s.backoff, s.behindProxy))

	s.mux.HandleFunc("POST /api/jobs", AuthMiddleware(s.authSvc, s.handlers.CreateJob()))
	s.mux.HandleFunc("GET /api/jobs", AuthMiddleware(s.authSvc, s.handlers.ListJobs()))
	s.mux.HandleFunc("GET /api/jobs/{id}", AuthMiddleware(s.authSvc, s.handlers.GetJob()))
	s.mux.HandleFunc("DELETE /api/jobs/{id}", AuthMiddleware(s.authSvc, s.handlers.CancelJob()))
	s.mux.HandleFunc("GET /api/jobs/{id}/events", AuthMiddleware(s.authSvc, s.sseHandler.Events()))

	s.mux.HandleFunc("GET /api/stats", AuthMiddleware(s.authSvc, s.handlers.Stats()))
	s.mux.HandleFunc("GET /api/history", AuthMiddleware(s.authSvc, s.handlers.History()))
	s.mux.HandleFunc("POST /api/probe", AuthMiddleware(s.authSvc, s.handlers.Probe()))

	s.mux.HandleFunc("POST /api/maintenance/sweep", AuthMiddleware(s.authSvc, s.handlers.Sweep()))
	s.mux.HandleFunc("POST /api/maintenance/purge", AuthMiddleware(s.authSvc, s.handlers.Purge()))
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.rateLimiter.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
