package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/auth"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/health"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/preview"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/projects"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/sharetokens"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/oauth"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/ratelimit"
	"github.com/wrale/sitepub/internal/sharetoken"
)

// dependencies are the services the routes are built on
type dependencies struct {
	projects      *project.Service
	tokens        *sharetoken.Service
	authenticator oauth.Authenticator
	limiter       ratelimit.Limiter
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

type server struct {
	cfg    Config
	router *chi.Mux
	deps   dependencies
}

func newServer(cfg Config, deps dependencies) *server {
	srv := &server{
		cfg:    cfg,
		router: chi.NewRouter(),
		deps:   deps,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(srv.requestLogger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(cfg.RequestTimeout))

	srv.routes()
	return srv
}

func (s *server) routes() {
	d := s.deps

	s.router.Method(http.MethodGet, "/health", health.New(map[string]health.Checker{
		"share_tokens":  d.tokens,
		"projects":      d.projects,
		"authenticator": d.authenticator,
	}).WithVersion(Version))
	s.router.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	s.router.Method(http.MethodGet, "/preview/{project}",
		preview.New(d.projects, d.tokens, d.limiter, d.metrics, d.logger))

	authn := auth.New(d.authenticator, d.logger)
	shareTokens := sharetokens.New(d.projects, d.tokens, d.metrics, d.logger)
	s.router.Route("/api/projects/{project}", func(r chi.Router) {
		r.Use(authn.Handler)
		r.Method(http.MethodPut, "/", projects.New(d.projects, d.metrics, d.logger))
		r.Route("/share-tokens", shareTokens.Routes)
	})
}

// requestLogger logs each request and records its metrics under the matched route pattern
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "not_found"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		s.deps.metrics.RecordRequest(r.Method, route, strconv.Itoa(status), duration)

		s.deps.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", duration),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}
