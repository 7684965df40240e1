// Package api serves the solar estimator over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/lead"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/pipeline"
	"github.com/sells-group/solar-cli/internal/resilience"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Estimator runs the solar pipeline. *pipeline.Pipeline satisfies it.
type Estimator interface {
	BestSurface(ctx context.Context, address string) (*pipeline.SurfaceResult, error)
	Report(ctx context.Context, address string, monthlyBill float64) (*pipeline.ReportResult, error)
	RankInstallers(ctx context.Context, address string) ([]model.RankedInstaller, error)
}

// LeadCreator captures leads. *lead.Service satisfies it.
type LeadCreator interface {
	Create(ctx context.Context, in lead.Input) (*lead.Result, error)
}

// Server exposes the estimator, installer ranking and lead capture routes.
type Server struct {
	httpServer *http.Server
	estimator  Estimator
	leads      LeadCreator
	cache      *cache.LookupCache
	breakers   *resilience.Breakers
	metrics    http.Handler
	origins    []string
}

// Option configures a Server.
type Option func(*Server)

// WithLeads enables POST /create_lead.
func WithLeads(l LeadCreator) Option {
	return func(s *Server) {
		s.leads = l
	}
}

// WithCache reports lookup cache statistics on /health.
func WithCache(c *cache.LookupCache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithBreakers reports circuit breaker states on /health.
func WithBreakers(b *resilience.Breakers) Option {
	return func(s *Server) {
		s.breakers = b
	}
}

// WithMetricsHandler replaces the default promhttp handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to "*".
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, estimator Estimator, opts ...Option) *Server {
	s := &Server{
		estimator: estimator,
		metrics:   promhttp.Handler(),
		origins:   []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Post("/solar_panel_calculations", s.handleSurface)
	r.Post("/process_solar_data", s.handleReport)
	r.Post("/find_best_solar_installers", s.handleInstallers)
	r.Post("/create_lead", s.handleCreateLead)

	return r
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	zap.L().Info("api: starting server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
