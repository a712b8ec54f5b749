// Package http serves the analysis API, the dashboard, and the operational
// endpoints.
package http

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/burn-severity-service/internal/domain"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
)

//go:embed static
var staticFiles embed.FS

// Analyzer runs one burn-severity analysis.
type Analyzer interface {
	Run(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error)
}

// Server exposes the API, the dashboard, and health, readiness and metrics
// routes.
type Server struct {
	httpServer      *http.Server
	analyzer        Analyzer
	metrics         *observability.Metrics
	logger          *slog.Logger
	analysisTimeout time.Duration
}

// NewServer wires every route. analysisTimeout bounds a single analysis; the
// write timeout is extended to cover it.
func NewServer(addr string, analyzer Analyzer, ready sharedobs.ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger, analysisTimeout time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: analysisTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer:        analyzer,
		metrics:         metrics,
		logger:          logger,
		analysisTimeout: analysisTimeout,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/palettes", s.handlePalettes)
	mux.HandleFunc("GET /api/v1/classes", s.handleClasses)
	mux.HandleFunc("POST /api/v1/aoi", s.handleAOI)
	mux.HandleFunc("POST /api/v1/analyses", s.handleAnalysis)

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Readiness combines several checkers; the first failure wins.
type Readiness []sharedobs.ReadinessChecker

func (rs Readiness) CheckReadiness(ctx context.Context) error {
	for _, r := range rs {
		if err := r.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
