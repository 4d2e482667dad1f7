// Package api serves the query adapters over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/moolen/kubetrace/internal/api/response"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Sources are the analysis results the server answers from. Nil sources
// leave their routes unregistered.
type Sources struct {
	TimeGraph *dataprovider.TimeGraph
	CgroupCPU *dataprovider.CgroupCPU
	Segments  segmentstore.Store
	Gatherer  prometheus.Gatherer
}

// Server handles HTTP API requests
type Server struct {
	port     int
	server   *http.Server
	router   *http.ServeMux
	listener net.Listener
	logger   *logging.Logger
	tracer   trace.Tracer
	sources  Sources
}

// New creates an API server listening on port. Port 0 picks a free port.
func New(port int, sources Sources) *Server {
	s := &Server{
		port:    port,
		router:  http.NewServeMux(),
		logger:  logging.GetLogger("api"),
		tracer:  otel.Tracer("kubetrace.api"),
		sources: sources,
	}
	s.registerHandlers()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/health", s.withMethod(http.MethodGet, s.handleHealth))
	if s.sources.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.sources.Gatherer, promhttp.HandlerOpts{}))
	}

	if tg := s.sources.TimeGraph; tg != nil {
		h := &timeGraphHandler{provider: tg, logger: s.logger, tracer: s.tracer}
		s.router.HandleFunc("/v1/timegraph/tree", s.withMethod(http.MethodGet, h.tree))
		s.router.HandleFunc("/v1/timegraph/rows", s.withMethod(http.MethodGet, h.rows))
		s.router.HandleFunc("/v1/timegraph/arrows", s.withMethod(http.MethodGet, h.arrows))
		s.router.HandleFunc("/v1/timegraph/styles", s.withMethod(http.MethodGet, h.styles))
	}

	if store := s.sources.Segments; store != nil {
		h := &startupsHandler{store: store, logger: s.logger, tracer: s.tracer}
		s.router.HandleFunc("/v1/startups", s.withMethod(http.MethodGet, h.list))
		s.router.HandleFunc("/v1/startups/stats", s.withMethod(http.MethodGet, h.stats))
	}

	if cpu := s.sources.CgroupCPU; cpu != nil {
		h := &cgroupsHandler{provider: cpu, logger: s.logger, tracer: s.tracer}
		s.router.HandleFunc("/v1/cgroups/tree", s.withMethod(http.MethodGet, h.tree))
		s.router.HandleFunc("/v1/cgroups/xy", s.withMethod(http.MethodGet, h.xy))
	}
}

// Handler returns the root handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// withMethod wraps a handler to enforce HTTP method
func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			response.WriteError(w, http.StatusMethodNotAllowed, string(ErrorCodeMethodNotAllowed),
				fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
			return
		}
		handler(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = response.WriteSuccess(w, r, map[string]string{"status": "healthy"})
}

// Start implements lifecycle.Component. It returns once the port is bound.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = lis

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()
	s.logger.Info("API server listening on %s", lis.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop implements lifecycle.Component
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// Name implements lifecycle.Component
func (s *Server) Name() string {
	return "api"
}
