package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vango-dev/derive/internal/scenario"
	"github.com/vango-dev/derive/pkg/reactive"
)

// Server serves one scenario graph.
type Server struct {
	// mu serializes every access to graph and watches.
	mu      sync.Mutex
	graph   *scenario.Graph
	watches map[string]*reactive.Effect

	hub     *Hub
	stats   *statsCollector
	router  chi.Router
	handler http.Handler

	// Configuration
	config *ServerConfig

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server over graph and starts watching every node that is
// not an effect.
func New(graph *scenario.Graph, config *ServerConfig) (*Server, error) {
	config = config.withDefaults()
	stats := &statsCollector{}

	s := &Server{
		graph:   graph,
		watches: make(map[string]*reactive.Effect),
		hub:     newHub(config, stats),
		stats:   stats,
		config:  config,
		logger:  config.Logger.With("component", "server"),
	}

	for _, name := range graph.Names() {
		if kind, _ := graph.Kind(name); kind == scenario.KindEffect {
			continue
		}
		eff, err := graph.Watch(name, s.publish)
		if err != nil {
			s.disposeWatches()
			return nil, err
		}
		s.watches[name] = eff
	}

	s.router = s.routes()
	s.handler = s.router
	if config.TracerProvider != nil {
		s.handler = otelhttp.NewHandler(s.router, "derive.server",
			otelhttp.WithTracerProvider(config.TracerProvider),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.handleNodes)
		r.Get("/{name}", s.handleReadNode)
		r.Put("/{name}", s.handleWriteNode)
		r.Delete("/{name}", s.handleDestroyNode)
	})

	r.Get("/watch", s.handleWatch)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	if s.config.Store != nil {
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.handleListSnapshots)
			r.Post("/{key}", s.handleSaveSnapshot)
			r.Post("/{key}/restore", s.handleRestoreSnapshot)
		})
	}
	return r
}

// logRequests logs every request at Debug.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		s.stats.requests.Add(1)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// publish is the watch callback. It runs inside a flush, with mu held.
func (s *Server) publish(st scenario.NodeState) {
	s.hub.Broadcast(Message{Type: MessageState, Node: &st})
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stats returns the current server counters.
func (s *Server) Stats() Stats {
	return s.stats.Snapshot()
}

// Run listens on the configured address and blocks until ctx is canceled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "scenario", s.graph.Name())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown disconnects watch clients, stops the HTTP server and disposes
// the watch effects. The graph itself is left to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.hub.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.mu.Lock()
	s.disposeWatches()
	s.mu.Unlock()

	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) disposeWatches() {
	for name, eff := range s.watches {
		eff.Dispose()
		delete(s.watches, name)
	}
}
