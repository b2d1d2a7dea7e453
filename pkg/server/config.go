package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/derive/internal/snapshot"
)

// ServerConfig holds configuration for the server.
type ServerConfig struct {
	// Address is the TCP address to listen on.
	// Default: "localhost:7070".
	Address string

	// WatchBuffer is the number of messages queued per WebSocket client
	// before the client is dropped as too slow.
	// Default: 64.
	WatchBuffer int

	// CheckOrigin decides whether a WebSocket upgrade is accepted.
	// Default: same origin only.
	CheckOrigin func(r *http.Request) bool

	// Gatherer serves /metrics.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// TracerProvider, when set, records a span per HTTP request.
	TracerProvider trace.TracerProvider

	// Store enables the /snapshots routes when set.
	Store snapshot.Store

	// Logger receives request and connection logs.
	// Default: slog.Default().
	Logger *slog.Logger

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// WriteTimeout bounds a single WebSocket write.
	// Default: 10 seconds.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           "localhost:7070",
		WatchBuffer:       64,
		CheckOrigin:       sameOrigin,
		Gatherer:          prometheus.DefaultGatherer,
		Logger:            slog.Default(),
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// withDefaults returns a copy of c with every unset field defaulted.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.WatchBuffer <= 0 {
		out.WatchBuffer = defaults.WatchBuffer
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.Gatherer == nil {
		out.Gatherer = defaults.Gatherer
	}
	if out.Logger == nil {
		out.Logger = defaults.Logger
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	return &out
}

// sameOrigin accepts requests without an Origin header and requests whose
// Origin host matches the Host header.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
