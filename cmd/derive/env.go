package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/derive/internal/config"
	errs "github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/pkg/observe"
	"github.com/vango-dev/derive/pkg/reactive"
)

// env is the configuration and logger of one command invocation.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

// load reads derive.json, applies the global flag overrides and builds the
// logger.
func (f *globalFlags) load(cmd *cobra.Command) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: newLogger(cmd.ErrOrStderr(), cfg.Level(), f.noColor),
	}, nil
}

func newLogger(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    noColor || !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// telemetry is the observer stack of a runtime.
type telemetry struct {
	observer reactive.Observer

	// tracerProvider is nil unless tracing is enabled.
	tracerProvider *sdktrace.TracerProvider
}

// Shutdown flushes pending spans.
func (t *telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// telemetry builds the observers enabled by the config. Metrics are only
// registered when reg is not nil.
func (e *env) telemetry(ctx context.Context, reg prometheus.Registerer) (*telemetry, error) {
	t := &telemetry{}
	observers := []reactive.Observer{observe.NewLogging(e.logger)}

	if e.cfg.Metrics.Enabled && reg != nil {
		observers = append(observers, observe.NewPrometheus(
			observe.WithNamespace(e.cfg.Metrics.Namespace),
			observe.WithSubsystem(e.cfg.Metrics.Subsystem),
			observe.WithRegistry(reg),
		))
	}

	if e.cfg.Tracing.Enabled {
		// The exporter follows OTEL_TRACES_EXPORTER and the other
		// standard OTEL_* variables.
		exporter, err := autoexport.NewSpanExporter(ctx)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		observers = append(observers, observe.NewTracing(
			observe.WithTracerName(e.cfg.Tracing.TracerName),
			observe.WithTracerProvider(t.tracerProvider),
		))
	}

	t.observer = observe.Multi(observers...)
	return t, nil
}

func errNoStore(flag string) error {
	return errs.New(errs.CodeSnapshotScheme).
		WithDetail(flag + " needs a snapshot store").
		WithSuggestion("Pass --snapshot or set snapshot.url in derive.json")
}
