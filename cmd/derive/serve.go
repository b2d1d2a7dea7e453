package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/derive/internal/scenario"
	"github.com/vango-dev/derive/internal/snapshot"
	"github.com/vango-dev/derive/pkg/reactive"
	"github.com/vango-dev/derive/pkg/server"
)

type serveOptions struct {
	addr        string
	diagnostics bool
	snapshotURL string
	restoreKey  string
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Serve a scenario graph over HTTP and WebSocket",
		Long: `Serve builds the scenario's graph, without running its steps, and
exposes it over HTTP. Clients read and write nodes with /nodes, follow
changes on the /watch WebSocket and scrape /metrics.

Examples:
  derive serve pricing.yaml
  derive serve pricing.yaml --addr :8080
  derive serve pricing.yaml --snapshot redis://localhost:6379/0 --restore latest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from derive.json)")
	cmd.Flags().BoolVarP(&opts.diagnostics, "diagnostics", "d", false, "Enable the self-reference guard")
	cmd.Flags().StringVar(&opts.snapshotURL, "snapshot", "", "Snapshot store URL; enables /snapshots")
	cmd.Flags().StringVar(&opts.restoreKey, "restore", "", "Restore this snapshot before serving")

	return cmd
}

func runServe(cmd *cobra.Command, flags *globalFlags, path string, opts serveOptions) error {
	env, err := flags.load(cmd)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tel, err := env.telemetry(ctx, reg)
	if err != nil {
		return err
	}
	defer tel.Shutdown(cmd.Context())

	rt := reactive.New(
		reactive.WithLogger(env.logger),
		reactive.WithDiagnostics(opts.diagnostics || env.cfg.Diagnostics || sc.Diagnostics),
		reactive.WithObserver(tel.observer),
		reactive.WithMaxFlushIterations(env.cfg.MaxFlushIterations),
	)
	graph, err := scenario.Build(rt, sc)
	if err != nil {
		return err
	}
	defer graph.Close()

	storeURL := opts.snapshotURL
	if storeURL == "" {
		storeURL = env.cfg.Snapshot.URL
	}
	var store snapshot.Store
	if storeURL != "" {
		store, err = snapshot.Open(ctx, storeURL)
		if err != nil {
			return err
		}
		defer snapshot.Close(store)
	}

	if opts.restoreKey != "" {
		if store == nil {
			return errNoStore("--restore")
		}
		snap, err := store.Load(ctx, opts.restoreKey)
		if err != nil {
			return err
		}
		if err := snapshot.Restore(graph, snap); err != nil {
			return err
		}
		if err := graph.Flush(); err != nil {
			return err
		}
		env.logger.Info("snapshot restored", "key", opts.restoreKey, "clock", snap.Clock)
	}

	addr := opts.addr
	if addr == "" {
		addr = env.cfg.Server.Addr
	}
	config := &server.ServerConfig{
		Address:     addr,
		WatchBuffer: env.cfg.Server.WatchBuffer,
		Gatherer:    reg,
		Store:       store,
		Logger:      env.logger,
	}
	if tel.tracerProvider != nil {
		config.TracerProvider = tel.tracerProvider
	}

	srv, err := server.New(graph, config)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
