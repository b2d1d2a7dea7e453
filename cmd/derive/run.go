package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vango-dev/derive/internal/scenario"
	"github.com/vango-dev/derive/internal/snapshot"
)

type runOptions struct {
	diagnostics bool
	snapshotURL string
	saveKey     string
	json        bool
}

func runCmd(flags *globalFlags) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a scenario and check its expectations",
		Long: `Run builds the scenario's graph on a fresh runtime and executes its
steps in order. Every step runs even if an earlier one failed; the command
fails if any expectation was not met.

With a snapshot store (--snapshot or snapshot.url in derive.json) and
--save, the final state of the graph is stored under the given key.

Examples:
  derive run pricing.yaml
  derive run pricing.yaml --json
  derive run pricing.yaml --snapshot file://.derive/snapshots --save pricing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, flags, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.diagnostics, "diagnostics", "d", false, "Enable the self-reference guard")
	cmd.Flags().StringVar(&opts.snapshotURL, "snapshot", "", "Snapshot store URL (file://, mem://, s3://, redis://)")
	cmd.Flags().StringVar(&opts.saveKey, "save", "", "Save the final state under this key (default: scenario name when --snapshot is set)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")

	return cmd
}

func runScenario(cmd *cobra.Command, flags *globalFlags, path string, opts runOptions) error {
	env, err := flags.load(cmd)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	tel, err := env.telemetry(ctx, nil)
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	report, graph, runErr := scenario.Run(ctx, sc, scenario.Options{
		Logger:             env.logger,
		Observer:           tel.observer,
		Diagnostics:        opts.diagnostics || env.cfg.Diagnostics,
		MaxFlushIterations: env.cfg.MaxFlushIterations,
	})
	if graph == nil {
		return runErr
	}
	defer graph.Close()

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	storeURL := opts.snapshotURL
	if storeURL == "" {
		storeURL = env.cfg.Snapshot.URL
	}
	key := opts.saveKey
	if key == "" && opts.snapshotURL != "" {
		key = sc.Name
	}
	if key != "" {
		if storeURL == "" {
			return errNoStore("--save")
		}
		if err := saveSnapshot(ctx, storeURL, key, graph); err != nil {
			return err
		}
		env.logger.Info("snapshot saved", "url", storeURL, "key", key)
	}

	return runErr
}

func saveSnapshot(ctx context.Context, url, key string, graph *scenario.Graph) error {
	store, err := snapshot.Open(ctx, url)
	if err != nil {
		return err
	}
	defer snapshot.Close(store)
	return store.Save(ctx, key, snapshot.Take(graph))
}

func printReport(w io.Writer, report *scenario.Report) {
	failed := len(report.Failed())
	fmt.Fprintf(w, "scenario %s: %d steps, %d passed, %d failed\n",
		report.Scenario, len(report.Steps), len(report.Steps)-failed, failed)

	for _, step := range report.Steps {
		mark := "\033[32m✓\033[0m"
		if !step.Passed() {
			mark = "\033[31m✗\033[0m"
		}
		if !isTerminal(w) {
			mark = "ok  "
			if !step.Passed() {
				mark = "FAIL"
			}
		}

		line := fmt.Sprintf("%s %3d %-7s %s", mark, step.Index, step.Action, step.Node)
		if step.Value != nil {
			line += " = " + strconv.FormatFloat(*step.Value, 'g', -1, 64)
		}
		if step.Err != "" {
			line += " error: " + step.Err
		}
		if step.Node != "" {
			line += fmt.Sprintf(" (computes %d)", step.Computes)
		}
		if !step.Passed() {
			line += ": " + step.Failure
		}
		fmt.Fprintln(w, line)
	}

	names := make([]string, 0, len(report.Computes))
	for name := range report.Computes {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprint(w, "computes:")
	for _, name := range names {
		fmt.Fprintf(w, " %s=%d", name, report.Computes[name])
	}
	fmt.Fprintf(w, "\nclock: %d\n", report.Clock)
}
