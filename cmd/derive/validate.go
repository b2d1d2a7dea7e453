package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/vango-dev/derive/internal/scenario"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *multierror.Error
			for _, path := range args {
				sc, err := scenario.Load(path)
				if err == nil {
					err = sc.Validate()
				}
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", path)
					result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s: %d nodes, %d steps\n", path, len(sc.Nodes), len(sc.Steps))
			}
			return result.ErrorOrNil()
		},
	}
}
