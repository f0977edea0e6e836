package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortex-prime/agentcore/internal/config"
)

// buildConfigCmd implements SPEC_FULL.md supplemented feature 3: a "config
// schema" subcommand that prints the JSON Schema for the execution Config,
// so operators can validate a manifest before wiring a run.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the execution configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the execution Config",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	})
	return cmd
}
