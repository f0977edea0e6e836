// Package main provides the CLI entry point for agentcore, a demonstration
// binary that wires the Agent Execution Core's five components (stream
// parser, action graph, variable resolver, DAG scheduler, iteration
// controller) against fake collaborators so the pipeline can be exercised
// end-to-end without a real LLM provider or tool runtime.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortex-prime/agentcore/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if provider, err := telemetry.NewProvider("agentcore"); err != nil {
		slog.Warn("tracing provider unavailable, spans will no-op", "error", err)
	} else {
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				slog.Warn("tracer provider shutdown failed", "error", err)
			}
		}()
	}

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree; split out from main for testing.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "Cortex agent execution core: streaming parser, DAG scheduler, iteration loop",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildConfigCmd())
	return root
}
