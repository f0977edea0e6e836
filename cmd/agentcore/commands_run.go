package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cortex-prime/agentcore/internal/config"
	"github.com/cortex-prime/agentcore/internal/control"
	"github.com/cortex-prime/agentcore/internal/events"
	"github.com/cortex-prime/agentcore/internal/resolve"
	"github.com/cortex-prime/agentcore/internal/scheduler"
	"github.com/cortex-prime/agentcore/internal/telemetry"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// iterationDelimiter separates one canned LLM response per iteration inside
// a manifest file fed to "run".
const iterationDelimiter = "\n---iteration---\n"

func buildRunCmd() *cobra.Command {
	var manifestPath, configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one execution against a canned LLM response manifest",
		Long: `run feeds a pre-recorded protocol stream to the iteration controller
through a fake Streamer and a fake Callable, exercising the parser, graph,
resolver, scheduler, and controller together without any real provider or
tool collaborator wired in. The manifest holds the raw <thought>/<action>/
<response>/<context_feed> text for one or more iterations, one per line
separated by a line that reads exactly "---iteration---".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecution(cmd, manifestPath, configPath)
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to a canned LLM response manifest (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML/JSON5 execution config")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runExecution(cmd *cobra.Command, manifestPath, configPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	iterations := strings.Split(string(data), iterationDelimiter)

	cfg := action.DefaultConfig()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	store := action.NewStore()
	feeds := resolve.NewRegistry(nil, nil)
	resolver := resolve.New(store, feeds, nil)
	metrics := telemetry.NewMetrics()
	sched := scheduler.New(scheduler.Deps{
		Callable:               echoCallable{},
		Store:                  store,
		Feeds:                  feeds,
		Resolver:               resolver,
		Metrics:                metrics,
		DefaultActionTimeoutMS: cfg.DefaultActionTimeoutMS,
	})

	out := cmd.OutOrStdout()
	sink := events.NewCallbackSink(func(e events.Event) {
		b, _ := json.Marshal(e)
		fmt.Fprintln(out, string(b))
	})

	ctrl := control.New(uuid.NewString(), cfg, control.Deps{
		Streamer:  cannedStreamer{iterations: iterations},
		Scheduler: sched,
		Store:     store,
		Feeds:     feeds,
		Resolver:  resolver,
		Metrics:   metrics,
		Sink:      sink,
	})

	outcome, err := ctrl.Run(cmd.Context(), func(i int, history []control.IterationRecord) any {
		return i
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "execution finished: iterations=%d stop_reason=%s failures=%d skipped=%d\n",
		outcome.Iterations, outcome.StopReason, outcome.Failures, outcome.Skipped)
	return nil
}
