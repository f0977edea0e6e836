package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"run", "config"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestRunCmdEndToEnd(t *testing.T) {
	manifest := strings.Join([]string{
		`<thought>checking things</thought><action type="tool" mode="sync" id="X">{"target":"do-thing","parameters":{}}</action><response final="false">working</response>`,
		`<response final="true">all done</response>`,
	}, iterationDelimiter)

	path := filepath.Join(t.TempDir(), "manifest.txt")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	root := buildRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", "--manifest", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "execution_completed") {
		t.Fatalf("expected an execution_completed event in output, got: %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "iterations=2") {
		t.Fatalf("expected summary to report 2 iterations, got: %s", stderr.String())
	}
}

func TestConfigSchemaCmd(t *testing.T) {
	root := buildRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"config", "schema"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config schema failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "max_iterations") {
		t.Fatalf("expected schema to mention max_iterations, got: %s", stdout.String())
	}
}
