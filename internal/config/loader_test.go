package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("max_parallel: 8\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxParallel != 8 {
		t.Fatalf("expected max_parallel 8, got %d", cfg.MaxParallel)
	}
	if cfg.MaxIterations != 10 {
		t.Fatalf("expected default max_iterations 10, got %d", cfg.MaxIterations)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte("max_parallel: 3\nmax_iterations: 4\n"), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	mainPath := filepath.Join(dir, "main.yaml")
	content := "$include: base.yaml\nmax_iterations: 7\n"
	if err := os.WriteFile(mainPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write main: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxParallel != 3 {
		t.Fatalf("expected included max_parallel 3, got %d", cfg.MaxParallel)
	}
	if cfg.MaxIterations != 7 {
		t.Fatalf("expected overriding max_iterations 7, got %d", cfg.MaxIterations)
	}
}

func TestLoadJSON5ToleratesCommentsAndTrailingCommas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json5")
	content := `{
		// inline comment
		max_parallel: 6,
		max_iterations: 5,
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxParallel != 6 || cfg.MaxIterations != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestJSONSchemaMentionsConfigFields(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	if len(schema) == 0 {
		t.Fatal("expected non-empty schema")
	}
}
