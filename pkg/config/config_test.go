package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Registry.ReposPath != "registry/repos.yml" {
		t.Errorf("unexpected repos path %s", cfg.Registry.ReposPath)
	}
	if cfg.Gateway.DefaultExecutor != "openai" {
		t.Errorf("expected default executor openai, got %s", cfg.Gateway.DefaultExecutor)
	}
	if cfg.Gateway.DispatchTimeout != 60*time.Second {
		t.Errorf("expected 60s dispatch timeout, got %s", cfg.Gateway.DispatchTimeout)
	}
	openai, ok := cfg.Gateway.Executors["openai"]
	if !ok {
		t.Fatalf("expected default openai executor entry")
	}
	if openai.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("unexpected api key env %s", openai.APIKeyEnv)
	}
	if _, ok := cfg.Gateway.Executors["echo"]; !ok {
		t.Errorf("expected echo executor entry")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ACTIONHUB_GATEWAY__DEFAULT_EXECUTOR", "groq")
	t.Setenv("ACTIONHUB_REGISTRY__SCHEMAS_DIR", "/srv/schemas")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.DefaultExecutor != "groq" {
		t.Errorf("expected executor groq from env, got %s", cfg.Gateway.DefaultExecutor)
	}
	if cfg.Registry.SchemasDir != "/srv/schemas" {
		t.Errorf("expected schemas dir from env, got %s", cfg.Registry.SchemasDir)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actionhub.yaml")
	content := `
log:
  level: debug
gateway:
  default_executor: local
  executors:
    local:
      type: ollama
      model: llama3.1
      base_url: http://localhost:11434/v1
      timeout: 2m
openapi:
  servers:
    - url: https://api.example.com
      description: Production
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	local, ok := cfg.Gateway.Executors["local"]
	if !ok {
		t.Fatalf("expected local executor from file")
	}
	if local.Type != "ollama" || local.Timeout != 2*time.Minute {
		t.Errorf("unexpected local executor %+v", local)
	}
	if _, ok := cfg.Gateway.Executors["openai"]; !ok {
		t.Errorf("file executors must merge with defaults")
	}
	if len(cfg.OpenAPI.Servers) != 1 || cfg.OpenAPI.Servers[0].URL != "https://api.example.com" {
		t.Errorf("unexpected servers %+v", cfg.OpenAPI.Servers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	content := []byte(`{"gateway": {"default_executor": "openai"}, "audit": {"backend": "memory"}}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ACTIONHUB_GATEWAY__DEFAULT_EXECUTOR", "groq")

	cfg, err := LoadWithCLI([]string{
		"--config", path,
		"--set", "gateway.default_executor=echo",
		"--set=audit.backend=sqlite",
		"--set", "ratelimit.redis.db=3",
		"--set", `gateway.executors={"svc":{"type":"http","base_url":"http://svc:8080"}}`,
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Gateway.DefaultExecutor != "echo" {
		t.Errorf("expected cli override to win, got %s", cfg.Gateway.DefaultExecutor)
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("expected audit backend sqlite, got %s", cfg.Audit.Backend)
	}
	if cfg.RateLimit.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RateLimit.Redis.DB)
	}
	svc, ok := cfg.Gateway.Executors["svc"]
	if !ok || svc.BaseURL != "http://svc:8080" {
		t.Errorf("expected svc executor from JSON override, got %+v", svc)
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	cases := [][]string{
		{"--config"},
		{"--set"},
		{"--set", "invalid"},
		{"--set", "=value"},
		{"--verbose"},
	}
	for _, args := range cases {
		if _, _, err := parseCLIOverrides(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("TEST_ACTIONHUB_KEY", "from-env")
	if got := (ExecutorConfig{APIKey: "inline", APIKeyEnv: "TEST_ACTIONHUB_KEY"}).ResolvedAPIKey(); got != "inline" {
		t.Errorf("inline key must win, got %s", got)
	}
	if got := (ExecutorConfig{APIKeyEnv: "TEST_ACTIONHUB_KEY"}).ResolvedAPIKey(); got != "from-env" {
		t.Errorf("expected key from env, got %s", got)
	}
	if got := (ExecutorConfig{}).ResolvedAPIKey(); got != "" {
		t.Errorf("expected empty key, got %s", got)
	}
}
