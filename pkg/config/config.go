// Package config loads actionhub settings from defaults, a YAML file,
// ACTIONHUB_* environment variables and --set overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates levels: ACTIONHUB_GATEWAY__DEFAULT_EXECUTOR -> gateway.default_executor.
const EnvPrefix = "ACTIONHUB_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Registry  RegistryConfig  `koanf:"registry"`
	Output    OutputConfig    `koanf:"output"`
	Server    ServerConfig    `koanf:"server"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Audit     AuditConfig     `koanf:"audit"`
	OpenAPI   OpenAPIConfig   `koanf:"openapi"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

// RegistryConfig locates the registry documents and the schema tree that
// input_schema_ref/output_schema_ref values are resolved against.
type RegistryConfig struct {
	ReposPath   string `koanf:"repos_path"`
	ActionsPath string `koanf:"actions_path"`
	SchemasDir  string `koanf:"schemas_dir"`
}

type OutputConfig struct {
	Dir string `koanf:"dir"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type GatewayConfig struct {
	DefaultExecutor string                    `koanf:"default_executor"`
	DispatchTimeout time.Duration             `koanf:"dispatch_timeout"`
	Executors       map[string]ExecutorConfig `koanf:"executors"`
}

// ExecutorConfig describes one named executor. APIKeyEnv names an
// environment variable consulted when APIKey is empty.
type ExecutorConfig struct {
	Type      string        `koanf:"type"` // openai, groq, anthropic, gemini, ollama, http, mcp, echo, mock
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	APIKeyEnv string        `koanf:"api_key_env"`
	Timeout   time.Duration `koanf:"timeout"`
}

// ResolvedAPIKey returns the inline key or the one read from APIKeyEnv.
func (c ExecutorConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

type RateLimitConfig struct {
	Backend string      `koanf:"backend"` // none, memory, redis
	Redis   RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuditConfig struct {
	Backend string `koanf:"backend"` // none, memory, sqlite
	DSN     string `koanf:"dsn"`
}

type OpenAPIConfig struct {
	Title       string          `koanf:"title"`
	Version     string          `koanf:"version"`
	Description string          `koanf:"description"`
	Contact     ContactConfig   `koanf:"contact"`
	Servers     []OpenAPIServer `koanf:"servers"`
}

type ContactConfig struct {
	Name  string `koanf:"name"`
	Email string `koanf:"email"`
	URL   string `koanf:"url"`
}

type OpenAPIServer struct {
	URL         string `koanf:"url"`
	Description string `koanf:"description"`
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.service_name", "actionhub")

	k.Set("registry.repos_path", "registry/repos.yml")
	k.Set("registry.actions_path", "registry/actions.yml")
	k.Set("registry.schemas_dir", "schemas")

	k.Set("output.dir", "generated")

	k.Set("server.addr", ":8080")
	k.Set("server.read_timeout", "15s")
	k.Set("server.write_timeout", "60s")

	k.Set("gateway.default_executor", "openai")
	k.Set("gateway.dispatch_timeout", "60s")
	k.Set("gateway.executors.openai.type", "openai")
	k.Set("gateway.executors.openai.model", "gpt-4o-mini")
	k.Set("gateway.executors.openai.base_url", "https://api.openai.com/v1")
	k.Set("gateway.executors.openai.api_key_env", "OPENAI_API_KEY")
	k.Set("gateway.executors.groq.type", "groq")
	k.Set("gateway.executors.groq.model", "llama-3.1-8b-instant")
	k.Set("gateway.executors.groq.base_url", "https://api.groq.com/openai/v1")
	k.Set("gateway.executors.groq.api_key_env", "GROQ_API_KEY")
	k.Set("gateway.executors.anthropic.type", "anthropic")
	k.Set("gateway.executors.anthropic.model", "claude-sonnet-4-20250514")
	k.Set("gateway.executors.anthropic.api_key_env", "ANTHROPIC_API_KEY")
	k.Set("gateway.executors.gemini.type", "gemini")
	k.Set("gateway.executors.gemini.model", "gemini-2.0-flash")
	k.Set("gateway.executors.gemini.api_key_env", "GEMINI_API_KEY")
	k.Set("gateway.executors.echo.type", "echo")

	k.Set("ratelimit.backend", "memory")
	k.Set("ratelimit.redis.addr", "localhost:6379")

	k.Set("audit.backend", "memory")
	k.Set("audit.dsn", "file:actionhub-audit.db")

	k.Set("openapi.title", "Capability Actions API")
	k.Set("openapi.version", "1.0.0")
	k.Set("openapi.description", "Actions exposed by the capability registry, grouped by domain.")
}

// Load reads configuration from defaults, the optional YAML file at path
// and the environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadWithCLI parses --config and --set arguments and loads the result.
// --set values that look like JSON objects or arrays are decoded as JSON.
func LoadWithCLI(args []string) (*Config, error) {
	path, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(path, sets)
}

func load(path string, sets []string) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for _, set := range sets {
		key, value, _ := strings.Cut(set, "=")
		if err := k.Set(strings.TrimSpace(key), decodeOverride(value)); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCLIOverrides(args []string) (string, []string, error) {
	var (
		path string
		sets []string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("missing value for --config")
			}
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("missing value for --set")
			}
			sets = append(sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			sets = append(sets, strings.TrimPrefix(arg, "--set="))
		default:
			return "", nil, fmt.Errorf("unknown config argument %q", arg)
		}
	}
	for _, set := range sets {
		key, _, ok := strings.Cut(set, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return "", nil, fmt.Errorf("invalid --set value %q, expected key=value", set)
		}
	}
	return path, sets, nil
}

func decodeOverride(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded interface{}
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return value
}
