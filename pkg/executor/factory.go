package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jllopis/actionhub/pkg/config"
)

// Executor types understood by FromConfig.
const (
	TypeOpenAI = "openai"
	TypeGroq   = "groq"
	TypeOllama = "ollama"
	TypeHTTP   = "http"
	TypeEcho   = "echo"
	TypeMock   = "mock"
	TypeMCP    = "mcp"

	TypeAnthropic = "anthropic"
	TypeGemini    = "gemini"
)

var defaultBaseURLs = map[string]string{
	TypeOpenAI: "https://api.openai.com/v1",
	TypeGroq:   "https://api.groq.com/openai/v1",
	TypeOllama: "http://localhost:11434/v1",
}

// FromConfig builds a Router from named executor settings. Hosted chat
// executors without an API key are skipped, so only usable backends are
// listed. An unknown type is an error.
func FromConfig(cfg config.GatewayConfig, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(cfg.Executors))
	for name := range cfg.Executors {
		names = append(names, name)
	}
	sort.Strings(names)

	executors := make(map[string]Executor, len(names))
	for _, name := range names {
		ec := cfg.Executors[name]
		ex, err := build(name, ec)
		if err != nil {
			return nil, err
		}
		if ex == nil {
			logger.Debug("executor skipped: no credentials", slog.String("executor", name), slog.String("type", ec.Type))
			continue
		}
		executors[name] = ex
	}

	router := NewRouter(cfg.DefaultExecutor, executors)
	if _, _, err := router.Get(""); err != nil {
		logger.Warn("default executor is not available",
			slog.String("executor", cfg.DefaultExecutor),
			slog.Any("available", router.ListAvailable()))
	}
	return router, nil
}

func build(name string, ec config.ExecutorConfig) (Executor, error) {
	typ := ec.Type
	if typ == "" {
		typ = name
	}
	switch typ {
	case TypeOpenAI, TypeGroq:
		key := ec.ResolvedAPIKey()
		if key == "" {
			return nil, nil
		}
		return NewChat(name, baseURL(typ, ec.BaseURL), key, ec.Model, ec.Timeout), nil
	case TypeAnthropic:
		key := ec.ResolvedAPIKey()
		if key == "" {
			return nil, nil
		}
		return NewAnthropic(name, ec.BaseURL, key, ec.Model, ec.Timeout), nil
	case TypeGemini:
		key := ec.ResolvedAPIKey()
		if key == "" {
			return nil, nil
		}
		return NewGemini(context.Background(), name, ec.BaseURL, key, ec.Model, ec.Timeout)
	case TypeOllama:
		return NewChat(name, baseURL(typ, ec.BaseURL), ec.ResolvedAPIKey(), ec.Model, ec.Timeout), nil
	case TypeHTTP:
		return NewHTTP(name, ec.BaseURL, ec.ResolvedAPIKey(), ec.Timeout), nil
	case TypeMCP:
		if ec.BaseURL == "" {
			return nil, fmt.Errorf("executor %q of type mcp needs base_url", name)
		}
		return NewMCP(name, ec.BaseURL, ec.Timeout), nil
	case TypeEcho:
		return EchoExecutor{}, nil
	case TypeMock:
		return &MockExecutor{Response: "mock response"}, nil
	default:
		return nil, fmt.Errorf("executor %q has unknown type %q", name, typ)
	}
}

func baseURL(typ, configured string) string {
	if configured != "" {
		return configured
	}
	return defaultBaseURLs[typ]
}
