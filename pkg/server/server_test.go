package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/executor"
	"github.com/jllopis/actionhub/pkg/health"
	"github.com/jllopis/actionhub/pkg/registry"
	"github.com/jllopis/actionhub/pkg/schema"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server *Server
	mock   *executor.MockExecutor
	audit  *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := filepath.Join("..", "..")
	src := registry.Sources{
		ReposPath:   filepath.Join(root, "registry", "repos.yml"),
		ActionsPath: filepath.Join(root, "registry", "actions.yml"),
	}
	schemas := schema.NewCompiler(filepath.Join(root, "schemas"))
	reg, err := registry.NewLoader(src, registry.WithValidator(schemas)).Load(context.Background())
	require.NoError(t, err)

	mock := &executor.MockExecutor{Response: "done"}
	router := executor.NewRouter("mock", map[string]executor.Executor{"mock": mock, "groq": mock})
	store := audit.NewMemoryStore()
	d := dispatch.New(reg, schemas, router, dispatch.WithAuditStore(store))

	hp := health.NewProvider(0)
	hp.Register("registry", health.RegistryChecker(reg))
	hp.Register("executors", health.ExecutorChecker(router))

	return &fixture{
		server: New(Options{
			Registry:   reg,
			Sources:    src,
			Schemas:    schemas,
			Dispatcher: d,
			Health:     hp,
			Audit:      store,
		}),
		mock:  mock,
		audit: store,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HEALTHY", body["status"])

	// The sample registry declares a dangling dependency, so the registry
	// check is degraded but the service is still ready.
	rec, body = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEGRADED", body["status"])
	assert.Len(t, body["checks"], 2)
}

func TestRegistryEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/repos?tier=tier_0", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, body = f.do(t, http.MethodGet, "/repos/workspace-service", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "workspace-service", body["name"])

	rec, body = f.do(t, http.MethodGet, "/repos/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = f.do(t, http.MethodGet, "/repos?stage=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/capabilities/cap.email.send", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["actions"], 1)

	rec, body = f.do(t, http.MethodGet, "/actions?capability=cap.email.send", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = f.do(t, http.MethodGet, "/actions/act.email.send", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cap.email.send", body["capability_id"])

	rec, body = f.do(t, http.MethodGet, "/registry", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "capabilities")
	assert.Contains(t, body, "actions")

	rec, body = f.do(t, http.MethodGet, "/executors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mock", body["default"])
}

func TestOpenAPIAndGraphEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/actions/openapi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.1.0", body["openapi"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/v1/email/send")

	rec, body = f.do(t, http.MethodGet, "/graph/services", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["nodes"])

	rec, _ = f.do(t, http.MethodGet, "/graph/services?format=mermaid", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD\n"))

	rec, _ = f.do(t, http.MethodGet, "/graph/services?format=dot", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "digraph services {"))

	rec, _ = f.do(t, http.MethodGet, "/graph/services?format=png", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/validate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.NotEmpty(t, body["warnings"])
}

func TestDispatchEndpoint(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/actions/act.email.send",
		`{"input": {"to": "a@b.com", "subject": "Hi", "body": "Hello"}, "context": {"user": "u-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "act.email.send", data["actionId"])
	assert.Equal(t, "done", data["result"])
	require.Len(t, f.mock.Calls(), 1)
	assert.Equal(t, "u-1", f.mock.Calls()[0].Context["user"])

	rec, body = f.do(t, http.MethodPost, "/actions/act.email.send", `{"to": "a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "validation failed")
	assert.NotEmpty(t, body["details"])

	rec, body = f.do(t, http.MethodPost, "/actions/act.none", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "not found")

	rec, _ = f.do(t, http.MethodPost, "/actions/act.email.send", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/actions/act.email.send", `{"input": "hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Contains(t, body["error"], `"input" must be a JSON object`)

	rec, body = f.do(t, http.MethodGet, "/audit?action=act.email.send", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		input   map[string]any
		context map[string]any
	}{
		{"wrapped", `{"input": {"a": 1}, "context": {"c": true}}`, map[string]any{"a": float64(1)}, map[string]any{"c": true}},
		{"bare", `{"a": 1}`, map[string]any{"a": float64(1)}, nil},
		{"empty", ``, map[string]any{}, nil},
		{"null input keeps context", `{"input": null, "context": {"user": "u1"}}`, map[string]any{}, map[string]any{"user": "u1"}},
		{"context only", `{"context": {"user": "u1"}}`, map[string]any{}, map[string]any{"user": "u1"}},
		{"null context", `{"input": {"a": 1}, "context": null}`, map[string]any{"a": float64(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decodeRequest(strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.input, req.Input)
			assert.Equal(t, tt.context, req.Context)
		})
	}

	for _, body := range []string{
		`[1, 2]`,
		`null`,
		`"hello"`,
		`{"input": "hello"}`,
		`{"input": [1]}`,
		`{"input": {"a": 1}, "context": "u1"}`,
	} {
		t.Run("reject "+body, func(t *testing.T) {
			_, err := decodeRequest(strings.NewReader(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidInput))
		})
	}
}
