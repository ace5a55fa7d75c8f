package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/generate"
	"github.com/jllopis/actionhub/pkg/health"
	"github.com/jllopis/actionhub/pkg/registry"
)

func writeError(c *gin.Context, err error) {
	e := errors.As(err)
	c.JSON(e.StatusCode, gin.H{
		"success": false,
		"error":   e.Message,
		"code":    e.Code,
	})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.Healthy})
}

func (s *Server) readyz(c *gin.Context) {
	results, overall := s.opts.Health.CheckAll(c.Request.Context())
	status := http.StatusOK
	if overall == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}

func (s *Server) listRepos(c *gin.Context) {
	f := registry.RepositoryFilter{
		Domain: c.Query("domain"),
		Tier:   registry.Tier(c.Query("tier")),
		Status: registry.Status(c.Query("status")),
		Tag:    c.Query("tag"),
	}
	stage, err := stageParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	f.Stage = stage
	repos := s.opts.Registry.FilterRepositories(f)
	c.JSON(http.StatusOK, gin.H{"repos": repos, "count": len(repos)})
}

func (s *Server) getRepo(c *gin.Context) {
	repo, ok := s.opts.Registry.Repository(c.Param("name"))
	if !ok {
		writeError(c, errors.NotFound("repository", c.Param("name")))
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (s *Server) listCapabilities(c *gin.Context) {
	caps := s.opts.Registry.FilterCapabilities(registry.CapabilityFilter{
		Domain: c.Query("domain"),
		Tag:    c.Query("tag"),
	})
	c.JSON(http.StatusOK, gin.H{"capabilities": caps, "count": len(caps)})
}

func (s *Server) getCapability(c *gin.Context) {
	id := c.Param("id")
	capability, ok := s.opts.Registry.Capability(id)
	if !ok {
		writeError(c, errors.NotFound("capability", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"capability": capability,
		"actions":    s.opts.Registry.ActionsForCapability(id),
	})
}

func (s *Server) listActions(c *gin.Context) {
	actions := s.opts.Registry.FilterActions(registry.ActionFilter{
		Repo:       c.Query("repo"),
		Capability: c.Query("capability"),
		Domain:     c.Query("domain"),
	})
	c.JSON(http.StatusOK, gin.H{"actions": actions, "count": len(actions)})
}

func (s *Server) getAction(c *gin.Context) {
	action, ok := s.opts.Registry.Action(c.Param("id"))
	if !ok {
		writeError(c, errors.ActionNotFound(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, action)
}

func (s *Server) openAPI(c *gin.Context) {
	doc, err := generate.OpenAPI(s.opts.Registry, s.opts.Schemas, s.opts.OpenAPI)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) serviceGraph(c *gin.Context) {
	stage, err := stageParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	g := generate.Graph(s.opts.Registry, generate.GraphFilter{
		Stage:  stage,
		Domain: c.Query("domain"),
		Tier:   registry.Tier(c.Query("tier")),
	})
	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, g)
	case "mermaid", "mmd":
		c.String(http.StatusOK, generate.ToMermaid(g))
	case "dot":
		c.String(http.StatusOK, generate.ToDot(g))
	default:
		writeError(c, errors.New(errors.CodeInvalidInput, "format must be json, mermaid or dot", nil))
	}
}

func (s *Server) validate(c *gin.Context) {
	report, err := registry.Validate(c.Request.Context(), s.opts.Sources, s.opts.Schemas)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) registrySnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"capabilities": s.opts.Registry.Capabilities(),
		"actions":      s.opts.Registry.Actions(),
	})
}

func (s *Server) executors(c *gin.Context) {
	router := s.opts.Dispatcher.Router()
	c.JSON(http.StatusOK, gin.H{
		"default":   router.Default(),
		"available": router.ListAvailable(),
	})
}

func (s *Server) auditEntries(c *gin.Context) {
	if s.opts.Audit == nil {
		writeError(c, errors.NotFound("audit store", "default"))
		return
	}
	f := audit.Filter{
		ActionID: c.Query("action"),
		Executor: c.Query("executor"),
		Outcome:  c.Query("outcome"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, errors.New(errors.CodeInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		f.Limit = n
	}
	entries, err := s.opts.Audit.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) dispatchAction(c *gin.Context) {
	req, err := decodeRequest(c.Request.Body)
	if err != nil {
		e := errors.As(err)
		c.JSON(http.StatusBadRequest, dispatch.Response{
			Success: false,
			Error:   e.Message,
			Code:    string(errors.CodeInvalidInput),
		})
		return
	}
	resp := s.opts.Dispatcher.Dispatch(c.Request.Context(), c.Param("id"), req)
	c.JSON(resp.HTTPStatus(), resp)
}

// decodeRequest accepts {"input": {...}, "context": {...}} or a bare
// object, which is taken as the input. A top-level "input" or "context"
// key selects the envelope form; both must then be objects or null.
func decodeRequest(body io.Reader) (dispatch.Request, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return dispatch.Request{}, errors.New(errors.CodeInvalidInput, "cannot read request body", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return dispatch.Request{Input: map[string]any{}}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return dispatch.Request{}, errors.New(errors.CodeInvalidInput, "request body must be a JSON object", err)
	}

	_, hasInput := fields["input"]
	_, hasContext := fields["context"]
	if !hasInput && !hasContext {
		var input map[string]any
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.Request{}, errors.New(errors.CodeInvalidInput, "request body must be a JSON object", err)
		}
		return dispatch.Request{Input: input}, nil
	}

	var req dispatch.Request
	if err := objectField(fields, "input", &req.Input); err != nil {
		return dispatch.Request{}, err
	}
	if err := objectField(fields, "context", &req.Context); err != nil {
		return dispatch.Request{}, err
	}
	if req.Input == nil {
		req.Input = map[string]any{}
	}
	return req, nil
}

func objectField(fields map[string]json.RawMessage, key string, dst *map[string]any) error {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return errors.New(errors.CodeInvalidInput, fmt.Sprintf("%q must be a JSON object", key), err)
	}
	return nil
}

func stageParam(c *gin.Context) (*int, error) {
	v := c.Query("stage")
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "stage must be an integer", err)
	}
	return &n, nil
}
