// Package mcp serves registry actions as MCP tools. Each call is routed
// through the action dispatcher.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/registry"
)

// Dispatcher runs an action. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, actionID string, req dispatch.Request) dispatch.Response
}

// SchemaSource returns raw schema documents. *schema.Compiler satisfies it.
type SchemaSource interface {
	Document(ref string) (map[string]any, error)
}

// Server wraps the mcp-go server with one tool per action.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher Dispatcher
	logger     *slog.Logger
	tools      []string
}

// NewServer creates an MCP server with no tools registered.
func NewServer(name, version string, d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		mcpServer:  server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		dispatcher: d,
		logger:     logger,
	}
}

// RegisterActions adds a tool for every non-deprecated action. When an
// action declares an input schema the tool advertises it verbatim.
func (s *Server) RegisterActions(reg *registry.Registry, schemas SchemaSource) error {
	for _, action := range reg.Actions() {
		if action.Deprecated {
			continue
		}
		tool, err := actionTool(action, reg, schemas)
		if err != nil {
			return err
		}
		s.mcpServer.AddTool(tool, s.toolHandler(action.ID))
		s.tools = append(s.tools, action.ID)
	}
	s.logger.Info("mcp.tools.registered", slog.Int("count", len(s.tools)))
	return nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	out := make([]string, len(s.tools))
	copy(out, s.tools)
	return out
}

// ServeStdio serves the tools over stdin/stdout until the client exits.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler serves the tools over the streamable HTTP transport so other
// gateways can reach them with an mcp executor.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

func actionTool(action registry.Action, reg *registry.Registry, schemas SchemaSource) (mcp.Tool, error) {
	desc := action.Description
	if capability, ok := reg.Capability(action.CapabilityID); ok {
		if desc == "" {
			desc = capability.Description
		}
		if desc == "" {
			desc = capability.Name
		}
	}
	if action.InputSchemaRef == "" || schemas == nil {
		return mcp.NewTool(action.ID, mcp.WithDescription(desc)), nil
	}
	doc, err := schemas.Document(action.InputSchemaRef)
	if err != nil {
		return mcp.Tool{}, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("encode input schema for %s: %w", action.ID, err)
	}
	return mcp.NewToolWithRawSchema(action.ID, desc, raw), nil
}

func (s *Server) toolHandler(actionID string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		resp := s.dispatcher.Dispatch(ctx, actionID, dispatch.Request{Input: args})
		if !resp.Success {
			return mcp.NewToolResultError(errorText(resp)), nil
		}
		if text, ok := resp.Data.Result.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		raw, err := json.Marshal(resp.Data.Result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func errorText(resp dispatch.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", resp.Code, resp.Error)
	for _, d := range resp.Details {
		b.WriteString("\n- ")
		b.WriteString(d.String())
	}
	return b.String()
}
