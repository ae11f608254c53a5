package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/executor"
	"github.com/isdmx/runbox/language"
)

// Tool names
const (
	RunCodeTool       = "run_code"
	ListLanguagesTool = "list_languages"
)

// Executor runs one submission.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) executor.Result
}

// MCPServer represents the MCP server
type MCPServer struct {
	config     *config.Config
	logger     *zap.Logger
	exec       Executor
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	serving    atomic.Bool
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, exec Executor) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		exec:   exec,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.max_concurrent", s.config.Sandbox.MaxConcurrent),
		zap.Bool("sandbox.pull_images", s.config.Sandbox.PullImages),
		zap.Strings("languages", language.Names()),
	)

	s.mcpServer = server.NewMCPServer("runbox", "A sandboxed code execution server")

	s.registerRunCodeTool()
	s.registerListLanguagesTool()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	return s, nil
}

// registerRunCodeTool registers the run_code tool
func (s *MCPServer) registerRunCodeTool() {
	tool := mcp.Tool{
		Name:        RunCodeTool,
		Description: "Run untrusted source code in an isolated sandbox with no network access",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Program source code",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Language identifier",
					"enum":        language.Names(),
				},
				"input": map[string]any{
					"type":        "string",
					"description": "Text delivered on standard input (optional)",
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunCode)
}

func (s *MCPServer) registerListLanguagesTool() {
	tool := mcp.Tool{
		Name:        ListLanguagesTool,
		Description: "List the languages run_code accepts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleListLanguages)
}

// handleRunCode handles the run_code tool
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := executor.Request{
		Code:     request.GetString("code", ""),
		Language: request.GetString("language", ""),
		Stdin:    request.GetString("input", ""),
	}
	if err := req.Validate(); err != nil {
		return s.payloadResult(executor.Payload{Error: err.Error()}, true)
	}

	s.logger.Info("code execution requested", zap.String("language", req.Language))
	result := s.exec.Execute(ctx, req)

	return s.payloadResult(result.Payload(), !result.OK())
}

func (s *MCPServer) handleListLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: strings.Join(language.Names(), "\n"),
			},
		},
	}, nil
}

func (s *MCPServer) payloadResult(p executor.Payload, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
		IsError: isError,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	s.serving.Store(true)
	return s.httpServer.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport if it was started.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if !s.serving.Load() {
		return nil
	}
	s.logger.Info("stopping MCP HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
