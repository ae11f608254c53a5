package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/executor"
	"github.com/isdmx/runbox/sandbox"
)

// MockExecutor implements Executor for testing
type MockExecutor struct {
	result   executor.Result
	requests []executor.Request
}

func (m *MockExecutor) Execute(_ context.Context, req executor.Request) executor.Result {
	m.requests = append(m.requests, req)
	return m.result
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			Backend:       "docker",
			TimeoutSec:    10,
			MaxConcurrent: 8,
			PullImages:    true,
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	mockExecutor := &MockExecutor{}

	server, err := New(cfg, logger, mockExecutor)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, mockExecutor, server.exec)
	assert.NotNil(t, server.GetMCPServer())
}

func TestRunCode(t *testing.T) {
	mockExecutor := &MockExecutor{result: executor.Result{Output: "hello\n", ExecutionTime: 1500 * time.Millisecond}}
	server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
	require.NoError(t, err)

	res, err := server.handleRunCode(context.Background(), callRequest(RunCodeTool, map[string]any{
		"code":     "print(input())",
		"language": "python",
		"input":    "hello\n",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var payload executor.Payload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	assert.Equal(t, executor.Payload{Output: "hello\n", ExecutionTime: 1.5}, payload)

	require.Len(t, mockExecutor.requests, 1)
	assert.Equal(t, executor.Request{Code: "print(input())", Language: "python", Stdin: "hello\n"}, mockExecutor.requests[0])
}

func TestRunCodeMissingArguments(t *testing.T) {
	mockExecutor := &MockExecutor{}
	server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
	require.NoError(t, err)

	res, err := server.handleRunCode(context.Background(), callRequest(RunCodeTool, map[string]any{
		"language": "python",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Missing code or language")
	assert.Empty(t, mockExecutor.requests)
}

func TestRunCodeFailureIsToolError(t *testing.T) {
	mockExecutor := &MockExecutor{result: executor.Result{
		Error: "Unsupported language: ruby",
		Kind:  sandbox.KindUnsupportedLanguage,
	}}
	server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
	require.NoError(t, err)

	res, err := server.handleRunCode(context.Background(), callRequest(RunCodeTool, map[string]any{
		"code":     "puts 1",
		"language": "ruby",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var payload executor.Payload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	assert.Equal(t, "Unsupported language: ruby", payload.Error)
	assert.Zero(t, payload.ExecutionTime)
}

func TestListLanguages(t *testing.T) {
	server, err := New(testConfig(), zaptest.NewLogger(t), &MockExecutor{})
	require.NoError(t, err)

	res, err := server.handleListLanguages(context.Background(), callRequest(ListLanguagesTool, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "cpp", "java", "javascript", "python", "typescript"},
		strings.Split(resultText(t, res), "\n"))
}

func TestShutdownWithoutServing(t *testing.T) {
	server, err := New(testConfig(), zaptest.NewLogger(t), &MockExecutor{})
	require.NoError(t, err)
	assert.NoError(t, server.Shutdown(context.Background()))
}
