// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the executor as MCP tools using the
// mark3labs/mcp-go library:
//
//   - run_code executes a program in a sandbox and returns
//     {"output", "error", "execution_time"} as JSON text
//   - list_languages returns the supported language identifiers
//
// The server supports both stdio and streamable HTTP transports as
// configured by the application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, service)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
