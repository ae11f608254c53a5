// Package main is the entry point for the runbox server.
//
// The runbox server executes untrusted user code (Python, JavaScript,
// TypeScript, Java, C, C++) in isolated containers with fixed memory, CPU
// and network limits. It is reachable over a REST API or as a Model Context
// Protocol (MCP) server on stdio or HTTP, selected by server.transport.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
