// Package logger provides structured logging capabilities.
//
// The logger package builds the application's zap logger in production
// (JSON) or development (console) mode. Logs always go to stderr so that
// stdout stays free for the MCP stdio transport.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("Application started")
//	logger.Error("An error occurred", zap.Error(err))
package logger
