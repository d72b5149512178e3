// Package cmd provides the Taskwell CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming chat
//   - mcp: Model Context Protocol server for IDE integration
//   - migrate: run database migrations and exit
//   - version: version information
//
// All long-running commands shut down gracefully on SIGINT/SIGTERM via
// context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskwell/taskwell/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "taskwell",
	Short: "Taskwell - a todo list with a conversational agent",
	Long: `Taskwell manages a todo list through a REST API and a streaming
conversational agent. The agent understands natural language and
manipulates todos through a single tool boundary.

Run "taskwell serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG=1 enables debug level,
// LOG_JSON=1 switches to JSON output for log collectors.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("LOG_JSON") != "",
	})
}
