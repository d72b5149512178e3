// Package app wires the application together: configuration, database
// pool, Genkit, stores, the tool boundary and the agent. Setup returns a
// container whose Close releases everything.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskwell/taskwell/internal/agent"
	"github.com/taskwell/taskwell/internal/config"
	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/thread"
	"github.com/taskwell/taskwell/internal/todo"
	"github.com/taskwell/taskwell/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit  *genkit.Genkit
	Pool    *pgxpool.Pool
	Todos   *todo.Store
	Threads *thread.Store
	Manager *tools.Manager
	Tools   []ai.Tool
	Agent   *agent.Agent
}

// Close releases all resources held by the container.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
