package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/taskwell/taskwell/db"
	"github.com/taskwell/taskwell/internal/agent"
	"github.com/taskwell/taskwell/internal/config"
	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/thread"
	"github.com/taskwell/taskwell/internal/todo"
	"github.com/taskwell/taskwell/internal/tools"
)

// Proactive model request pacing. Keeps a chatty client from burning
// through the API quota before the provider starts returning 429s.
const (
	modelRequestsPerSecond = 1
	modelRequestBurst      = 3
)

// Setup creates and initializes the application. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Todos = todo.NewStore(pool, todo.DefaultUserID, logger)
	a.Threads = thread.NewStore(pool, logger)

	a.Manager = tools.NewManager(a.Todos, logger)
	a.Tools = append(a.Tools, tools.Register(g, a.Manager))

	ag, err := agent.New(agent.Config{
		Genkit:       g,
		History:      a.Threads,
		Logger:       logger,
		Tools:        a.Tools,
		ModelName:    cfg.FullModelName(),
		Temperature:  cfg.Temperature,
		MaxTurns:     cfg.MaxTurns,
		HistoryLimit: cfg.HistoryLimit,
		RateLimiter:  rate.NewLimiter(modelRequestsPerSecond, modelRequestBurst),
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = ag

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"tools", ag.ToolCount(),
	)
	return a, nil
}

// SetupStorage initializes only the database-backed parts of the
// application. Used by commands that need the stores but no model,
// such as the MCP server.
func SetupStorage(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	a.Todos = todo.NewStore(pool, todo.DefaultUserID, logger)
	a.Threads = thread.NewStore(pool, logger)
	a.Manager = tools.NewManager(a.Todos, logger)

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
