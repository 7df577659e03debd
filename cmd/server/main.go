package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/evaluator"
	"github.com/isdmx/coderun/httpserver"
	"github.com/isdmx/coderun/logger"
	"github.com/isdmx/coderun/mcpserver"
	"github.com/isdmx/coderun/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution engine, exposed to the transports and the evaluator
			newEngine,
			func(e *sandbox.Engine) sandbox.Executor { return e },
			func(e *sandbox.Engine) evaluator.Runner { return e },

			// Test evaluator
			evaluator.New,

			// MCP Server
			mcpserver.New,

			// REST API
			httpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(registerTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newEngine(log *zap.Logger, cfg *config.Config) (*sandbox.Engine, error) {
	return sandbox.NewExecutor(log, cfg)
}

func registerTransport(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	mcp *mcpserver.MCPServer,
	api *httpserver.Server,
) error {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						log.Error("stdio transport stopped", zap.Error(err))
					}
					// stdin closed: nothing left to serve
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
		})
	case "http":
		lc.Append(fx.Hook{
			OnStart: api.Start,
			OnStop:  api.Shutdown,
		})
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Server.Transport)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return nil
}
