package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/celliott/divvy/internal/backend"
	"github.com/celliott/divvy/internal/backend/memory"
	"github.com/celliott/divvy/internal/backend/redisbackend"
	"github.com/celliott/divvy/internal/handler"
	"github.com/celliott/divvy/internal/logging"
	"github.com/celliott/divvy/internal/metrics"
	"github.com/celliott/divvy/internal/rules"
	"github.com/celliott/divvy/internal/server"
)

// Application wires divvy's components together: the compiled rule
// table, the backend, the metrics sink, the logger, and the connection
// server.
type Application struct {
	Config  *Config
	Table   *rules.Table
	Backend backend.Backend
	Metrics metrics.Sink
	Logger  logging.Logger
	Server  *server.Server
}

// New validates cfg, loads the rule table, constructs the backend, and
// assembles an Application ready to Start.
func New(cfg *Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("divvy: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewStdLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	table, err := rules.LoadFile(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("divvy: loading config: %w", err)
	}

	sink := metrics.NewInMemorySink()

	var be backend.Backend
	if len(cfg.BackendAddrs) == 0 {
		be = memory.New()
	} else {
		be, err = redisbackend.New(cfg.BackendAddrs, redisbackend.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("divvy: constructing redis backend: %w", err)
		}
	}

	breaker := backend.NewCircuitBreaker(backend.CircuitOptions{})

	policy := handler.FailOpen
	if cfg.FailPolicy == "closed" {
		policy = handler.FailClosed
	}
	h := handler.New(table, be, breaker, sink, logger, policy)

	srv := server.New(server.Config{
		MaxLineBytes: cfg.MaxLineBytes,
		MaxConns:     cfg.MaxConns,
	}, h, table, sink, logger)

	return &Application{
		Config:  cfg,
		Table:   table,
		Backend: be,
		Metrics: sink,
		Logger:  logger,
		Server:  srv,
	}, nil
}

// Start initializes the backend and begins accepting connections.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Backend.Initialize(ctx); err != nil {
		return fmt.Errorf("divvy: backend init: %w", err)
	}
	if err := a.Server.Start(a.Config.ListenAddr); err != nil {
		return fmt.Errorf("divvy: bind: %w", err)
	}
	return nil
}

// Shutdown drains connections up to the configured grace period and
// closes the backend.
func (a *Application) Shutdown(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, a.Config.DrainTimeout)
	defer cancel()
	shutdownErr := a.Server.Shutdown(drainCtx)
	closeErr := a.Backend.Close()
	if shutdownErr != nil {
		return shutdownErr
	}
	return closeErr
}
