package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/voxalytics/voxalytics/pkg/agent"
	"github.com/voxalytics/voxalytics/pkg/audit"
	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

// warehouseConfig builds the subprocess launch config from VOX_WAREHOUSE_CMD,
// e.g. "uvx mcp-snowflake-server" or any stdio tool server.
func warehouseConfig() (warehouse.ServerConfig, error) {
	raw := strings.TrimSpace(os.Getenv("VOX_WAREHOUSE_CMD"))
	if raw == "" {
		return warehouse.ServerConfig{}, fmt.Errorf("VOX_WAREHOUSE_CMD is not set")
	}
	fields := strings.Fields(raw)
	return warehouse.ServerConfig{
		Command: fields[0],
		Args:    fields[1:],
		Stderr:  os.Stderr,
	}, nil
}

// buildAgent assembles the agent from flags and the environment. The
// returned release func closes everything the agent acquired, including the
// audit store.
func buildAgent(ctx context.Context) (*agent.Agent, func(), error) {
	server, err := warehouseConfig()
	if err != nil {
		return nil, nil, err
	}

	var recorder agent.Recorder
	var store *audit.Store
	if dsn := os.Getenv("VOX_AUDIT_DSN"); dsn != "" {
		store, err = audit.NewStore(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("audit store: %w", err)
		}
		recorder = store
		slog.Info("audit store connected")
	}

	ag := agent.New(agent.Options{
		Params: agent.Params{
			Provider:      flagProvider,
			Model:         flagModel,
			Temperature:   flagTemperature,
			MaxTokens:     flagMaxTokens,
			MaxIterations: flagMaxIterations,
			StepLimit:     flagStepLimit,
		},
		Server:   server,
		Recorder: recorder,
	})

	release := func() {
		if err := ag.Cleanup(); err != nil {
			slog.Warn("cleanup failed", "error", err)
		}
		if store != nil {
			_ = store.Close()
		}
	}

	if err := ag.Initialize(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return ag, release, nil
}
