package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptable/internal/config"
	"github.com/leapstack-labs/leaptable/internal/engine"
	"github.com/leapstack-labs/leaptable/pkg/adapter"
)

// Settings is what every command needs from the root command.
type Settings struct {
	Cfg    *config.Config
	Source *config.Source
	Logger *slog.Logger

	// IndexAdapter replaces the configured index connection when set.
	IndexAdapter adapter.Adapter
	// Registerer receives engine metrics when set.
	Registerer prometheus.Registerer
}

type settingsKey struct{}

// WithSettings stores settings in ctx.
func WithSettings(ctx context.Context, s *Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// GetSettings retrieves the settings from the command context.
func GetSettings(ctx context.Context) *Settings {
	if ctx != nil {
		if s, ok := ctx.Value(settingsKey{}).(*Settings); ok {
			return s
		}
	}
	return &Settings{
		Cfg: &config.Config{
			StatePath:    config.DefaultStateFile,
			Environment:  config.DefaultEnv,
			OutputFormat: config.OutputText,
			Lock:         config.LockConfig{Backend: config.LockBackendMemory},
		},
		Source: &config.Source{},
		Logger: slog.New(slog.DiscardHandler),
	}
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	*Settings
	Engine   *engine.Engine
	Renderer *Renderer
}

// NewCommandContext creates a CommandContext with an engine.
// The returned cleanup function must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	s := GetSettings(cmd.Context())
	eng, err := createEngine(cmd.Context(), s)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := eng.Close(); err != nil {
			s.Logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
	}
	return &CommandContext{
		Settings: s,
		Engine:   eng,
		Renderer: NewRenderer(cmd.OutOrStdout(), s.Cfg.OutputFormat),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that work from schema files only.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	s := GetSettings(cmd.Context())
	return &CommandContext{
		Settings: s,
		Renderer: NewRenderer(cmd.OutOrStdout(), s.Cfg.OutputFormat),
	}
}

func createEngine(ctx context.Context, s *Settings) (*engine.Engine, error) {
	cfg := s.Cfg
	if cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	engineCfg := engine.Config{
		StatePath:      cfg.StatePath,
		Index:          cfg.Index.AdapterConfig(),
		IndexAdapter:   s.IndexAdapter,
		MaxFacetValues: cfg.Facets.MaxValues,
		Worker: engine.WorkerConfig{
			MaxRetries: cfg.Worker.MaxRetries,
			BaseDelay:  cfg.Worker.BaseDelay,
		},
		Lock: engine.LockConfig{
			Backend:  cfg.Lock.Backend,
			Postgres: cfg.Lock.Postgres.AdapterConfig(),
		},
		Registerer: s.Registerer,
		Logger:     s.Logger,
	}
	return engine.New(ctx, engineCfg)
}
