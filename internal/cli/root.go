// Package cli implements the bulkproc command-line surface: the apply
// command driving the selection-to-execution pipeline, the drain
// command running the queue consumer, and the confirmation gate.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bulkproc/bulkproc/internal/config"
	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/logging"
	"github.com/bulkproc/bulkproc/internal/selector"
	"github.com/bulkproc/bulkproc/internal/store"
)

// defaultConfigPath is where the config file is looked for when
// --config is not given.
const defaultConfigPath = "bulkproc.yaml"

// Backend bundles the record store, its schema, the query engines it
// registers, and the callback registry for one process.
type Backend struct {
	Store     entity.Store
	Schema    entity.Schema
	Engines   *selector.Engines
	Callbacks *entity.Registry

	// Close releases backend resources; nil when nothing is held.
	Close func() error
}

// BackendFunc builds the backend for a run. Tests substitute this to
// inject fixture stores and callbacks.
type BackendFunc func(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error)

// App carries the state shared between the root command's setup and
// the subcommands.
type App struct {
	cfg     config.Config
	log     zerolog.Logger
	backend *Backend

	newBackend BackendFunc
}

// NewRootCmd creates the root command with the default backend: the
// MySQL store when a DSN is configured, an empty in-memory store
// otherwise.
func NewRootCmd(version string) *cobra.Command {
	return NewRootCmdWithBackend(version, DefaultBackend)
}

// NewRootCmdWithBackend creates the root command with an explicit
// backend constructor.
func NewRootCmdWithBackend(version string, backend BackendFunc) *cobra.Command {
	app := &App{newBackend: backend}

	cmd := &cobra.Command{
		Use:           "bulkproc",
		Short:         "Apply callbacks to selected entity records in bulk",
		Long:          "bulkproc resolves a set of entity records from explicit IDs or filters,\nthen applies a registered callback to each, inline in chunks or deferred\nthrough a durable work queue.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if app.backend != nil && app.backend.Close != nil {
				return app.backend.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "path to config file (default bulkproc.yaml)")
	cmd.AddCommand(newApplyCmd(app), newDrainCmd(app))

	return cmd
}

// setup loads the configuration, initializes logging, and builds the
// backend. Runs once per invocation before any subcommand.
func (a *App) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	required := path != ""
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	log := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	a.log = logging.ComponentLogger(log, "cli")

	backend, err := a.newBackend(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("initializing backend: %w", err)
	}
	a.backend = backend

	a.log.Debug().
		Str("engine", cfg.Engine).
		Int("chunk_size", cfg.ChunkSize).
		Str("command", cmd.Name()).
		Msg("command started")
	return nil
}

// DefaultBackend builds the process backend from configuration. With a
// SQL DSN it opens the MySQL store and registers the "sql" engine;
// otherwise it falls back to an empty in-memory store with the
// "memory" engine. Builtin callbacks are registered either way.
func DefaultBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	engines := selector.NewEngines()
	callbacks := entity.NewRegistry()
	if err := registerBuiltinCallbacks(callbacks, log); err != nil {
		return nil, err
	}

	if cfg.SQL.DSN != "" {
		sqlStore, err := store.OpenSQL(ctx, cfg.SQL.DSN, cfg.SQL.Table)
		if err != nil {
			return nil, err
		}
		if err := engines.Register(store.SQLEngineName, sqlStore.Engine()); err != nil {
			_ = sqlStore.Close()
			return nil, err
		}
		return &Backend{
			Store:     sqlStore,
			Schema:    sqlStore,
			Engines:   engines,
			Callbacks: callbacks,
			Close:     sqlStore.Close,
		}, nil
	}

	mem := store.NewMemory()
	if err := engines.Register(store.MemoryEngineName, mem.Engine()); err != nil {
		return nil, err
	}
	return &Backend{
		Store:     mem,
		Schema:    mem,
		Engines:   engines,
		Callbacks: callbacks,
	}, nil
}

// registerBuiltinCallbacks wires the callbacks every deployment gets.
// Deployments embedding this CLI register their own on top.
func registerBuiltinCallbacks(reg *entity.Registry, log zerolog.Logger) error {
	if err := reg.Register("log", func(ctx context.Context, entityType string, rec entity.Record) bool {
		log.Info().Ctx(ctx).
			Str("entity_type", entityType).
			Int64("id", int64(rec.ID)).
			Str("bundle", rec.Bundle).
			Msg("record")
		return true
	}); err != nil {
		return err
	}
	return reg.Register("noop", func(context.Context, string, entity.Record) bool {
		return true
	})
}

const rootCmdExample = `  # Apply the "save" callback to two records inline
  bulkproc apply node save --ids 12,56

  # Apply to every article, 25 records per chunk
  bulkproc apply node save --bundles article --size 25

  # Filter on field values (field|operator|value)
  bulkproc apply node save --fields 'status|=|1'

  # Defer the work into the durable queue instead of running inline
  bulkproc apply node save --bundles article --queue

  # Drain the queue
  bulkproc drain

  # Substitute a different query engine
  bulkproc apply node save --bundles article --efq-class sql`
