// Package config holds the explicit run configuration passed into the
// selector, runner, and queue constructors. There is no ambient option
// state: everything a component needs arrives through this struct.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultEngine    = "memory"
	DefaultChunkSize = 10
	DefaultQueueName = "bulkproc"
	DefaultQueuePath = ".bulkproc/queue"
	DefaultWorkers   = 4
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultSQLTable  = "entity_records"
)

// Config is the full run configuration. Values layer as
// defaults < config file < BULKPROC_* environment < command-line flags.
type Config struct {
	// Engine is the query engine used for filtered selections.
	Engine string `yaml:"engine"`

	// ChunkSize is the number of records processed per inline chunk.
	ChunkSize int `yaml:"chunk_size"`

	// QueuePath is the filesystem path of the durable queue database.
	QueuePath string `yaml:"queue_path"`

	// QueueName is the queue that deferred work items land in.
	QueueName string `yaml:"queue_name"`

	// Workers is the consumer pool size for draining the queue.
	Workers int `yaml:"workers"`

	Logging LoggingConfig `yaml:"logging"`
	SQL     SQLConfig     `yaml:"sql"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SQLConfig configures the MySQL record store. An empty DSN leaves the
// SQL backend disabled.
type SQLConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// Default returns a config populated with defaults.
func Default() Config {
	return Config{
		Engine:    DefaultEngine,
		ChunkSize: DefaultChunkSize,
		QueuePath: DefaultQueuePath,
		QueueName: DefaultQueueName,
		Workers:   DefaultWorkers,
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		SQL: SQLConfig{
			Table: DefaultSQLTable,
		},
	}
}

// Load builds the config from defaults, an optional YAML file, and
// BULKPROC_* environment variables, in that order. A missing file at
// the default path is not an error; an explicitly named file must
// exist.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !required:
		// Defaults apply.
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from BULKPROC_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("BULKPROC_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("BULKPROC_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ChunkSize = n
		}
	}
	if v := os.Getenv("BULKPROC_QUEUE_PATH"); v != "" {
		c.QueuePath = v
	}
	if v := os.Getenv("BULKPROC_QUEUE_NAME"); v != "" {
		c.QueueName = v
	}
	if v := os.Getenv("BULKPROC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("BULKPROC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BULKPROC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("BULKPROC_SQL_DSN"); v != "" {
		c.SQL.DSN = v
	}
	if v := os.Getenv("BULKPROC_SQL_TABLE"); v != "" {
		c.SQL.Table = v
	}
}

// Validate rejects configurations no run can use.
func (c Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", c.ChunkSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Engine == "" {
		return fmt.Errorf("engine must not be empty")
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue_name must not be empty")
	}
	return nil
}
