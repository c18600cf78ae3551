// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiarena/engine/pkg/database"
	"github.com/aiarena/engine/pkg/logging"
)

// ServerConfig holds the listener configuration for the engine's
// health/metrics surface.
type ServerConfig struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
	SSEPort  int    `yaml:"sse_port"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SchedulerConfig configures the match scheduler control loop.
type SchedulerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// SandboxConfig configures the isolator CLI the sandbox runner shells out to.
type SandboxConfig struct {
	IsolatePath    string        `yaml:"isolate_path"`
	MemoryLimitKB  int64         `yaml:"memory_limit_kb"`
	TimeLimit      time.Duration `yaml:"time_limit"`
	ExtraTime      time.Duration `yaml:"extra_time"`
	StderrMaxBytes int           `yaml:"stderr_max_bytes"`
}

// GameEntry declares one schema-defined game the engine will schedule matches for.
type GameEntry struct {
	ID         string       `yaml:"id"`
	SchemaPath string       `yaml:"schema_path"`
	NumPlayers int          `yaml:"num_players"`
	Snake      *SnakeConfig `yaml:"snake,omitempty"`
}

// SnakeConfig parameterizes the built-in "snake" referee: board size, food
// count, and each player's starting body (head last).
type SnakeConfig struct {
	Rows   int       `yaml:"rows"`
	Cols   int       `yaml:"cols"`
	Food   int       `yaml:"food"`
	Starts [][]Point `yaml:"starts"`
}

// Point is a (row, col) grid coordinate.
type Point struct {
	Row int `yaml:"row"`
	Col int `yaml:"col"`
}

// WorkspaceConfig configures temp directory allocation and cleanup.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// EngineConfig is the top-level configuration for the tournament engine.
type EngineConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   database.Config  `yaml:"database"`
	Logging    logging.Config   `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Games      []GameEntry      `yaml:"games"`
}

// Default returns an EngineConfig with conservative, runnable defaults.
func Default() EngineConfig {
	return EngineConfig{
		Server: ServerConfig{Host: "0.0.0.0", GRPCPort: 9090, SSEPort: 8090},
		Database: database.Config{
			Driver:       "sqlite",
			DSN:          "./data/engine.db",
			MaxOpenConns: 1,
		},
		Logging:    logging.Config{Level: "info", Format: "text", Output: "stdout"},
		Monitoring: MonitoringConfig{Enabled: true, Port: 9100},
		Scheduler: SchedulerConfig{
			PollInterval:   1 * time.Second,
			MaxConcurrency: 4,
		},
		Sandbox: SandboxConfig{
			IsolatePath:    "isolate",
			MemoryLimitKB:  4 * 1024 * 1024,
			TimeLimit:      1 * time.Second,
			ExtraTime:      500 * time.Millisecond,
			StderrMaxBytes: 16 * 1024,
		},
		Workspace: WorkspaceConfig{Root: "./tmp"},
	}
}

// Load reads and parses an EngineConfig from path, expanding environment
// variables and filling any zero-valued fields from Default().
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// ParseDuration parses a duration string with a fallback on error, in the
// style the original per-service configs used for human-edited yaml fields.
func ParseDuration(durationStr string, fallback time.Duration) time.Duration {
	if duration, err := time.ParseDuration(durationStr); err == nil {
		return duration
	}
	return fallback
}
