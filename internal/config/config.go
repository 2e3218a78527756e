// Package config defines pbd configuration and its defaults.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/pbd/internal/models"
	"github.com/opencode-ai/pbd/internal/robot"
)

// Config is the top-level pbd configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Daemon     DaemonConfig     `mapstructure:"daemon" yaml:"daemon"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`
	Robot      RobotConfig      `mapstructure:"robot" yaml:"robot"`
	Execution  ExecutionConfig  `mapstructure:"execution" yaml:"execution"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DatabaseConfig locates the outcome log.
type DatabaseConfig struct {
	// Path is the SQLite file. Empty keeps the log in memory.
	Path string `mapstructure:"path" yaml:"path"`

	// BusyTimeoutMs is passed to SQLite as busy_timeout.
	BusyTimeoutMs int `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// DaemonConfig holds the listen addresses of pbdd.
type DaemonConfig struct {
	GRPCHost string `mapstructure:"grpc_host" yaml:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port" yaml:"grpc_port"`
	HTTPHost string `mapstructure:"http_host" yaml:"http_host"`
	HTTPPort int    `mapstructure:"http_port" yaml:"http_port"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP listener.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// GRPCAddr returns host:port for the gRPC listener.
func (c DaemonConfig) GRPCAddr() string {
	return net.JoinHostPort(c.GRPCHost, strconv.Itoa(c.GRPCPort))
}

// HTTPAddr returns host:port for the HTTP listener.
func (c DaemonConfig) HTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// DispatcherConfig tunes command dispatch.
type DispatcherConfig struct {
	QueueWhileExecuting bool          `mapstructure:"queue_while_executing" yaml:"queue_while_executing"`
	OutcomeBuffer       int           `mapstructure:"outcome_buffer" yaml:"outcome_buffer"`
	StopTimeout         time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// RobotConfig selects and tunes the robot backend.
type RobotConfig struct {
	// Simulate runs against the in-memory simulator.
	Simulate bool `mapstructure:"simulate" yaml:"simulate"`

	MoveLatency time.Duration `mapstructure:"move_latency" yaml:"move_latency"`

	// Home is the initial arm position in meters, as [x, y, z].
	Home []float64 `mapstructure:"home" yaml:"home"`
}

// SimulatorConfig converts the robot section into simulator settings.
func (c RobotConfig) SimulatorConfig() robot.SimulatorConfig {
	cfg := robot.DefaultSimulatorConfig()
	cfg.MoveLatency = c.MoveLatency
	if len(c.Home) == 3 {
		cfg.Home = models.NewPose(c.Home[0], c.Home[1], c.Home[2], models.IdentityQuaternion)
	}
	return cfg
}

// ExecutionConfig tunes playback.
type ExecutionConfig struct {
	// StepTimeout bounds each arm move. Zero disables the bound.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Database: DatabaseConfig{
			Path:          "",
			BusyTimeoutMs: 5000,
		},
		Daemon: DaemonConfig{
			GRPCHost:        "127.0.0.1",
			GRPCPort:        50061,
			HTTPHost:        "127.0.0.1",
			HTTPPort:        8061,
			ShutdownTimeout: 5 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			QueueWhileExecuting: true,
			OutcomeBuffer:       100,
			StopTimeout:         5 * time.Second,
		},
		Robot: RobotConfig{
			Simulate:    true,
			MoveLatency: 200 * time.Millisecond,
			Home:        []float64{0.5, 0, 0.8},
		},
		Execution: ExecutionConfig{
			StepTimeout: 30 * time.Second,
		},
	}
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	errs := &models.ValidationErrors{}

	if !logLevels[strings.ToLower(c.Logging.Level)] {
		errs.AddMessage("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs.AddMessage("logging.format", "must be console or json")
	}

	if c.Database.BusyTimeoutMs < 0 {
		errs.AddMessage("database.busy_timeout_ms", "must not be negative")
	}

	if !validPort(c.Daemon.GRPCPort) {
		errs.AddMessage("daemon.grpc_port", "must be between 1 and 65535")
	}
	if !validPort(c.Daemon.HTTPPort) {
		errs.AddMessage("daemon.http_port", "must be between 1 and 65535")
	}
	if c.Daemon.GRPCPort == c.Daemon.HTTPPort && c.Daemon.GRPCHost == c.Daemon.HTTPHost {
		errs.AddMessage("daemon.http_port", "must differ from grpc_port")
	}

	if c.Dispatcher.OutcomeBuffer < 1 {
		errs.AddMessage("dispatcher.outcome_buffer", "must be at least 1")
	}
	if c.Dispatcher.StopTimeout <= 0 {
		errs.AddMessage("dispatcher.stop_timeout", "must be positive")
	}

	if c.Robot.MoveLatency < 0 {
		errs.AddMessage("robot.move_latency", "must not be negative")
	}
	if len(c.Robot.Home) != 0 && len(c.Robot.Home) != 3 {
		errs.AddMessage("robot.home", "must have three coordinates")
	}
	if !c.Robot.Simulate {
		errs.AddMessage("robot.simulate", "only the simulator backend is available")
	}

	if c.Execution.StepTimeout < 0 {
		errs.AddMessage("execution.step_timeout", "must not be negative")
	}

	return errs.Err()
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
