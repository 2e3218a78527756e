package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PBD_DAEMON_GRPC_PORT.
const EnvPrefix = "PBD"

// DefaultConfigName is the file name searched for when no path is given.
const DefaultConfigName = "pbd"

// Load reads configuration from path, or from the default search locations
// when path is empty. Values from a .env file in the working directory and
// PBD_* environment variables override the file. A missing config file is not
// an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pbd"), nil
}

// WriteDefault writes the built-in configuration as YAML to path. An existing
// file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.busy_timeout_ms", cfg.Database.BusyTimeoutMs)

	v.SetDefault("daemon.grpc_host", cfg.Daemon.GRPCHost)
	v.SetDefault("daemon.grpc_port", cfg.Daemon.GRPCPort)
	v.SetDefault("daemon.http_host", cfg.Daemon.HTTPHost)
	v.SetDefault("daemon.http_port", cfg.Daemon.HTTPPort)
	v.SetDefault("daemon.shutdown_timeout", cfg.Daemon.ShutdownTimeout)

	v.SetDefault("dispatcher.queue_while_executing", cfg.Dispatcher.QueueWhileExecuting)
	v.SetDefault("dispatcher.outcome_buffer", cfg.Dispatcher.OutcomeBuffer)
	v.SetDefault("dispatcher.stop_timeout", cfg.Dispatcher.StopTimeout)

	v.SetDefault("robot.simulate", cfg.Robot.Simulate)
	v.SetDefault("robot.move_latency", cfg.Robot.MoveLatency)
	v.SetDefault("robot.home", cfg.Robot.Home)

	v.SetDefault("execution.step_timeout", cfg.Execution.StepTimeout)
}
