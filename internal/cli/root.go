// Package cli implements the pbd command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/pbd/internal/config"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgFile        string
	logLevel       string
	logFormat      string
	daemonAddr     string
	jsonOutput     bool
	jsonlOutput    bool
	noColor        bool
	noProgress     bool
	nonInteractive bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pbd",
	Short: "Teach a dual-arm robot by demonstration",
	Long: `pbd records robot actions from demonstrations and replays them.

An operator relaxes an arm, guides it by hand, and saves poses as steps of an
action. Commands arrive as short tokens from a speech recognizer, the console,
or scripts, and are applied one at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./pbd.yaml or the user config dir)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&daemonAddr, "addr", "", "pbdd gRPC address (default from config)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt or open the console")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	rootCmd.Version = version
	return rootCmd.Execute()
}

func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration, or nil before initialization.
func GetConfig() *config.Config {
	return appConfig
}

func configOrDefault() *config.Config {
	if cfg := GetConfig(); cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

func resolveDaemonAddr() string {
	if addr := strings.TrimSpace(daemonAddr); addr != "" {
		return addr
	}
	if addr := strings.TrimSpace(os.Getenv("PBD_ADDR")); addr != "" {
		return addr
	}
	return configOrDefault().Daemon.GRPCAddr()
}

// PreflightError is a failure the operator can fix before retrying.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n  hint: %s", e.Hint)
	}
	if e.NextStep != "" {
		fmt.Fprintf(&b, "\n  try:  %s", e.NextStep)
	}
	return b.String()
}
