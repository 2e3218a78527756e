package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencode-ai/pbd/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.Dispatcher.QueueWhileExecuting)
	require.Equal(t, "127.0.0.1:50061", cfg.Daemon.GRPCAddr())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	cfg.Daemon.GRPCPort = 0
	cfg.Dispatcher.OutcomeBuffer = 0
	cfg.Robot.Home = []float64{1, 2}

	err := cfg.Validate()
	require.Error(t, err)

	var verrs *models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs.Errors))
	for _, e := range verrs.Errors {
		fields = append(fields, e.Field)
	}
	require.ElementsMatch(t, []string{
		"logging.level",
		"daemon.grpc_port",
		"dispatcher.outcome_buffer",
		"robot.home",
	}, fields)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
dispatcher:
  queue_while_executing: false
execution:
  step_timeout: 2s
robot:
  home: [0.1, 0.2, 0.3]
`), 0o644))

	t.Setenv("PBD_DAEMON_GRPC_PORT", "6000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.False(t, cfg.Dispatcher.QueueWhileExecuting)
	require.Equal(t, 2*time.Second, cfg.Execution.StepTimeout)
	require.Equal(t, 6000, cfg.Daemon.GRPCPort)
	require.Equal(t, 8061, cfg.Daemon.HTTPPort)

	sim := cfg.Robot.SimulatorConfig()
	require.InDelta(t, 0.2, sim.Home.Position.Y, 1e-9)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pbd.yaml")
	require.NoError(t, WriteDefault(path, false))
	require.Error(t, WriteDefault(path, false))
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}
