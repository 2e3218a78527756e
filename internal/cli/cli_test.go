package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/opencode-ai/pbd/internal/config"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/opencode-ai/pbd/internal/pbdd"
	"github.com/opencode-ai/pbd/internal/robot"
	"github.com/opencode-ai/pbd/internal/scripts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func newRemoteBackend(t *testing.T) *remoteBackend {
	t.Helper()

	sim := robot.NewSimulator(robot.SimulatorConfig{})
	machine := interaction.NewMachine(sim, interaction.WithLogger(zerolog.Nop()))
	d := dispatcher.New(dispatcher.DefaultConfig(), machine)
	d.SetLogger(zerolog.Nop())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	pbdd.RegisterInteractionServiceServer(grpcServer, pbdd.NewServer(zerolog.Nop(), d, machine))
	go func() { _ = grpcServer.Serve(listener) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	b := &remoteBackend{client: pbdd.NewClient(conn), addr: "bufnet"}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRemoteBackendMapsRejections(t *testing.T) {
	b := newRemoteBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name   string
		raw    string
		status dispatcher.OutcomeStatus
	}{
		{name: "unknown token", raw: "dance", status: dispatcher.OutcomeUnrecognized},
		{name: "no current action", raw: "execute-action", status: dispatcher.OutcomeRejected},
		{name: "applied", raw: "create-new-action", status: dispatcher.OutcomeHandled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := b.Send(ctx, tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.status, out.Status)
			if tt.status != dispatcher.OutcomeHandled {
				require.Equal(t, tt.raw, out.Raw)
				require.NotEmpty(t, out.Error)
			}
		})
	}

	st, err := b.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.ActionCount)
}

func TestLocalBackendRunsBuiltinScript(t *testing.T) {
	logging.Disable()
	cfg := config.DefaultConfig()
	cfg.Robot.MoveLatency = 0

	b, err := newLocalBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	script, err := scripts.Resolve(t.TempDir(), "teach-and-replay")
	require.NoError(t, err)

	runner := scripts.NewRunner(b, func(ctx context.Context) (interaction.State, error) {
		st, err := b.Status(ctx)
		return st.State, err
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := runner.Run(ctx, script, nil)
	require.NoError(t, err)
	require.Equal(t, report.Steps, report.Completed)

	st, err := b.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, interaction.StateIdle, st.State)
	require.Positive(t, st.StepCount)
}

func TestPreflightErrorFormatting(t *testing.T) {
	err := &PreflightError{Message: "pbdd is not reachable", Hint: "connection refused", NextStep: "pbd serve"}
	text := err.Error()
	require.True(t, strings.HasPrefix(text, "pbdd is not reachable"))
	require.Contains(t, text, "hint: connection refused")
	require.Contains(t, text, "try:  pbd serve")

	bare := &PreflightError{Message: "boom"}
	require.Equal(t, "boom", bare.Error())
}

func TestWriteJSONModes(t *testing.T) {
	defer func() { jsonlOutput = false }()

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"a": 1}))
	require.Contains(t, buf.String(), "\n  \"a\": 1")

	jsonlOutput = true
	buf.Reset()
	require.NoError(t, writeJSON(&buf, map[string]int{"a": 1}))
	require.Equal(t, "{\"a\":1}\n", buf.String())

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
}

func TestFormattingWithoutColor(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	require.Equal(t, "OK", formatOutcomeStatus(dispatcher.OutcomeHandled))
	require.Equal(t, "REJECTED", formatOutcomeStatus(dispatcher.OutcomeRejected))
	require.Equal(t, "UNKNOWN", formatOutcomeStatus(dispatcher.OutcomeUnrecognized))
	require.Equal(t, "FAILED", formatOutcomeStatus(dispatcher.OutcomeFailed))
	require.Equal(t, "EXECUTING", formatMachineState(interaction.StateExecuting))
	require.Equal(t, "relaxed", formatFreeze(models.FreezeStateRelaxed))

	line := formatOutcomeLine(dispatcher.Outcome{
		Command: models.CommandSavePose,
		Status:  dispatcher.OutcomeRejected,
		Error:   "nothing to record",
	})
	require.Contains(t, line, "save-pose")
	require.Contains(t, line, "nothing to record")

	report := &interaction.ExecutionReport{ActionName: "Action 1", Total: 3, Completed: 1, Stopped: true}
	require.Equal(t, "Action 1 1/3 stopped", formatExecution(report))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	require.Equal(t, "ab", truncate("abcdef", 2))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"NAME", "STEPS"}, [][]string{{"reset-action", "3"}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "reset-action"))
}

func TestResolveDaemonAddr(t *testing.T) {
	defer func() { daemonAddr = "" }()

	t.Setenv("PBD_ADDR", "")
	require.Equal(t, config.DefaultConfig().Daemon.GRPCAddr(), resolveDaemonAddr())

	t.Setenv("PBD_ADDR", "robot:1234")
	require.Equal(t, "robot:1234", resolveDaemonAddr())

	daemonAddr = "flag:9"
	require.Equal(t, "flag:9", resolveDaemonAddr())
}

func TestWriteTableAlignsByDisplayWidth(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{name: "colored cell", first: "\033[32mIDLE\033[0m"},
		{name: "wide runes", first: "把杯子放下"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rows := [][]string{
				{tt.first, "x"},
				{"EXECUTING-ACTION", "y"},
			}
			require.NoError(t, writeTable(&buf, nil, rows))

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			require.Len(t, lines, 2)
			column := len("EXECUTING-ACTION") + tablePadding
			require.Equal(t, column, strings.Index(lines[1], "y"))
			require.Equal(t, column+1, lipgloss.Width(lines[0]))
		})
	}
}

func TestProgressOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := progressOut
	progressOut = &buf
	noColor = true
	t.Setenv("PBD_NO_PROGRESS", "")
	defer func() {
		progressOut = prev
		noColor = false
		noProgress = false
	}()

	require.Nil(t, startProgress("Connecting"))
	require.Empty(t, buf.String())

	os.Unsetenv("PBD_NO_PROGRESS")
	os.Unsetenv("NO_PROGRESS")
	step := startProgress("Connecting")
	require.NotNil(t, step)
	step.Fail(errors.New("refused"))
	require.Equal(t, "Connecting... failed: refused\n", buf.String())

	noProgress = true
	require.Nil(t, startProgress("Connecting"))
	var nilStep *progressStep
	nilStep.Done()
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{1234567 * time.Microsecond, "1.2s"},
		{42*time.Millisecond + 400*time.Microsecond, "42ms"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}
