package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/pbd/internal/config"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/pbdd"
	"github.com/opencode-ai/pbd/internal/robot"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// backend is what the run and console commands drive.
type backend interface {
	Send(ctx context.Context, raw string) (dispatcher.Outcome, error)
	Status(ctx context.Context) (interaction.Status, error)
	Close() error
}

// remoteBackend forwards to a running daemon.
type remoteBackend struct {
	client *pbdd.Client
	addr   string
}

func dialBackend(ctx context.Context, addr string) (*remoteBackend, error) {
	client, err := pbdd.Dial(addr)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, &PreflightError{
			Message:  fmt.Sprintf("pbdd is not reachable at %s", addr),
			Hint:     err.Error(),
			NextStep: "pbd serve",
		}
	}
	return &remoteBackend{client: client, addr: addr}, nil
}

// Send returns rejections as outcomes. Only transport failures are errors.
func (b *remoteBackend) Send(ctx context.Context, raw string) (dispatcher.Outcome, error) {
	out, err := b.client.SendCommand(ctx, raw)
	if err == nil {
		return out, nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return dispatcher.Outcome{}, err
	}
	outcome := dispatcher.Outcome{Raw: raw, Error: st.Message()}
	switch st.Code() {
	case codes.InvalidArgument:
		outcome.Status = dispatcher.OutcomeUnrecognized
	case codes.FailedPrecondition, codes.OutOfRange:
		outcome.Status = dispatcher.OutcomeRejected
	case codes.Aborted:
		outcome.Status = dispatcher.OutcomeFailed
	default:
		return dispatcher.Outcome{}, err
	}
	return outcome, nil
}

func (b *remoteBackend) Status(ctx context.Context) (interaction.Status, error) {
	return b.client.GetStatus(ctx)
}

func (b *remoteBackend) Close() error {
	return b.client.Close()
}

// localBackend runs a simulator, machine and dispatcher in-process.
type localBackend struct {
	machine    *interaction.Machine
	dispatcher *dispatcher.Dispatcher
}

func newLocalBackend(ctx context.Context, cfg *config.Config) (*localBackend, error) {
	sim := robot.NewSimulator(cfg.Robot.SimulatorConfig())
	machine := interaction.NewMachine(sim,
		interaction.WithLogger(logging.Component("machine")),
		interaction.WithConfig(interaction.Config{StepTimeout: cfg.Execution.StepTimeout}),
	)
	d := dispatcher.New(dispatcher.Config{
		QueueWhileExecuting: cfg.Dispatcher.QueueWhileExecuting,
		OutcomeBuffer:       cfg.Dispatcher.OutcomeBuffer,
		StopTimeout:         cfg.Dispatcher.StopTimeout,
	}, machine)
	d.SetLogger(logging.Component("dispatcher"))
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	return &localBackend{machine: machine, dispatcher: d}, nil
}

func (b *localBackend) Send(ctx context.Context, raw string) (dispatcher.Outcome, error) {
	return b.dispatcher.Dispatch(ctx, raw)
}

func (b *localBackend) Status(context.Context) (interaction.Status, error) {
	return b.machine.Status(), nil
}

func (b *localBackend) Close() error {
	return b.dispatcher.Stop()
}

func openBackend(ctx context.Context, local bool) (backend, string, error) {
	if local {
		progress := startProgress("Starting local simulator")
		b, err := newLocalBackend(ctx, configOrDefault())
		if err != nil {
			progress.Fail(err)
			return nil, "", err
		}
		progress.Done()
		return b, "local simulator", nil
	}
	addr := resolveDaemonAddr()
	b, err := dialBackend(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	return b, addr, nil
}
