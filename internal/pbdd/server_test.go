package pbdd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opencode-ai/pbd/internal/db"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/opencode-ai/pbd/internal/robot"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type testEnv struct {
	sim     *robot.Simulator
	machine *interaction.Machine
	server  *Server
	repo    *db.EventRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sim := robot.NewSimulator(robot.SimulatorConfig{MoveLatency: 0})
	machine := interaction.NewMachine(sim, interaction.WithLogger(zerolog.Nop()))

	d := dispatcher.New(dispatcher.DefaultConfig(), machine)
	d.SetLogger(zerolog.Nop())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })

	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
	repo := db.NewEventRepository(database)

	server := NewServer(zerolog.Nop(), d, machine,
		WithVersion("test-version"),
		WithEventRepository(repo),
		WithSessionID("session-test"),
	)
	return &testEnv{sim: sim, machine: machine, server: server, repo: repo}
}

func dialBufconn(t *testing.T, env *testEnv, limits map[string]RateLimit) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	limiter := NewRateLimiter(limits)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(limiter.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(limiter.StreamServerInterceptor()),
	)
	RegisterInteractionServiceServer(grpcServer, env.server)
	go func() { _ = grpcServer.Serve(listener) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	client := NewClient(conn)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServerPing(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.Ping(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	fields := resp.AsMap()
	require.Equal(t, "test-version", fields["version"])
	require.Equal(t, "session-test", fields["session"])
}

func TestServerSendCommandErrorCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		code codes.Code
	}{
		{name: "empty", raw: "", code: codes.InvalidArgument},
		{name: "unrecognized", raw: "dance", code: codes.InvalidArgument},
		{name: "no current action", raw: "save-pose", code: codes.FailedPrecondition},
		{name: "stop while idle", raw: "stop-execution", code: codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.server.SendCommand(ctx, wrapperspb.String(tt.raw))
			require.Error(t, err)
			require.Equal(t, tt.code, status.Code(err))
		})
	}

	resp, err := env.server.SendCommand(ctx, wrapperspb.String("create-new-action"))
	require.NoError(t, err)
	require.Equal(t, "handled", resp.AsMap()["status"])
}

func TestServerSwitchActionOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.server.SendCommand(ctx, wrapperspb.String("create-new-action"))
	require.NoError(t, err)

	_, err = env.server.SwitchAction(ctx, wrapperspb.Int32(5))
	require.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestServerSwitchActionGoesThroughQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, raw := range []string{"create-new-action", "save-pose", "create-new-action"} {
		_, err := env.server.SendCommand(ctx, wrapperspb.String(raw))
		require.NoError(t, err, raw)
	}
	require.Equal(t, 2, env.machine.Status().CurrentAction)

	resp, err := env.server.SwitchAction(ctx, wrapperspb.Int32(1))
	require.NoError(t, err)
	require.Equal(t, float64(1), resp.AsMap()["current_action"])
	require.Equal(t, 1, env.machine.Status().CurrentAction)
}

func TestClientRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	client := dialBufconn(t, env, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, raw := range []string{"create-new-action", "freeze-left-arm"} {
		_, err := client.SendCommand(ctx, raw)
		require.NoError(t, err)
	}
	target := models.NewPose(0.6, -0.2, 0.9, models.IdentityQuaternion)
	require.NoError(t, env.sim.Guide(models.LimbRightArm, target))

	out, err := client.SendCommand(ctx, "save_pose")
	require.NoError(t, err)
	require.Equal(t, dispatcher.OutcomeHandled, out.Status)
	require.Equal(t, 0, out.StepIndex)

	out, err = client.SendCommand(ctx, "execute-action")
	require.NoError(t, err)
	require.Equal(t, interaction.StateIdle, out.State)

	st, err := client.GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.ActionCount)
	require.Equal(t, 1, st.StepCount)
	require.Equal(t, "Action1", st.CurrentName)
	require.NotNil(t, st.LastExecution)
	require.Equal(t, 1, st.LastExecution.Completed)

	pose, err := env.sim.CapturePose(ctx, models.LimbRightArm)
	require.NoError(t, err)
	require.Less(t, pose.DistanceTo(target), 1e-9)

	_, err = client.SendCommand(ctx, "delete-last-step")
	require.NoError(t, err)
	_, err = client.SendCommand(ctx, "delete-last-step")
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestClientRateLimited(t *testing.T) {
	env := newTestEnv(t)
	client := dialBufconn(t, env, map[string]RateLimit{
		MethodPing: {PerSecond: 0.001, Burst: 1},
	})
	ctx := context.Background()

	_, err := client.Ping(ctx)
	require.NoError(t, err)
	_, err = client.Ping(ctx)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestClientStreamOutcomes(t *testing.T) {
	env := newTestEnv(t)
	client := dialBufconn(t, env, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan dispatcher.Outcome, 4)
	go func() {
		_ = client.StreamOutcomes(ctx, func(out dispatcher.Outcome) {
			received <- out
		})
	}()

	require.Eventually(t, func() bool {
		env.server.mu.Lock()
		defer env.server.mu.Unlock()
		return env.server.streams == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := client.SendCommand(ctx, "test-microphone")
	require.NoError(t, err)

	select {
	case out := <-received:
		require.Equal(t, models.CommandTestMicrophone, out.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome streamed")
	}
}

func TestClientListEvents(t *testing.T) {
	env := newTestEnv(t)
	client := dialBufconn(t, env, nil)
	ctx := context.Background()

	require.NoError(t, env.repo.Create(ctx, &models.Event{
		Type:       models.EventTypeCommandHandled,
		EntityType: models.EntityTypeSession,
		EntityID:   "session-test",
	}))

	events, err := client.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.EventTypeCommandHandled, events[0].Type)
}
