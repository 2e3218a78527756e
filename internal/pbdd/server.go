// Package pbdd provides the pbd daemon: the interaction service over gRPC and
// the command token stream over websocket.
package pbdd

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/pbd/internal/db"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Controller is the machine surface the service needs beyond dispatch.
type Controller interface {
	Status() interaction.Status
}

// Server implements the interaction service.
type Server struct {
	logger     zerolog.Logger
	dispatcher *dispatcher.Dispatcher
	controller Controller
	events     *db.EventRepository
	startedAt  time.Time
	hostname   string
	version    string
	sessionID  string

	mu      sync.Mutex
	streams int
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithVersion sets the daemon version.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithEventRepository enables ListEvents.
func WithEventRepository(repo *db.EventRepository) ServerOption {
	return func(s *Server) {
		s.events = repo
	}
}

// WithSessionID sets the session the daemon reports under.
func WithSessionID(id string) ServerOption {
	return func(s *Server) {
		s.sessionID = id
	}
}

// NewServer creates the interaction service.
func NewServer(logger zerolog.Logger, d *dispatcher.Dispatcher, controller Controller, opts ...ServerOption) *Server {
	hostname, _ := os.Hostname()

	s := &Server{
		logger:     logger,
		dispatcher: d,
		controller: controller,
		startedAt:  time.Now(),
		hostname:   hostname,
		version:    "dev",
		sessionID:  uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID returns the session identifier.
func (s *Server) SessionID() string {
	return s.sessionID
}

// SendCommand submits a token and waits for its outcome. Commands that were
// not applied are returned as gRPC errors.
func (s *Server) SendCommand(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}

	out, err := s.dispatcher.Dispatch(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if !out.OK() {
		return nil, toStatus(out.Err)
	}
	return toStruct(out)
}

// GetStatus returns the machine status.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := toStruct(s.controller.Status())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode status: %v", err)
	}
	return st, nil
}

// SwitchAction makes the numbered action current once the commands already
// queued have been handled.
func (s *Server) SwitchAction(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	out, err := s.dispatcher.SwitchAction(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	if !out.OK() {
		return nil, toStatus(out.Err)
	}
	return s.GetStatus(ctx, nil)
}

// ListEvents returns the most recent session events, oldest first.
func (s *Server) ListEvents(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	if s.events == nil {
		return nil, status.Error(codes.Unimplemented, "event log is disabled")
	}
	events, err := s.events.Recent(ctx, int(req.GetValue()))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list events: %v", err)
	}

	list := &structpb.ListValue{}
	for _, e := range events {
		item, err := toStruct(e)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode event: %v", err)
		}
		list.Values = append(list.Values, structpb.NewStructValue(item))
	}
	return list, nil
}

// Ping reports liveness and version.
func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.mu.Lock()
	streams := s.streams
	s.mu.Unlock()

	return structpb.NewStruct(map[string]any{
		"streams":   streams,
		"version":   s.version,
		"hostname":  s.hostname,
		"session":   s.sessionID,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StreamOutcomes streams every command outcome until the client goes away.
// A slow client misses outcomes rather than holding up dispatch.
func (s *Server) StreamOutcomes(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()

	s.mu.Lock()
	s.streams++
	id := "grpc-stream-" + uuid.New().String()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.streams--
		s.mu.Unlock()
	}()

	ch := make(chan dispatcher.Outcome, 64)
	if err := s.dispatcher.Subscribe(id, func(out dispatcher.Outcome) {
		select {
		case ch <- out:
		default:
		}
	}); err != nil {
		return status.Errorf(codes.Internal, "failed to subscribe: %v", err)
	}
	defer s.dispatcher.Unsubscribe(id)

	s.logger.Debug().Str("subscriber", id).Msg("outcome stream opened")
	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-ch:
			msg, err := toStruct(out)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode outcome: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, dispatcher.ErrUnrecognizedCommand), errors.Is(err, interaction.ErrUnknownCommand):
		code = codes.InvalidArgument
	case errors.Is(err, interaction.ErrIndexOutOfRange):
		code = codes.OutOfRange
	case errors.Is(err, interaction.ErrBusy),
		errors.Is(err, interaction.ErrEmptyAction),
		errors.Is(err, interaction.ErrNoCurrentAction),
		errors.Is(err, interaction.ErrNothingToRecord),
		errors.Is(err, interaction.ErrUnsupportedStep):
		code = codes.FailedPrecondition
	case errors.Is(err, interaction.ErrHardware):
		code = codes.Aborted
	case errors.Is(err, dispatcher.ErrDispatcherNotRunning):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}
